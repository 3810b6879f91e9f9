// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"secup/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// dryRun replaces every mutating action with a printed description.
	dryRun bool
	// updateOnly skips tools that are not currently installed.
	updateOnly bool
	// verbose enables debug logging.
	verbose bool

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "secup [tool...]",
		Short: "Install and update a fixed set of security scanners",
		Long: TitleStyle.Render("secup") + SubtitleStyle.Render(" - security tooling installer/updater") + `

secup installs and updates a fixed set of security scanners (trivy,
grype, gitleaks, tfsec, checkov) from their upstream GitHub releases.
It detects the host platform, skips tools already at the latest
version, verifies published checksums, and installs each binary to
the configured prefix (default ~/.local/bin).

` + SubtitleStyle.Render("Examples:") + `
  secup                     Process all five tools
  secup trivy gitleaks      Process only the named tools
  secup -u                  Update installed tools, skip absent ones
  secup -d checkov          Show what would happen, change nothing`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			tools, err := parseTools(args)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			cfg.DryRun = dryRun
			cfg.UpdateOnly = updateOnly
			cfg.Verbose = verbose

			p := runParams{
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				cfg:    cfg,
				tools:  tools,
			}
			return runInstall(cmd.Context(), p)
		},
	}
)

func init() {
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "print actions instead of performing them")
	rootCmd.Flags().BoolVarP(&updateOnly, "update-only", "u", false, "skip tools that are not currently installed")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
