// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"secup/internal/config"
	"secup/internal/fetch"
	"secup/internal/install"
	"secup/internal/pkgmgr"
	"secup/internal/platform"
	"secup/internal/probe"
	"secup/internal/release"
	"secup/internal/tool"
	"secup/internal/update"
)

// runParams bundles the dependencies and flags for the root command,
// enabling the core logic in runInstall to be tested without a real Cobra
// command or live network calls.
type runParams struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	tools  []tool.Tool
}

// parseTools maps positional arguments to tools, defaulting to the full set
// when none are given. Duplicates are preserved in the order given.
func parseTools(args []string) ([]tool.Tool, error) {
	if len(args) == 0 {
		return tool.All(), nil
	}

	tools := make([]tool.Tool, 0, len(args))
	for _, arg := range args {
		t, err := tool.Parse(arg)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// runInstall is the core batch logic, separated from Cobra for testability.
// All user-facing output goes through p.stdout and p.stderr.
//
// Flow:
//  1. Detect the host platform; unsupported hosts abort before any tool work.
//  2. Verify the install prefix is writable (skipped under dry-run).
//  3. Build the collaborators and process each requested tool in order.
//  4. Print the per-tool summary; exit non-zero iff any tool failed.
func runInstall(ctx context.Context, p runParams) error {
	logger := log.NewWithOptions(p.stderr, log.Options{ReportTimestamp: false})
	if p.cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	plat, err := platform.Detect()
	if err != nil {
		fmt.Fprintln(p.stderr, ErrorStyle.Render("unsupported platform: ")+err.Error())
		return &ExitError{Code: 1, Err: err}
	}
	logger.Debug("detected platform", "platform", plat)

	if !p.cfg.DryRun {
		if err := config.EnsurePrefix(p.cfg.InstallPrefix); err != nil {
			fmt.Fprintln(p.stderr, ErrorStyle.Render("install prefix: ")+err.Error())
			return &ExitError{Code: 1, Err: err}
		}
	}

	orch := buildOrchestrator(plat, p.cfg, p.stdout, logger)
	results := orch.Run(ctx, p.tools)
	printSummary(p.stdout, results)

	failed := update.Failed(results)
	if len(failed) > 0 {
		fmt.Fprintln(p.stderr, ErrorStyle.Render("failed: ")+strings.Join(failed, ", "))
		return &ExitError{Code: 1, Err: fmt.Errorf("%d tool(s) failed", len(failed))}
	}

	return nil
}

// buildOrchestrator wires the release client, fetcher, installer, prober,
// and pip fallback into an orchestrator for this run's configuration.
func buildOrchestrator(plat platform.Platform, cfg *config.Config, stdout io.Writer, logger *log.Logger) *update.Orchestrator {
	// A token raises the API rate limit from 60/hour to 5000/hour;
	// absence is not an error.
	clientOpts := []release.ClientOption{release.WithUserAgent("secup/" + Version)}
	if cfg.GitHubToken != "" {
		clientOpts = append(clientOpts, release.WithToken(cfg.GitHubToken))
	}

	client := release.NewGitHubClient(clientOpts...)
	resolver := release.NewResolver(client, release.WithResolverLogger(logger))
	fetcher := fetch.New(fetch.WithLogger(logger))
	installer := install.New(fetcher, cfg.InstallPrefix, install.WithLogger(logger))
	prober := probe.New(probe.WithLogger(logger))
	pip := pkgmgr.NewPip(pkgmgr.WithLogger(logger))

	return update.New(plat, resolver, prober, installer, pip,
		update.WithDryRun(cfg.DryRun),
		update.WithUpdateOnly(cfg.UpdateOnly),
		update.WithActionOutput(stdout),
		update.WithLogger(logger),
	)
}

// printSummary writes one line per tool with its terminal outcome, then a
// tally of outcomes across the batch.
func printSummary(w io.Writer, results []update.Result) {
	counts := make(map[update.Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
		switch r.Outcome {
		case update.OutcomeFailed:
			fmt.Fprintf(w, "%s %s: %s\n", ErrorStyle.Render("✗"), r.Tool, formatToolError(r.Err))
		case update.OutcomeInstalled, update.OutcomeUpdated:
			fmt.Fprintf(w, "%s %s: %s %s\n", SuccessStyle.Render("✓"), r.Tool, r.Outcome, r.Version)
		case update.OutcomeSkipUpToDate:
			fmt.Fprintf(w, "%s %s: up to date (%s)\n", SuccessStyle.Render("✓"), r.Tool, r.Version)
		case update.OutcomeSkipNotInstalled:
			fmt.Fprintf(w, "%s %s: not installed, skipped (update-only)\n", WarningStyle.Render("-"), r.Tool)
		}
	}

	var tally []string
	for _, o := range []update.Outcome{
		update.OutcomeInstalled,
		update.OutcomeUpdated,
		update.OutcomeSkipUpToDate,
		update.OutcomeSkipNotInstalled,
		update.OutcomeFailed,
	} {
		if counts[o] > 0 {
			tally = append(tally, fmt.Sprintf("%d %s", counts[o], o))
		}
	}
	fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("%d tool(s): %s", len(results), strings.Join(tally, ", "))))
}

// formatToolError produces a user-friendly error message with actionable
// remediation guidance tailored to the specific error type.
func formatToolError(err error) string {
	var rateLimitErr *release.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Sprintf("%s (set GITHUB_TOKEN to raise the limit)", rateLimitErr.Error())
	}

	var checksumErr *install.ChecksumError
	if errors.As(err, &checksumErr) {
		return fmt.Sprintf("checksum mismatch (expected %s, got %s); the download may be corrupted, try again",
			checksumErr.Expected, checksumErr.Got)
	}

	if errors.Is(err, pkgmgr.ErrPipMissing) {
		return "no binary release for this platform and pip is not installed"
	}

	return err.Error()
}
