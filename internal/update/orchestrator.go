// SPDX-License-Identifier: MPL-2.0

// Package update drives the per-tool install/update flow and aggregates
// outcomes across a batch. Tools are processed strictly sequentially; one
// tool's failure never aborts the batch.
package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"secup/internal/pkgmgr"
	"secup/internal/platform"
	"secup/internal/release"
	"secup/internal/tool"
)

var (
	// ErrVerifyFailed indicates the post-install re-probe found no working
	// executable.
	ErrVerifyFailed = errors.New("install verification failed")

	// ErrNoAsset indicates no release asset matched the host platform and
	// the tool has no package-manager fallback.
	ErrNoAsset = errors.New("no release asset for this platform")
)

// Outcome classifies what happened to a single tool during a run.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeInstalled
	OutcomeUpdated
	OutcomeSkipUpToDate
	OutcomeSkipNotInstalled
)

// String returns the outcome's canonical summary label.
func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeInstalled:
		return "installed"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipUpToDate:
		return "skipped-up-to-date"
	case OutcomeSkipNotInstalled:
		return "skipped-not-installed-update-only"
	}
	return "unknown"
}

type (
	// Result is the terminal state of one tool's processing.
	Result struct {
		Tool    tool.Tool
		Outcome Outcome
		Version string // Version after processing, when known
		Err     error  // Non-nil iff Outcome is OutcomeFailed
	}

	// ReleaseSource answers idempotency and resolution queries against the
	// upstream release feed.
	ReleaseSource interface {
		LatestTag(ctx context.Context, repo string) (string, error)
		Resolve(ctx context.Context, t tool.Tool, plat platform.Platform) (*release.ResolvedAsset, error)
	}

	// Prober reports whether a tool is installed and which version it runs.
	Prober interface {
		CurrentVersion(ctx context.Context, t tool.Tool) (version string, installed bool)
	}

	// BinaryInstaller places a resolved asset into the install prefix.
	BinaryInstaller interface {
		Install(ctx context.Context, asset *release.ResolvedAsset, t tool.Tool) (string, error)
	}

	// PackageManager installs or upgrades a tool by package name.
	PackageManager interface {
		Install(ctx context.Context, pkg string) error
	}

	// Orchestrator runs the probe/resolve/install flow for each tool in a
	// batch.
	Orchestrator struct {
		releases  ReleaseSource
		prober    Prober
		installer BinaryInstaller
		pkgs      PackageManager
		plat      platform.Platform

		dryRun     bool
		updateOnly bool
		actionOut  io.Writer
		logger     *log.Logger
	}

	// OrchestratorOption configures an Orchestrator during construction.
	OrchestratorOption func(*Orchestrator)
)

// WithDryRun replaces every mutating action with a printed description.
func WithDryRun(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.dryRun = enabled }
}

// WithUpdateOnly skips tools that are not currently installed.
func WithUpdateOnly(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.updateOnly = enabled }
}

// WithActionOutput sets the writer that receives dry-run action lines.
func WithActionOutput(w io.Writer) OrchestratorOption {
	return func(o *Orchestrator) { o.actionOut = w }
}

// WithLogger sets the logger used for per-tool progress reporting.
func WithLogger(l *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator for the given host platform and collaborators.
func New(plat platform.Platform, releases ReleaseSource, prober Prober, installer BinaryInstaller, pkgs PackageManager, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		releases:  releases,
		prober:    prober,
		installer: installer,
		pkgs:      pkgs,
		plat:      plat,
		actionOut: io.Discard,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes the tools in the order given, each to completion before the
// next begins, and returns one Result per tool. Failed counts toward the
// run's failure set; the caller derives the exit status from it.
func (o *Orchestrator) Run(ctx context.Context, tools []tool.Tool) []Result {
	results := make([]Result, 0, len(tools))
	for _, t := range tools {
		res := o.processTool(ctx, t)
		if res.Outcome == OutcomeFailed {
			o.logger.Error("tool failed", "tool", t, "error", res.Err)
		} else {
			o.logger.Info("tool processed", "tool", t, "outcome", res.Outcome, "version", res.Version)
		}
		results = append(results, res)
	}
	return results
}

// Failed returns the names of tools whose outcome is OutcomeFailed.
func Failed(results []Result) []string {
	var names []string
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			names = append(names, r.Tool.String())
		}
	}
	return names
}

// processTool runs the state machine for a single tool.
func (o *Orchestrator) processTool(ctx context.Context, t tool.Tool) Result {
	spec := tool.Lookup(t)

	current, installed := o.prober.CurrentVersion(ctx, t)
	if installed {
		o.logger.Debug("probed current version", "tool", t, "version", current)
	} else {
		o.logger.Debug("tool not installed", "tool", t)
	}

	// The latest tag is required for the idempotency decision; without it
	// the tool cannot be processed at all.
	latest, err := o.releases.LatestTag(ctx, spec.Repo)
	if err != nil {
		return Result{Tool: t, Outcome: OutcomeFailed, Err: fmt.Errorf("fetching latest tag: %w", err)}
	}

	if installed && versionsEqual(current, latest) {
		return Result{Tool: t, Outcome: OutcomeSkipUpToDate, Version: current}
	}

	if !installed && o.updateOnly {
		return Result{Tool: t, Outcome: OutcomeSkipNotInstalled}
	}

	asset, err := o.releases.Resolve(ctx, t, o.plat)
	if err != nil {
		return Result{Tool: t, Outcome: OutcomeFailed, Err: fmt.Errorf("resolving asset: %w", err)}
	}

	success := OutcomeInstalled
	if installed {
		success = OutcomeUpdated
	}

	if asset == nil {
		// Tools without platform binaries fall back to their package
		// manager when one is configured.
		if spec.PipPackage == "" {
			return Result{Tool: t, Outcome: OutcomeFailed, Err: fmt.Errorf("%s on %s: %w", t, o.plat, ErrNoAsset)}
		}
		return o.installViaPip(ctx, t, spec.PipPackage, latest, success)
	}

	if o.dryRun {
		fmt.Fprintf(o.actionOut, "dry-run: download %s\n", asset.URL)
		fmt.Fprintf(o.actionOut, "dry-run: install %s %s\n", t, latest)
		// Report the version the way a real run's re-probe would, without
		// the tag's v prefix.
		return Result{Tool: t, Outcome: success, Version: strings.TrimPrefix(latest, "v")}
	}

	if _, err := o.installer.Install(ctx, asset, t); err != nil {
		return Result{Tool: t, Outcome: OutcomeFailed, Err: err}
	}

	// Re-probe to confirm the install took effect.
	version, ok := o.prober.CurrentVersion(ctx, t)
	if !ok {
		return Result{Tool: t, Outcome: OutcomeFailed, Err: fmt.Errorf("%s: %w", t, ErrVerifyFailed)}
	}

	return Result{Tool: t, Outcome: success, Version: version}
}

// installViaPip runs the package-manager fallback path.
func (o *Orchestrator) installViaPip(ctx context.Context, t tool.Tool, pkg, latest string, success Outcome) Result {
	if o.dryRun {
		fmt.Fprintf(o.actionOut, "dry-run: run %s\n", strings.Join(pkgmgr.InstallArgs(pkg), " "))
		return Result{Tool: t, Outcome: success, Version: strings.TrimPrefix(latest, "v")}
	}

	if err := o.pkgs.Install(ctx, pkg); err != nil {
		return Result{Tool: t, Outcome: OutcomeFailed, Err: err}
	}

	version, ok := o.prober.CurrentVersion(ctx, t)
	if !ok {
		return Result{Tool: t, Outcome: OutcomeFailed, Err: fmt.Errorf("%s: %w", t, ErrVerifyFailed)}
	}

	return Result{Tool: t, Outcome: success, Version: version}
}

// versionsEqual compares a probed version against a release tag. Tags are
// conventionally v-prefixed while reported versions usually are not, so both
// raw and prefix-stripped forms are tried, then a semver comparison for
// formats that differ only in normalization.
func versionsEqual(current, tag string) bool {
	if current == "" || tag == "" {
		return false
	}
	if current == tag || current == strings.TrimPrefix(tag, "v") {
		return true
	}

	c := "v" + strings.TrimPrefix(current, "v")
	l := "v" + strings.TrimPrefix(tag, "v")
	return semver.IsValid(c) && semver.IsValid(l) && semver.Compare(c, l) == 0
}
