// SPDX-License-Identifier: MPL-2.0

// Package probe determines whether a tool is installed and, if so, which
// version it reports. Version banners are not uniformly formatted across
// tools, so extraction is two-tier: a tool-specific pattern first, then a
// generic MAJOR.MINOR[.PATCH] token scan.
package probe

import (
	"context"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"secup/internal/tool"
)

// genericVersion matches the first MAJOR.MINOR[.PATCH] token anywhere in a
// version banner.
var genericVersion = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

type (
	// Runner executes a command and returns its combined output. Abstracted
	// so tests can fake tool invocations.
	Runner interface {
		Run(ctx context.Context, name string, args ...string) ([]byte, error)
	}

	// Prober reports the currently installed version of a tool.
	Prober struct {
		runner   Runner
		lookPath func(string) (string, error)
		logger   *log.Logger
	}

	// ProberOption configures a Prober during construction.
	ProberOption func(*Prober)

	// execRunner executes real subprocesses. Commands are always invoked
	// with explicit argument vectors; nothing is shell-interpreted.
	execRunner struct{}
)

// Run executes the command and returns combined stdout/stderr.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// WithRunner replaces the subprocess runner, for tests.
func WithRunner(r Runner) ProberOption {
	return func(p *Prober) { p.runner = r }
}

// WithLookPath replaces executable lookup, for tests.
func WithLookPath(fn func(string) (string, error)) ProberOption {
	return func(p *Prober) { p.lookPath = fn }
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l *log.Logger) ProberOption {
	return func(p *Prober) { p.logger = l }
}

// New creates a Prober that invokes real subprocesses.
func New(opts ...ProberOption) *Prober {
	p := &Prober{
		runner:   execRunner{},
		lookPath: exec.LookPath,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentVersion reports whether the tool is installed and the version it
// reports. installed is false when the executable cannot be located.
// version may be empty for an installed tool whose banner yields no
// parseable token. A non-zero exit from the version command is tolerated:
// whatever output was produced is still scanned.
func (p *Prober) CurrentVersion(ctx context.Context, t tool.Tool) (version string, installed bool) {
	spec := tool.Lookup(t)

	if _, err := p.lookPath(spec.VersionArgs[0]); err != nil {
		return "", false
	}

	out, err := p.runner.Run(ctx, spec.VersionArgs[0], spec.VersionArgs[1:]...)
	if err != nil {
		p.logger.Debug("version command exited non-zero", "tool", t, "error", err)
	}

	v := extractVersion(firstLine(string(out)), spec.VersionPattern)
	if v == "" {
		p.logger.Debug("no version token in banner", "tool", t, "output", firstLine(string(out)))
	}
	return v, true
}

// extractVersion applies the tool-specific pattern when configured and it
// matches, then falls back to the generic numeric token.
func extractVersion(line string, pattern *regexp.Regexp) string {
	if pattern != nil {
		if m := pattern.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	if m := genericVersion.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

// firstLine returns the first line of s, trimmed.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
