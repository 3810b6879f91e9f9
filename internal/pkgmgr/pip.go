// SPDX-License-Identifier: MPL-2.0

// Package pkgmgr drives external package managers for tools that ship no
// prebuilt binary for the host platform. Currently that means pip.
package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrPipMissing indicates neither pip3 nor pip is available on the host.
var ErrPipMissing = errors.New("pip is not installed")

// pipCandidates lists pip executable names in preference order.
var pipCandidates = []string{"pip3", "pip"}

type (
	// Runner executes a command and returns its combined output.
	Runner interface {
		Run(ctx context.Context, name string, args ...string) ([]byte, error)
	}

	// Pip installs and upgrades Python packages through the host's pip.
	Pip struct {
		runner   Runner
		lookPath func(string) (string, error)
		logger   *log.Logger
	}

	// PipOption configures a Pip during construction.
	PipOption func(*Pip)

	execRunner struct{}
)

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// WithRunner replaces the subprocess runner, for tests.
func WithRunner(r Runner) PipOption {
	return func(p *Pip) { p.runner = r }
}

// WithLookPath replaces executable lookup, for tests.
func WithLookPath(fn func(string) (string, error)) PipOption {
	return func(p *Pip) { p.lookPath = fn }
}

// WithLogger sets the logger used for install diagnostics.
func WithLogger(l *log.Logger) PipOption {
	return func(p *Pip) { p.logger = l }
}

// NewPip creates a Pip that invokes the host's pip executable.
func NewPip(opts ...PipOption) *Pip {
	p := &Pip{
		runner:   execRunner{},
		lookPath: exec.LookPath,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InstallArgs returns the argument vector used to install or upgrade pkg.
// Exposed so dry runs can print the exact command without executing it.
func InstallArgs(pkg string) []string {
	return []string{"pip3", "install", "--upgrade", "--quiet", pkg}
}

// Install installs or upgrades pkg via pip, preferring pip3 over pip.
// Returns ErrPipMissing when no pip executable is on PATH.
func (p *Pip) Install(ctx context.Context, pkg string) error {
	exe, err := p.locate()
	if err != nil {
		return err
	}

	args := InstallArgs(pkg)[1:]
	p.logger.Debug("running pip install", "exe", exe, "package", pkg)

	out, err := p.runner.Run(ctx, exe, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("pip install %s: %w: %s", pkg, err, msg)
		}
		return fmt.Errorf("pip install %s: %w", pkg, err)
	}

	return nil
}

// locate returns the first pip executable found on PATH.
func (p *Pip) locate() (string, error) {
	for _, name := range pipCandidates {
		if _, err := p.lookPath(name); err == nil {
			return name, nil
		}
	}
	return "", ErrPipMissing
}
