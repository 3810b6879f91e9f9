// SPDX-License-Identifier: MPL-2.0

// Package platform normalizes host kernel and machine identifiers into the
// closed (OS, Arch) enumeration that release asset patterns are keyed by.
// Detection is a static property of the host and happens once per run.
package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// OS is a normalized operating system identifier.
type OS string

// Arch is a normalized CPU architecture identifier.
type Arch string

// The closed enumeration of supported platforms. Release asset naming
// patterns exist only for these values; anything else is unsupported.
const (
	Linux  OS = "linux"
	Darwin OS = "darwin"

	AMD64 Arch = "amd64"
	ARM64 Arch = "arm64"
)

// ErrUnsupported indicates the host does not map into the supported
// (OS, Arch) enumeration. Wrapped by UnsupportedError; classify with
// errors.Is.
var ErrUnsupported = errors.New("unsupported platform")

var (
	// Test seams for the runtime identifiers.
	//
	//nolint:gochecknoglobals // Test seam requires a package-level variable.
	goosID = func() string { return runtime.GOOS }
	//nolint:gochecknoglobals // Test seam requires a package-level variable.
	goarchID = func() string { return runtime.GOARCH }
)

type (
	// Platform is a normalized (OS, Arch) pair. Both fields are always
	// non-empty on any value produced by Detect or Normalize.
	Platform struct {
		OS   OS
		Arch Arch
	}

	// UnsupportedError reports the raw identifiers that failed to normalize.
	// It wraps ErrUnsupported so callers can use errors.Is for classification.
	UnsupportedError struct {
		Kernel  string
		Machine string
	}
)

// Error formats the offending identifiers as a human-readable message.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s (supported: linux/darwin on amd64/arm64)", e.Kernel, e.Machine)
}

// Unwrap returns ErrUnsupported so callers can use errors.Is.
func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// String returns the canonical os/arch form, e.g. "linux/amd64".
func (p Platform) String() string {
	return string(p.OS) + "/" + string(p.Arch)
}

// Detect normalizes the running host's identifiers. It never retries:
// an unsupported host fails the whole run before any tool is processed.
func Detect() (Platform, error) {
	return Normalize(goosID(), goarchID())
}

// Normalize maps kernel and machine identifiers to a Platform. Both uname
// spellings (Linux, x86_64, aarch64) and Go toolchain spellings (linux,
// amd64, arm64) are accepted; everything else yields an UnsupportedError.
func Normalize(kernel, machine string) (Platform, error) {
	var p Platform

	switch strings.ToLower(kernel) {
	case "linux":
		p.OS = Linux
	case "darwin":
		p.OS = Darwin
	default:
		return Platform{}, &UnsupportedError{Kernel: kernel, Machine: machine}
	}

	switch strings.ToLower(machine) {
	case "x86_64", "amd64":
		p.Arch = AMD64
	case "arm64", "aarch64":
		p.Arch = ARM64
	default:
		return Platform{}, &UnsupportedError{Kernel: kernel, Machine: machine}
	}

	return p, nil
}

// All returns every supported platform, in a stable order. Used to verify
// that asset pattern tables are exhaustive.
func All() []Platform {
	return []Platform{
		{Linux, AMD64},
		{Linux, ARM64},
		{Darwin, AMD64},
		{Darwin, ARM64},
	}
}
