// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"testing"
)

func TestNormalize_SupportedPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kernel  string
		machine string
		want    Platform
	}{
		{"Linux", "x86_64", Platform{Linux, AMD64}},
		{"linux", "amd64", Platform{Linux, AMD64}},
		{"Linux", "aarch64", Platform{Linux, ARM64}},
		{"linux", "arm64", Platform{Linux, ARM64}},
		{"Darwin", "x86_64", Platform{Darwin, AMD64}},
		{"darwin", "amd64", Platform{Darwin, AMD64}},
		{"Darwin", "arm64", Platform{Darwin, ARM64}},
		{"darwin", "aarch64", Platform{Darwin, ARM64}},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.kernel, tt.machine)
		if err != nil {
			t.Errorf("Normalize(%q, %q): unexpected error: %v", tt.kernel, tt.machine, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q, %q) = %v, want %v", tt.kernel, tt.machine, got, tt.want)
		}
	}
}

func TestNormalize_UnsupportedPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kernel  string
		machine string
	}{
		{"Windows_NT", "x86_64"},
		{"windows", "amd64"},
		{"FreeBSD", "amd64"},
		{"Linux", "i686"},
		{"Linux", "armv7l"},
		{"Darwin", "ppc64"},
		{"", ""},
	}

	for _, tt := range tests {
		_, err := Normalize(tt.kernel, tt.machine)
		if err == nil {
			t.Errorf("Normalize(%q, %q): expected error, got nil", tt.kernel, tt.machine)
			continue
		}
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Normalize(%q, %q): expected ErrUnsupported, got %v", tt.kernel, tt.machine, err)
		}

		var ue *UnsupportedError
		if !errors.As(err, &ue) {
			t.Errorf("Normalize(%q, %q): expected *UnsupportedError, got %T", tt.kernel, tt.machine, err)
			continue
		}
		if ue.Kernel != tt.kernel || ue.Machine != tt.machine {
			t.Errorf("UnsupportedError carries (%q, %q), want (%q, %q)", ue.Kernel, ue.Machine, tt.kernel, tt.machine)
		}
	}
}

func TestDetect_UsesRuntimeIdentifiers(t *testing.T) {
	origOS, origArch := goosID, goarchID
	t.Cleanup(func() { goosID, goarchID = origOS, origArch })

	goosID = func() string { return "linux" }
	goarchID = func() string { return "arm64" }

	got, err := Detect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (Platform{Linux, ARM64}) {
		t.Errorf("Detect() = %v, want linux/arm64", got)
	}
}

func TestDetect_UnsupportedHost(t *testing.T) {
	origOS, origArch := goosID, goarchID
	t.Cleanup(func() { goosID, goarchID = origOS, origArch })

	goosID = func() string { return "plan9" }
	goarchID = func() string { return "386" }

	_, err := Detect()
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestPlatformString(t *testing.T) {
	t.Parallel()

	if got := (Platform{Darwin, ARM64}).String(); got != "darwin/arm64" {
		t.Errorf("String() = %q, want %q", got, "darwin/arm64")
	}
}

func TestAll_CoversFullEnumeration(t *testing.T) {
	t.Parallel()

	all := All()
	if len(all) != 4 {
		t.Fatalf("expected 4 supported platforms, got %d", len(all))
	}

	seen := map[Platform]bool{}
	for _, p := range all {
		if seen[p] {
			t.Errorf("duplicate platform %v", p)
		}
		seen[p] = true
	}
}
