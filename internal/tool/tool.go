// SPDX-License-Identifier: MPL-2.0

// Package tool defines the fixed set of supported security tools and the
// per-tool metadata needed to probe, resolve, and install them: upstream
// repository, version command, version extraction pattern, and the release
// asset naming pattern for each supported platform.
//
// The table is immutable after init. Adding a tool or a platform entry is a
// reviewable change to this file, not a runtime extension point.
package tool

import (
	"fmt"
	"regexp"

	"secup/internal/platform"
)

// Tool identifies one of the supported security tools.
type Tool string

// The closed enumeration of supported tools, in canonical batch order.
const (
	Trivy    Tool = "trivy"
	Grype    Tool = "grype"
	Gitleaks Tool = "gitleaks"
	Tfsec    Tool = "tfsec"
	Checkov  Tool = "checkov"
)

// ArtifactType tags how a release asset must be handled during install.
type ArtifactType int

const (
	// ArchiveGzip is a .tar.gz archive containing the tool binary.
	ArchiveGzip ArtifactType = iota
	// ArchiveZip is a .zip archive containing the tool binary.
	ArchiveZip
	// RawBinary is an asset that is itself the installable executable.
	RawBinary
)

// String returns a human-readable name for the artifact type.
func (a ArtifactType) String() string {
	switch a {
	case ArchiveGzip:
		return "archive-gzip"
	case ArchiveZip:
		return "archive-zip"
	case RawBinary:
		return "raw-binary"
	}
	return "unknown"
}

// Spec holds the immutable per-tool metadata. One instance per tool,
// defined at package init.
type Spec struct {
	// Repo is the upstream GitHub repository in owner/name form.
	Repo string

	// VersionArgs is the argument vector that makes the installed tool
	// report its version. The first element is the executable name.
	VersionArgs []string

	// VersionPattern extracts the version token from the first line of the
	// version command's output. Capture group 1 is the version. Nil means
	// only the generic MAJOR.MINOR[.PATCH] fallback applies.
	VersionPattern *regexp.Regexp

	// AssetPatterns maps each supported platform to the naming pattern of
	// the matching release asset. A platform may legitimately match no
	// published asset at resolution time; that is not a table error.
	AssetPatterns map[platform.Platform]*regexp.Regexp

	// Type is the statically known artifact type for this tool's assets.
	Type ArtifactType

	// PipPackage, when non-empty, names the pip distribution used as the
	// fallback install path when no release asset matches the host.
	PipPackage string
}

// versionColon matches "Version: 1.2.3" style banners (trivy, grype).
var versionColon = regexp.MustCompile(`Version:\s*v?(\d+\.\d+\.\d+)`)

// specs is the process-wide tool table, read-only after initialization.
//
//nolint:gochecknoglobals // Fixed startup-time table keyed by the Tool enumeration.
var specs = map[Tool]Spec{
	Trivy: {
		Repo:           "aquasecurity/trivy",
		VersionArgs:    []string{"trivy", "--version"},
		VersionPattern: versionColon,
		AssetPatterns: map[platform.Platform]*regexp.Regexp{
			{OS: platform.Linux, Arch: platform.AMD64}:  regexp.MustCompile(`^trivy_[\d.]+_Linux-64bit\.tar\.gz$`),
			{OS: platform.Linux, Arch: platform.ARM64}:  regexp.MustCompile(`^trivy_[\d.]+_Linux-ARM64\.tar\.gz$`),
			{OS: platform.Darwin, Arch: platform.AMD64}: regexp.MustCompile(`^trivy_[\d.]+_macOS-64bit\.tar\.gz$`),
			{OS: platform.Darwin, Arch: platform.ARM64}: regexp.MustCompile(`^trivy_[\d.]+_macOS-ARM64\.tar\.gz$`),
		},
		Type: ArchiveGzip,
	},
	Grype: {
		Repo:           "anchore/grype",
		VersionArgs:    []string{"grype", "version"},
		VersionPattern: versionColon,
		AssetPatterns: map[platform.Platform]*regexp.Regexp{
			{OS: platform.Linux, Arch: platform.AMD64}:  regexp.MustCompile(`^grype_[\d.]+_linux_amd64\.tar\.gz$`),
			{OS: platform.Linux, Arch: platform.ARM64}:  regexp.MustCompile(`^grype_[\d.]+_linux_arm64\.tar\.gz$`),
			{OS: platform.Darwin, Arch: platform.AMD64}: regexp.MustCompile(`^grype_[\d.]+_darwin_amd64\.tar\.gz$`),
			{OS: platform.Darwin, Arch: platform.ARM64}: regexp.MustCompile(`^grype_[\d.]+_darwin_arm64\.tar\.gz$`),
		},
		Type: ArchiveGzip,
	},
	Gitleaks: {
		Repo:        "gitleaks/gitleaks",
		VersionArgs: []string{"gitleaks", "version"},
		// The banner is the bare version number; the generic fallback handles it.
		AssetPatterns: map[platform.Platform]*regexp.Regexp{
			{OS: platform.Linux, Arch: platform.AMD64}:  regexp.MustCompile(`^gitleaks_[\d.]+_linux_x64\.tar\.gz$`),
			{OS: platform.Linux, Arch: platform.ARM64}:  regexp.MustCompile(`^gitleaks_[\d.]+_linux_arm64\.tar\.gz$`),
			{OS: platform.Darwin, Arch: platform.AMD64}: regexp.MustCompile(`^gitleaks_[\d.]+_darwin_x64\.tar\.gz$`),
			{OS: platform.Darwin, Arch: platform.ARM64}: regexp.MustCompile(`^gitleaks_[\d.]+_darwin_arm64\.tar\.gz$`),
		},
		Type: ArchiveGzip,
	},
	Tfsec: {
		Repo:           "aquasecurity/tfsec",
		VersionArgs:    []string{"tfsec", "--version"},
		VersionPattern: regexp.MustCompile(`v?(\d+\.\d+\.\d+)`),
		// tfsec publishes bare per-platform binaries rather than archives,
		// so the patterns are exact filenames.
		AssetPatterns: map[platform.Platform]*regexp.Regexp{
			{OS: platform.Linux, Arch: platform.AMD64}:  regexp.MustCompile(`^tfsec-linux-amd64$`),
			{OS: platform.Linux, Arch: platform.ARM64}:  regexp.MustCompile(`^tfsec-linux-arm64$`),
			{OS: platform.Darwin, Arch: platform.AMD64}: regexp.MustCompile(`^tfsec-darwin-amd64$`),
			{OS: platform.Darwin, Arch: platform.ARM64}: regexp.MustCompile(`^tfsec-darwin-arm64$`),
		},
		Type: RawBinary,
	},
	Checkov: {
		Repo:        "bridgecrewio/checkov",
		VersionArgs: []string{"checkov", "--version"},
		// checkov does not publish binaries for every platform; resolution
		// may legitimately come up empty, in which case the orchestrator
		// falls back to pip.
		AssetPatterns: map[platform.Platform]*regexp.Regexp{
			{OS: platform.Linux, Arch: platform.AMD64}:  regexp.MustCompile(`^checkov_linux_X86_64\.zip$`),
			{OS: platform.Linux, Arch: platform.ARM64}:  regexp.MustCompile(`^checkov_linux_Arm64\.zip$`),
			{OS: platform.Darwin, Arch: platform.AMD64}: regexp.MustCompile(`^checkov_darwin_X86_64\.zip$`),
			{OS: platform.Darwin, Arch: platform.ARM64}: regexp.MustCompile(`^checkov_darwin_Arm64\.zip$`),
		},
		Type:       ArchiveZip,
		PipPackage: "checkov",
	},
}

// All returns the full tool set in canonical batch order.
func All() []Tool {
	return []Tool{Trivy, Grype, Gitleaks, Tfsec, Checkov}
}

// Parse validates a user-supplied tool name against the enumeration.
func Parse(name string) (Tool, error) {
	t := Tool(name)
	if _, ok := specs[t]; !ok {
		return "", fmt.Errorf("unknown tool %q (supported: trivy, grype, gitleaks, tfsec, checkov)", name)
	}
	return t, nil
}

// Lookup returns the spec for a tool. The tool must come from the
// enumeration; unknown values panic, pointing at a programming error.
func Lookup(t Tool) Spec {
	s, ok := specs[t]
	if !ok {
		panic(fmt.Sprintf("tool: no spec for %q", t))
	}
	return s
}

// String returns the tool's canonical name, which is also its installed
// binary name.
func (t Tool) String() string { return string(t) }
