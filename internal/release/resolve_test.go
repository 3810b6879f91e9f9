// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"secup/internal/platform"
	"secup/internal/tool"
)

var (
	linuxAMD64  = platform.Platform{OS: platform.Linux, Arch: platform.AMD64}
	darwinARM64 = platform.Platform{OS: platform.Darwin, Arch: platform.ARM64}
)

func TestSelectAsset_PicksPlatformMatch(t *testing.T) {
	t.Parallel()

	rel := &Release{
		TagName: "v0.74.7",
		Assets: []Asset{
			{Name: "grype_0.74.7_darwin_amd64.tar.gz", BrowserDownloadURL: "https://dl/darwin"},
			{Name: "grype_0.74.7_linux_amd64.tar.gz", BrowserDownloadURL: "https://dl/linux"},
			{Name: "checksums.txt", BrowserDownloadURL: "https://dl/sums"},
		},
	}

	got := SelectAsset(rel, tool.Grype, linuxAMD64)
	if got == nil {
		t.Fatal("expected a match, got nil")
	}
	if got.URL != "https://dl/linux" {
		t.Errorf("got URL %q, want the linux_amd64 asset", got.URL)
	}
	if got.Type != tool.ArchiveGzip {
		t.Errorf("got type %v, want archive-gzip", got.Type)
	}
}

func TestSelectAsset_NoMatchReturnsNil(t *testing.T) {
	t.Parallel()

	rel := &Release{
		TagName: "v3.2.0",
		Assets: []Asset{
			{Name: "checkov_linux_X86_64.zip"},
			{Name: "source.tar.gz"},
		},
	}

	if got := SelectAsset(rel, tool.Checkov, darwinARM64); got != nil {
		t.Errorf("expected nil for unmatched platform, got %+v", got)
	}
}

func TestSelectAsset_FirstMatchWins(t *testing.T) {
	t.Parallel()

	rel := &Release{
		TagName: "v1.28.5",
		Assets: []Asset{
			{Name: "tfsec-linux-amd64", BrowserDownloadURL: "https://dl/first"},
			{Name: "tfsec-linux-amd64", BrowserDownloadURL: "https://dl/second"},
		},
	}

	got := SelectAsset(rel, tool.Tfsec, linuxAMD64)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.URL != "https://dl/first" {
		t.Errorf("got URL %q, want the first asset in listing order", got.URL)
	}
}

func TestSelectAsset_RawBinaryType(t *testing.T) {
	t.Parallel()

	rel := &Release{
		TagName: "v1.28.5",
		Assets:  []Asset{{Name: "tfsec-darwin-arm64", BrowserDownloadURL: "https://dl/tfsec"}},
	}

	got := SelectAsset(rel, tool.Tfsec, darwinARM64)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Type != tool.RawBinary {
		t.Errorf("got type %v, want raw-binary", got.Type)
	}
}

func TestSelectAsset_SuffixOverridesHint(t *testing.T) {
	t.Parallel()

	// The zip suffix is authoritative even though the pattern table could
	// hint differently for the tool.
	rel := &Release{
		TagName: "v3.2.0",
		Assets:  []Asset{{Name: "checkov_linux_X86_64.zip", BrowserDownloadURL: "https://dl/checkov"}},
	}

	got := SelectAsset(rel, tool.Checkov, linuxAMD64)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Type != tool.ArchiveZip {
		t.Errorf("got type %v, want archive-zip", got.Type)
	}
}

func TestResolver_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/aquasecurity/trivy/releases/latest" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"tag_name": "v0.50.1",
			"assets": [
				{"name": "trivy_0.50.1_macOS-ARM64.tar.gz", "browser_download_url": "https://dl/mac"},
				{"name": "trivy_0.50.1_Linux-64bit.tar.gz", "browser_download_url": "https://dl/linux"}
			]
		}`)
	}))
	defer srv.Close()

	r := NewResolver(NewGitHubClient(WithBaseURL(srv.URL)))

	tag, err := r.LatestTag(context.Background(), "aquasecurity/trivy")
	if err != nil {
		t.Fatalf("LatestTag: %v", err)
	}
	if tag != "v0.50.1" {
		t.Errorf("got tag %q", tag)
	}

	asset, err := r.Resolve(context.Background(), tool.Trivy, linuxAMD64)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if asset == nil {
		t.Fatal("expected an asset")
	}
	if asset.URL != "https://dl/linux" {
		t.Errorf("got URL %q", asset.URL)
	}
	if asset.Type != tool.ArchiveGzip {
		t.Errorf("got type %v", asset.Type)
	}
}

func TestResolver_NoMatchIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"tag_name": "v3.2.0", "assets": [{"name": "checkov_linux_X86_64.zip", "browser_download_url": "https://dl/x"}]}`)
	}))
	defer srv.Close()

	r := NewResolver(NewGitHubClient(WithBaseURL(srv.URL)))

	asset, err := r.Resolve(context.Background(), tool.Checkov, darwinARM64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset != nil {
		t.Errorf("expected nil asset, got %+v", asset)
	}
}
