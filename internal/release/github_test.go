// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestLatestRelease_Success(t *testing.T) {
	t.Parallel()

	descriptor := githubRelease{
		TagName: "v0.74.7",
		Assets: []githubAsset{
			{
				Name:               "grype_0.74.7_linux_amd64.tar.gz",
				BrowserDownloadURL: "https://github.com/anchore/grype/releases/download/v0.74.7/grype_0.74.7_linux_amd64.tar.gz",
				Size:               31457280,
			},
			{
				Name:               "checksums.txt",
				BrowserDownloadURL: "https://github.com/anchore/grype/releases/download/v0.74.7/checksums.txt",
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/anchore/grype/releases/latest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(descriptor); err != nil {
			t.Errorf("encoding descriptor: %v", err)
		}
	}))
	defer srv.Close()

	client := NewGitHubClient(WithBaseURL(srv.URL))
	got, err := client.LatestRelease(context.Background(), "anchore/grype")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.TagName != "v0.74.7" {
		t.Errorf("got tag %q, want %q", got.TagName, "v0.74.7")
	}
	if len(got.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got.Assets))
	}
	if got.Assets[0].Name != "grype_0.74.7_linux_amd64.tar.gz" {
		t.Errorf("got asset name %q", got.Assets[0].Name)
	}
	if got.Assets[0].Size != 31457280 {
		t.Errorf("got asset size %d", got.Assets[0].Size)
	}
}

func TestLatestRelease_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))
	defer srv.Close()

	client := NewGitHubClient(WithBaseURL(srv.URL))
	got, err := client.LatestRelease(context.Background(), "aquasecurity/ghost")

	if got != nil {
		t.Errorf("expected nil release, got %+v", got)
	}
	if !errors.Is(err, ErrNoRelease) {
		t.Errorf("expected ErrNoRelease, got %v", err)
	}
}

func TestLatestRelease_RateLimit(t *testing.T) {
	t.Parallel()

	resetTime := time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	}))
	defer srv.Close()

	client := NewGitHubClient(WithBaseURL(srv.URL))
	_, err := client.LatestRelease(context.Background(), "aquasecurity/trivy")

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected *RateLimitError, got %T: %v", err, err)
	}
	if rle.Limit != 60 {
		t.Errorf("got limit %d, want 60", rle.Limit)
	}
	if !rle.ResetAt.Equal(resetTime) {
		t.Errorf("got reset %v, want %v", rle.ResetAt, resetTime)
	}
}

func TestLatestRelease_RateLimitHeadersWithQuotaRemaining(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tag_name":"v1.0.0","assets":[]}`)
	}))
	defer srv.Close()

	client := NewGitHubClient(WithBaseURL(srv.URL))
	got, err := client.LatestRelease(context.Background(), "gitleaks/gitleaks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TagName != "v1.0.0" {
		t.Errorf("got tag %q", got.TagName)
	}
}

func TestLatestRelease_TokenAttachedToAPIHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q, want bearer token", got)
		}
		fmt.Fprint(w, `{"tag_name":"v1.0.0","assets":[]}`)
	}))
	defer srv.Close()

	client := NewGitHubClient(WithBaseURL(srv.URL), WithToken("test-token"))
	if _, err := client.LatestRelease(context.Background(), "aquasecurity/tfsec"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLatestRelease_EmptyTagIsNoRelease(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"tag_name":"","assets":[]}`)
	}))
	defer srv.Close()

	client := NewGitHubClient(WithBaseURL(srv.URL))
	_, err := client.LatestRelease(context.Background(), "bridgecrewio/checkov")
	if !errors.Is(err, ErrNoRelease) {
		t.Errorf("expected ErrNoRelease for empty tag, got %v", err)
	}
}
