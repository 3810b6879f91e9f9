// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"secup/internal/install"
	"secup/internal/pkgmgr"
	"secup/internal/release"
	"secup/internal/tool"
	"secup/internal/update"
)

func TestParseTools_DefaultsToFullSet(t *testing.T) {
	t.Parallel()

	tools, err := parseTools(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 5 {
		t.Errorf("got %d tools, want the full set of 5", len(tools))
	}
}

func TestParseTools_NamedSubset(t *testing.T) {
	t.Parallel()

	tools, err := parseTools([]string{"gitleaks", "trivy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 || tools[0] != tool.Gitleaks || tools[1] != tool.Trivy {
		t.Errorf("got %v, want [gitleaks trivy] in the order given", tools)
	}
}

func TestParseTools_UnknownName(t *testing.T) {
	t.Parallel()

	if _, err := parseTools([]string{"semgrep"}); err == nil {
		t.Error("expected an error for an unsupported tool name")
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printSummary(&buf, []update.Result{
		{Tool: tool.Trivy, Outcome: update.OutcomeSkipUpToDate, Version: "0.50.1"},
		{Tool: tool.Grype, Outcome: update.OutcomeUpdated, Version: "0.74.7"},
		{Tool: tool.Gitleaks, Outcome: update.OutcomeInstalled, Version: "8.18.2"},
		{Tool: tool.Tfsec, Outcome: update.OutcomeSkipNotInstalled},
		{Tool: tool.Checkov, Outcome: update.OutcomeFailed, Err: errors.New("boom")},
	})

	out := buf.String()
	for _, want := range []string{
		"trivy: up to date (0.50.1)",
		"grype: updated 0.74.7",
		"gitleaks: installed 8.18.2",
		"tfsec: not installed, skipped (update-only)",
		"checkov: boom",
		"5 tool(s): 1 installed, 1 updated, 1 skipped-up-to-date, 1 skipped-not-installed-update-only, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatToolError_RateLimit(t *testing.T) {
	t.Parallel()

	err := &release.RateLimitError{Limit: 60, ResetAt: time.Now()}
	got := formatToolError(err)
	if !strings.Contains(got, "GITHUB_TOKEN") {
		t.Errorf("rate limit error should suggest a token, got %q", got)
	}
}

func TestFormatToolError_Checksum(t *testing.T) {
	t.Parallel()

	err := &install.ChecksumError{Filename: "trivy.tar.gz", Expected: "aa", Got: "bb"}
	got := formatToolError(err)
	if !strings.Contains(got, "expected aa, got bb") {
		t.Errorf("checksum error should show both hashes, got %q", got)
	}
}

func TestFormatToolError_PipMissing(t *testing.T) {
	t.Parallel()

	got := formatToolError(pkgmgr.ErrPipMissing)
	if !strings.Contains(got, "pip is not installed") {
		t.Errorf("got %q", got)
	}
}
