// SPDX-License-Identifier: MPL-2.0

// Package release resolves the correct downloadable asset for a tool and
// host platform from the upstream latest-release descriptor. Resolution is
// performed fresh per tool; descriptors are never cached across tools.
package release

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"secup/internal/platform"
	"secup/internal/tool"
)

type (
	// ResolvedAsset is the outcome of a successful resolution: where to
	// download the artifact and how to handle it.
	ResolvedAsset struct {
		Name string
		URL  string
		Type tool.ArtifactType
	}

	// Resolver selects release assets against the tool table's naming
	// patterns.
	Resolver struct {
		client *GitHubClient
		logger *log.Logger
	}

	// ResolverOption configures a Resolver during construction.
	ResolverOption func(*Resolver)
)

// WithResolverLogger sets the logger used for resolution diagnostics.
func WithResolverLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver backed by the given GitHub client.
func NewResolver(client *GitHubClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: client,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LatestTag fetches the latest release tag for repo. A failure here is
// fatal for the tool being processed: without the tag, the idempotency
// decision cannot be made.
func (r *Resolver) LatestTag(ctx context.Context, repo string) (string, error) {
	rel, err := r.client.LatestRelease(ctx, repo)
	if err != nil {
		return "", err
	}
	return rel.TagName, nil
}

// Resolve fetches the latest release for the tool's repository and selects
// the asset matching the host platform. A nil result with nil error means
// no published asset matches — the caller decides whether that routes to a
// fallback install path or a failure.
func (r *Resolver) Resolve(ctx context.Context, t tool.Tool, plat platform.Platform) (*ResolvedAsset, error) {
	spec := tool.Lookup(t)

	rel, err := r.client.LatestRelease(ctx, spec.Repo)
	if err != nil {
		return nil, err
	}

	resolved := SelectAsset(rel, t, plat)
	if resolved == nil {
		r.logger.Debug("no matching asset", "tool", t, "platform", plat, "assets", len(rel.Assets))
		return nil, nil
	}

	r.logger.Debug("resolved asset", "tool", t, "asset", resolved.Name, "type", resolved.Type)
	return resolved, nil
}

// SelectAsset scans the release's assets in listing order and returns the
// first one whose name matches the tool's pattern for plat, or nil when
// none matches. First-match wins: upstream assets for a single platform are
// expected to be unique, so the permissive tie-break is harmless.
func SelectAsset(rel *Release, t tool.Tool, plat platform.Platform) *ResolvedAsset {
	spec := tool.Lookup(t)

	pattern, ok := spec.AssetPatterns[plat]
	if !ok {
		return nil
	}

	for i := range rel.Assets {
		if !pattern.MatchString(rel.Assets[i].Name) {
			continue
		}
		return &ResolvedAsset{
			Name: rel.Assets[i].Name,
			URL:  rel.Assets[i].BrowserDownloadURL,
			Type: artifactType(rel.Assets[i].Name, spec.Type),
		}
	}

	return nil
}

// artifactType trusts the filename suffix when it is unambiguous and falls
// back to the tool's static hint otherwise. Upstreams occasionally switch
// packaging between releases; the suffix is the ground truth.
func artifactType(name string, hint tool.ArtifactType) tool.ArtifactType {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return tool.ArchiveGzip
	case strings.HasSuffix(name, ".zip"):
		return tool.ArchiveZip
	default:
		return hint
	}
}
