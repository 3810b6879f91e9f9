// SPDX-License-Identifier: MPL-2.0

// Package install turns a resolved release asset into an executable on the
// host: download, checksum verification against the published .sha256
// sidecar, archive extraction, and an atomic move into the install prefix.
package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"secup/internal/fetch"
	"secup/internal/release"
	"secup/internal/tool"
)

// maxBinaryBytes is the upper bound on extracted binary size (500 MB).
// Prevents decompression bombs when extracting a tool binary from a
// release archive.
const maxBinaryBytes = 500 << 20

// installMode is the permission set applied to installed binaries.
const installMode = 0o755

// ErrBinaryNotFound indicates no suitable executable entry was found inside
// a downloaded archive.
var ErrBinaryNotFound = errors.New("binary not found in archive")

type (
	// Installer places resolved release assets into the install prefix as
	// executable binaries named after their tool.
	Installer struct {
		fetcher *fetch.Fetcher
		prefix  string
		logger  *log.Logger
	}

	// InstallerOption configures an Installer during construction.
	InstallerOption func(*Installer)
)

// WithLogger sets the logger used for install diagnostics.
func WithLogger(l *log.Logger) InstallerOption {
	return func(i *Installer) { i.logger = l }
}

// New creates an Installer that installs binaries under prefix.
func New(fetcher *fetch.Fetcher, prefix string, opts ...InstallerOption) *Installer {
	i := &Installer{
		fetcher: fetcher,
		prefix:  prefix,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install downloads the asset, verifies it against its .sha256 sidecar when
// one is published, extracts the tool binary, and moves it to
// <prefix>/<tool> with mode 0755. The move is a same-directory rename, so a
// pre-existing binary is replaced atomically and is never left in a
// half-written state. Returns the installed path.
func (i *Installer) Install(ctx context.Context, asset *release.ResolvedAsset, t tool.Tool) (_ string, err error) {
	workDir, err := os.MkdirTemp("", "secup-*")
	if err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	artifactPath, err := i.fetcher.DownloadToTemp(ctx, asset.URL, workDir)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", asset.Name, err)
	}

	if err := i.verifySidecar(ctx, asset, artifactPath); err != nil {
		return "", err
	}

	binaryPath, err := extractBinary(artifactPath, asset.Type, t.String(), workDir)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", asset.Name, err)
	}

	installed, err := i.place(binaryPath, t.String())
	if err != nil {
		return "", err
	}

	i.logger.Debug("installed binary", "tool", t, "path", installed)
	return installed, nil
}

// verifySidecar fetches <url>.sha256 and verifies the downloaded artifact
// against it. A missing sidecar is not an error: not every upstream
// publishes per-asset checksums, and the install proceeds unverified with a
// log line recording that.
func (i *Installer) verifySidecar(ctx context.Context, asset *release.ResolvedAsset, artifactPath string) error {
	sidecar, err := i.fetcher.Get(ctx, asset.URL+".sha256")
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			i.logger.Debug("no checksum sidecar published, skipping verification", "asset", asset.Name)
			return nil
		}
		return fmt.Errorf("downloading checksum sidecar: %w", err)
	}

	expected, err := ParseSidecar(sidecar)
	if err != nil {
		return fmt.Errorf("parsing checksum sidecar for %s: %w", asset.Name, err)
	}

	if err := VerifyFile(artifactPath, expected); err != nil {
		return err
	}

	i.logger.Debug("checksum verified", "asset", asset.Name, "sha256", expected)
	return nil
}

// place moves the extracted binary into the install prefix under the tool's
// name. The copy goes to a temp file inside the prefix first so the final
// os.Rename is an atomic same-filesystem move.
func (i *Installer) place(binaryPath, name string) (_ string, err error) {
	if err := os.MkdirAll(i.prefix, installMode); err != nil {
		return "", fmt.Errorf("creating install prefix: %w", err)
	}

	src, err := os.Open(binaryPath)
	if err != nil {
		return "", fmt.Errorf("opening extracted binary: %w", err)
	}
	defer func() { _ = src.Close() }() // read-only file handle

	tmp, err := os.CreateTemp(i.prefix, ".secup-install-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file in prefix: %w", err)
	}

	// Track whether the rename succeeded so the deferred cleanup knows
	// whether to remove the temp file.
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("copying binary into prefix: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("flushing binary: %w", err)
	}

	if err := os.Chmod(tmp.Name(), installMode); err != nil {
		return "", fmt.Errorf("setting binary permissions: %w", err)
	}

	target := filepath.Join(i.prefix, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("installing binary: %w", err)
	}
	renamed = true

	return target, nil
}

// extractBinary locates the tool binary inside the downloaded artifact and
// returns a path to it under workDir. Raw artifacts need no extraction.
func extractBinary(artifactPath string, typ tool.ArtifactType, name, workDir string) (string, error) {
	switch typ {
	case tool.ArchiveGzip:
		return extractTarGz(artifactPath, name, workDir)
	case tool.ArchiveZip:
		return extractZip(artifactPath, name, workDir)
	case tool.RawBinary:
		return artifactPath, nil
	default:
		return "", fmt.Errorf("unsupported artifact type %v", typ)
	}
}

// extractTarGz extracts the tool binary from a gzip-compressed tarball. It
// first looks for an entry whose base name matches the tool exactly and
// carries an executable mode bit; when no such entry exists, it retries by
// name alone, since some build pipelines strip mode bits. The name match is
// never relaxed: an archive without an entry named for the tool fails
// rather than silently installing a wrong artifact.
func extractTarGz(archivePath, name, workDir string) (string, error) {
	executableNamed := func(hdr *tar.Header) bool {
		return hdr.Typeflag == tar.TypeReg &&
			filepath.Base(hdr.Name) == name &&
			hdr.FileInfo().Mode()&0o111 != 0
	}
	anyNamed := func(hdr *tar.Header) bool {
		return hdr.Typeflag == tar.TypeReg && filepath.Base(hdr.Name) == name
	}

	path, err := extractTarEntry(archivePath, workDir, executableNamed)
	if errors.Is(err, ErrBinaryNotFound) {
		path, err = extractTarEntry(archivePath, workDir, anyNamed)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// extractTarEntry scans the tarball for the first entry accepted by match
// and extracts it into workDir. Returns ErrBinaryNotFound when no entry
// matches.
func extractTarEntry(archivePath, workDir string, match func(*tar.Header) bool) (_ string, err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() {
		// Gzip reader wraps the underlying file; close errors are not
		// actionable here since we only read from it.
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return "", fmt.Errorf("reading tar entry: %w", nextErr)
		}

		if !match(hdr) {
			continue
		}

		return writeEntry(workDir, io.LimitReader(tr, maxBinaryBytes))
	}

	return "", ErrBinaryNotFound
}

// extractZip extracts the tool binary from a zip archive. Zip entries from
// some build pipelines carry no mode bits, so matching is by base name
// only, and there is no any-executable fallback.
func extractZip(archivePath, name, workDir string) (_ string, err error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening zip archive: %w", err)
	}
	defer func() { _ = zr.Close() }() // read-only archive handle

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || filepath.Base(entry.Name) != name {
			continue
		}

		rc, openErr := entry.Open()
		if openErr != nil {
			return "", fmt.Errorf("opening zip entry %s: %w", entry.Name, openErr)
		}

		path, writeErr := writeEntry(workDir, io.LimitReader(rc, maxBinaryBytes))
		_ = rc.Close()
		if writeErr != nil {
			return "", writeErr
		}
		return path, nil
	}

	return "", ErrBinaryNotFound
}

// writeEntry copies an archive entry into a temp file under workDir and
// returns its path.
func writeEntry(workDir string, r io.Reader) (_ string, err error) {
	tmp, err := os.CreateTemp(workDir, "secup-extract-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for binary: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		// Best-effort removal of partially written temp file.
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("extracting binary: %w", err)
	}

	return tmp.Name(), nil
}
