package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestURL verifies template expansion and architecture checks.
func TestURL(t *testing.T) {
	t.Parallel()

	template := "https://example.com/releases/v{version}/{daemon}_{version}_linux_{arch}.tar.gz"

	got, err := URL(template, "gaiad", "v17.2.0", "amd64")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/releases/v17.2.0/gaiad_17.2.0_linux_amd64.tar.gz", got)

	got, err = URL(template, "gaiad", "17.2.0", "arm64")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/releases/v17.2.0/gaiad_17.2.0_linux_arm64.tar.gz", got)

	_, err = URL(template, "gaiad", "17.2.0", "riscv64")
	require.ErrorIs(t, err, errUnsupportedArch)

	_, err = URL("", "gaiad", "17.2.0", "amd64")
	require.ErrorIs(t, err, errEmptyTemplate)
}

// TestParseSums covers well-formed, commented and malformed sums files.
func TestParseSums(t *testing.T) {
	t.Parallel()

	digest := sha256.Sum256([]byte("binary contents"))
	line := hex.EncodeToString(digest[:])

	sums, err := ParseSums([]byte(
		"# release sums\n" +
			line + "  gaiad_17.2.0_linux_amd64.tar.gz\n" +
			line + "  *gaiad_17.2.0_linux_arm64.tar.gz\n\n",
	))
	require.NoError(t, err)
	require.Len(t, sums, 2)
	require.Equal(t, digest[:], sums["gaiad_17.2.0_linux_amd64.tar.gz"])
	require.Equal(t, digest[:], sums["gaiad_17.2.0_linux_arm64.tar.gz"])

	_, err = ParseSums([]byte("justonefield\n"))
	require.Error(t, err)

	_, err = ParseSums([]byte("nothex  file.tar.gz\n"))
	require.Error(t, err)

	checksum, err := ChecksumFor(sums, "gaiad_17.2.0_linux_amd64.tar.gz")
	require.NoError(t, err)
	require.Equal(t, digest[:], checksum)

	_, err = ChecksumFor(sums, "missing.tar.gz")
	require.Error(t, err)

	// Nil sums disable verification entirely.
	checksum, err = ChecksumFor(nil, "anything")
	require.NoError(t, err)
	require.Nil(t, checksum)
}

// TestFetchAndVerify downloads a file from a test server and checks its digest.
func TestFetchAndVerify(t *testing.T) {
	t.Parallel()

	payload := []byte("node binary payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gaiad.tar.gz" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()

	path, err := Fetch(context.Background(), server.URL+"/gaiad.tar.gz", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "gaiad.tar.gz"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, contents)

	digest := sha256.Sum256(payload)
	require.NoError(t, err)
	require.NoError(t, VerifyFile(path, digest[:]))

	wrong := sha256.Sum256([]byte("something else"))
	require.Error(t, VerifyFile(path, wrong[:]))

	// Missing files are plain HTTP errors.
	_, err = Fetch(context.Background(), server.URL+"/missing.tar.gz", dir)
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestNeedsUpgrade exercises semver comparison including the empty-local case.
func TestNeedsUpgrade(t *testing.T) {
	t.Parallel()

	needed, err := NeedsUpgrade("", "v17.2.0")
	require.NoError(t, err)
	require.True(t, needed)

	needed, err = NeedsUpgrade("v17.1.0", "v17.2.0")
	require.NoError(t, err)
	require.True(t, needed)

	needed, err = NeedsUpgrade("17.2.0", "v17.2.0")
	require.NoError(t, err)
	require.False(t, needed)

	needed, err = NeedsUpgrade("v18.0.0", "v17.2.0")
	require.NoError(t, err)
	require.False(t, needed)

	_, err = NeedsUpgrade("not-a-version", "v17.2.0")
	require.Error(t, err)
}

// TestApply installs a binary over an existing target with checksum verification.
func TestApply(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "gaiad.new")
	targetPath := filepath.Join(dir, "bin", "gaiad")
	payload := []byte("#!/bin/true new version")

	require.NoError(t, os.WriteFile(sourcePath, payload, 0o755))

	digest := sha256.Sum256(payload)
	require.NoError(t, Apply(context.Background(), sourcePath, targetPath, digest[:]))

	installed, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, payload, installed)

	// A wrong checksum must not clobber the target.
	wrong := sha256.Sum256([]byte("tampered"))
	require.Error(t, Apply(context.Background(), sourcePath, targetPath, wrong[:]))

	installed, err = os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, payload, installed)
}
