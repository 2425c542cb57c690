package release

import (
	"bufio"
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	goversion "github.com/hashicorp/go-version"

	"github.com/oshokin/chainkeeper/internal/logger"

	// Ensure SHA256 is available for checksum calculation.
	_ "crypto/sha256"
)

const (
	// DefaultFileMode is used when installing downloaded binaries.
	DefaultFileMode os.FileMode = 0o755

	// ChecksumFunction is used to verify downloaded release binaries.
	ChecksumFunction crypto.Hash = crypto.SHA256

	// SumsFilename is the conventional sums file published next to release tarballs.
	SumsFilename = "sha256sums.txt"

	// sumsLineFields is the number of fields in a `<hex>  <filename>` sums line.
	sumsLineFields = 2
)

var (
	// errUnsupportedArch is returned for architectures the release convention does not cover.
	errUnsupportedArch = errors.New("unsupported architecture")
	// errBadHTTPStatus is returned when the release host answers with a non-200 status.
	errBadHTTPStatus = errors.New("unexpected http status")
	// errNoChecksum is returned when the sums file lacks an entry for the downloaded archive.
	errNoChecksum = errors.New("checksum missing for file")
	// errEmptyTemplate is returned when no release URL template is configured.
	errEmptyTemplate = errors.New("release URL template is not configured")
)

// URL expands the release download convention for the given version and
// architecture. Only amd64 and arm64 builds are published.
func URL(template, daemon, version, goarch string) (string, error) {
	if template == "" {
		return "", errEmptyTemplate
	}

	if goarch != "amd64" && goarch != "arm64" {
		return "", fmt.Errorf("%s: %w", goarch, errUnsupportedArch)
	}

	replacer := strings.NewReplacer(
		"{daemon}", daemon,
		"{version}", strings.TrimPrefix(version, "v"),
		"{arch}", goarch,
	)

	return replacer.Replace(template), nil
}

// Fetch downloads the file at url into dir and returns the local path.
// The caller owns dir and its cleanup.
func Fetch(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus)
	}

	outputPath := filepath.Clean(filepath.Join(dir, filepath.Base(req.URL.Path)))

	outputFile, err := os.Create(outputPath)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(outputFile, response.Body)
	if closeErr := outputFile.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}

	return outputPath, nil
}

// ParseSums reads `<hex>  <filename>` lines and returns checksums keyed by filename.
func ParseSums(contents []byte) (map[string][]byte, error) {
	sums := make(map[string][]byte)

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != sumsLineFields {
			return nil, fmt.Errorf("malformed sums line: %q", line)
		}

		checksum, err := hex.DecodeString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("decode checksum for %s: %w", fields[1], err)
		}

		// Sums files may prefix binary-mode names with '*'.
		sums[strings.TrimPrefix(fields[1], "*")] = checksum
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return sums, nil
}

// FetchSums downloads and parses the sums file living next to the archive URL.
// A missing sums file is not an error: verification is skipped with a warning.
func FetchSums(ctx context.Context, archiveURL, dir string) (map[string][]byte, error) {
	sumsURL := strings.TrimSuffix(archiveURL, filepath.Base(archiveURL)) + SumsFilename

	sumsPath, err := Fetch(ctx, sumsURL, dir)
	if err != nil {
		if errors.Is(err, errBadHTTPStatus) {
			logger.WarnKV(ctx, "No sums file published, skipping checksum verification", "url", sumsURL)
			return nil, nil
		}

		return nil, err
	}

	contents, err := os.ReadFile(filepath.Clean(sumsPath))
	if err != nil {
		return nil, err
	}

	return ParseSums(contents)
}

// Apply installs the binary at sourcePath over targetPath. When a checksum is
// provided the replacement is verified and rolled back on mismatch.
func Apply(ctx context.Context, sourcePath, targetPath string, checksum []byte) error {
	data, err := os.ReadFile(filepath.Clean(sourcePath))
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(targetPath), DefaultFileMode); err != nil {
		return err
	}

	if _, err = os.Stat(targetPath); err != nil && os.IsNotExist(err) {
		if _, err = os.Create(targetPath); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: DefaultFileMode,
	}
	if len(checksum) > 0 {
		options.Checksum = checksum
		options.Hash = ChecksumFunction
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply binary %s: %w", targetPath, err)
	}

	logger.InfoKV(ctx, "Installed binary", "path", targetPath)

	oldPath := targetPath + ".old"
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}

// VerifyFile hashes the file at path with ChecksumFunction and compares it
// against the expected checksum. A nil expectation skips verification.
func VerifyFile(path string, expected []byte) error {
	if len(expected) == 0 {
		return nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	hasher := ChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}

	if actual := hasher.Sum(nil); !bytes.Equal(actual, expected) {
		return fmt.Errorf("%s: checksum mismatch: have %s, want %s",
			filepath.Base(path), hex.EncodeToString(actual), hex.EncodeToString(expected))
	}

	return nil
}

// NeedsUpgrade reports whether remote is newer than local.
// An empty local version always needs an upgrade.
func NeedsUpgrade(local, remote string) (bool, error) {
	if local == "" {
		return true, nil
	}

	localVersion, err := goversion.NewVersion(local)
	if err != nil {
		return false, fmt.Errorf("parse local version: %w", err)
	}

	remoteVersion, err := goversion.NewVersion(remote)
	if err != nil {
		return false, fmt.Errorf("parse remote version: %w", err)
	}

	return remoteVersion.GreaterThan(localVersion), nil
}

// ChecksumFor returns the checksum recorded for fileName, or an error when
// sums were published but the entry is missing. Nil sums skip verification.
func ChecksumFor(sums map[string][]byte, fileName string) ([]byte, error) {
	if sums == nil {
		return nil, nil
	}

	checksum, ok := sums[fileName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fileName, errNoChecksum)
	}

	return checksum, nil
}
