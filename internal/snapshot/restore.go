package snapshot

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/oshokin/chainkeeper/internal/logger"
)

const (
	// dirMode is used for directories created during extraction.
	dirMode os.FileMode = 0o755
	// fileMode is the fallback mode for extracted files without one.
	fileMode os.FileMode = 0o644
)

// Restore replaces dataDir with the snapshot archive at archiveURL.
//
// Files listed in keep (paths relative to dataDir) are moved aside before the
// data directory is wiped and moved back after extraction, so a validator's
// consensus state survives the restore. The archive is streamed: download,
// lz4 decompression and tar extraction happen in one pass without an
// intermediate file.
func Restore(ctx context.Context, archiveURL, dataDir string, keep []string) error {
	backupDir, err := os.MkdirTemp("", "chainkeeper-keep-")
	if err != nil {
		return err
	}

	preserved, err := stashKeepFiles(ctx, dataDir, backupDir, keep)
	if err != nil {
		_ = os.RemoveAll(backupDir)

		return err
	}

	if err = replaceData(ctx, archiveURL, dataDir); err != nil {
		// The data dir is wiped at this point, so the stash holds the only
		// copy of the preserved files. Put them back before reporting the
		// failure; if even that fails, keep the backup and say where it is.
		if restoreErr := restoreKeepFiles(ctx, backupDir, dataDir, preserved); restoreErr != nil {
			logger.ErrorKV(ctx, "Preserved files left in backup directory",
				"backup_dir", backupDir, "error", restoreErr)

			return err
		}

		_ = os.RemoveAll(backupDir)

		return err
	}

	if err = restoreKeepFiles(ctx, backupDir, dataDir, preserved); err != nil {
		logger.ErrorKV(ctx, "Preserved files left in backup directory",
			"backup_dir", backupDir, "error", err)

		return err
	}

	_ = os.RemoveAll(backupDir)

	return nil
}

// replaceData wipes dataDir and extracts the archive into the fresh directory.
func replaceData(ctx context.Context, archiveURL, dataDir string) error {
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("clear data directory: %w", err)
	}

	if err := os.MkdirAll(dataDir, dirMode); err != nil {
		return err
	}

	return streamExtract(ctx, archiveURL, dataDir)
}

// stashKeepFiles copies the preserved files into backupDir and returns the
// relative paths that actually existed.
func stashKeepFiles(ctx context.Context, dataDir, backupDir string, keep []string) ([]string, error) {
	var preserved []string

	for _, relative := range keep {
		sourcePath := filepath.Join(dataDir, relative)
		if _, err := os.Stat(sourcePath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, err
		}

		backupPath := filepath.Join(backupDir, relative)
		if err := copyFile(sourcePath, backupPath); err != nil {
			return nil, fmt.Errorf("preserve %s: %w", relative, err)
		}

		preserved = append(preserved, relative)

		logger.InfoKV(ctx, "Preserved file before restore", "file", relative)
	}

	return preserved, nil
}

// restoreKeepFiles copies the preserved files from their stash back into dataDir.
func restoreKeepFiles(ctx context.Context, backupDir, dataDir string, preserved []string) error {
	for _, relative := range preserved {
		backupPath := filepath.Join(backupDir, relative)
		targetPath := filepath.Join(dataDir, relative)

		if err := copyFile(backupPath, targetPath); err != nil {
			return fmt.Errorf("restore %s: %w", relative, err)
		}

		logger.InfoKV(ctx, "Restored preserved file", "file", relative)
	}

	return nil
}

// streamExtract downloads the archive and extracts it over destDir in one pass.
func streamExtract(ctx context.Context, archiveURL, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", archiveURL, response.Status, errBadHTTPStatus)
	}

	tarReader := tar.NewReader(lz4.NewReader(response.Body))

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read snapshot archive: %w", err)
		}

		if err = extractMember(destDir, header, tarReader); err != nil {
			return err
		}
	}
}

// extractMember writes a single tar member under destDir.
func extractMember(destDir string, header *tar.Header, contents io.Reader) error {
	name := strings.TrimPrefix(header.Name, "./")
	if name == "" || name == "." {
		return nil
	}

	if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("unsafe archive member name: %q", header.Name)
	}

	targetPath := filepath.Join(destDir, name)

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(targetPath, dirMode)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(targetPath), dirMode); err != nil {
			return err
		}

		mode := os.FileMode(header.Mode)
		if mode == 0 {
			mode = fileMode
		}

		outputFile, err := os.OpenFile(filepath.Clean(targetPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return err
		}

		_, err = io.Copy(outputFile, contents)
		if closeErr := outputFile.Close(); err == nil {
			err = closeErr
		}

		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}

		return nil
	default:
		// Symlinks and special files are not expected in chain snapshots.
		return nil
	}
}

// copyFile duplicates a regular file, creating parent directories as needed.
func copyFile(sourcePath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), dirMode); err != nil {
		return err
	}

	sourceFile, err := os.Open(filepath.Clean(sourcePath))
	if err != nil {
		return err
	}

	defer func() {
		_ = sourceFile.Close()
	}()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(filepath.Clean(destPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return err
	}

	_, err = io.Copy(destFile, sourceFile)
	if closeErr := destFile.Close(); err == nil {
		err = closeErr
	}

	return err
}
