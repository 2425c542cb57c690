package release

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// errMemberNotFound is returned when the requested member is absent from an archive.
var errMemberNotFound = errors.New("member not found in archive")

// ExtractBinary pulls the named member out of a gzip tarball into destDir and
// returns the extracted path. Member names are matched on their base name so
// both flat archives and `bin/<name>` layouts work.
func ExtractBinary(archivePath, name, destDir string) (string, error) {
	archive, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = archive.Close()
	}()

	gzipReader, err := gzip.NewReader(archive)
	if err != nil {
		return "", fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("read archive: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		if err = rejectTraversal(header.Name); err != nil {
			return "", err
		}

		if filepath.Base(header.Name) != name {
			continue
		}

		outputPath := filepath.Join(destDir, name)

		if err = writeMember(outputPath, tarReader, os.FileMode(header.Mode)|DefaultFileMode); err != nil {
			return "", err
		}

		return outputPath, nil
	}

	return "", fmt.Errorf("%s in %s: %w", name, filepath.Base(archivePath), errMemberNotFound)
}

// writeMember copies a single archive member to disk.
func writeMember(path string, contents io.Reader, mode os.FileMode) error {
	outputFile, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(outputFile, contents)
	if closeErr := outputFile.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	return nil
}

// rejectTraversal refuses archive member names that would escape the
// extraction directory.
func rejectTraversal(name string) error {
	if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("unsafe archive member name: %q", name)
	}

	return nil
}
