package snapshot

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
)

// buildSnapshot produces an in-memory .tar.lz4 archive with the given members.
func buildSnapshot(t *testing.T, members map[string][]byte) []byte {
	t.Helper()

	var buffer bytes.Buffer

	lz4Writer := lz4.NewWriter(&buffer)
	tarWriter := tar.NewWriter(lz4Writer)

	for name, contents := range members {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(contents)),
		}))

		_, err := tarWriter.Write(contents)
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, lz4Writer.Close())

	return buffer.Bytes()
}

// TestRestore replaces a data directory and keeps the validator state file.
func TestRestore(t *testing.T) {
	t.Parallel()

	archive := buildSnapshot(t, map[string][]byte{
		"application.db/000001.sst": []byte("fresh app state"),
		"blockstore.db/000001.sst":  []byte("fresh blocks"),
		"priv_validator_state.json": []byte(`{"height":"0"}`),
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	// Pre-existing state that must not survive, plus the one file that must.
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "stale.db"), []byte("old"), 0o644))

	localState := []byte(`{"height":"21430551","round":0,"step":3}`)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "priv_validator_state.json"), localState, 0o600))

	err := Restore(context.Background(), server.URL, dataDir, []string{"priv_validator_state.json"})
	require.NoError(t, err)

	// Snapshot contents landed.
	contents, err := os.ReadFile(filepath.Join(dataDir, "application.db", "000001.sst"))
	require.NoError(t, err)
	require.Equal(t, []byte("fresh app state"), contents)

	// Old data gone.
	_, err = os.Stat(filepath.Join(dataDir, "stale.db"))
	require.True(t, os.IsNotExist(err))

	// Local validator state won over the archived one.
	contents, err = os.ReadFile(filepath.Join(dataDir, "priv_validator_state.json"))
	require.NoError(t, err)
	require.Equal(t, localState, contents)
}

// TestRestore_MissingKeepFile tolerates keep entries that do not exist yet.
func TestRestore_MissingKeepFile(t *testing.T) {
	t.Parallel()

	archive := buildSnapshot(t, map[string][]byte{
		"blockstore.db/000001.sst": []byte("blocks"),
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	dataDir := filepath.Join(t.TempDir(), "data")

	err := Restore(context.Background(), server.URL, dataDir, []string{"priv_validator_state.json"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dataDir, "blockstore.db", "000001.sst"))
	require.NoError(t, err)
}

// TestRestore_FailedExtraction returns the validator state file to the data
// dir when extraction dies after the wipe.
func TestRestore_FailedExtraction(t *testing.T) {
	t.Parallel()

	archive := buildSnapshot(t, map[string][]byte{
		"application.db/000001.sst": []byte("fresh app state"),
	})

	// Truncating the stream makes lz4 decompression fail mid-extraction,
	// after the old data directory is already gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive[:len(archive)/2])
	}))
	t.Cleanup(server.Close)

	dataDir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	localState := []byte(`{"height":"21430551","round":0,"step":3}`)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "priv_validator_state.json"), localState, 0o600))

	err := Restore(context.Background(), server.URL, dataDir, []string{"priv_validator_state.json"})
	require.Error(t, err)

	contents, err := os.ReadFile(filepath.Join(dataDir, "priv_validator_state.json"))
	require.NoError(t, err)
	require.Equal(t, localState, contents)
}

// TestRestore_UnsafeMember rejects archives trying to escape the data dir.
func TestRestore_UnsafeMember(t *testing.T) {
	t.Parallel()

	archive := buildSnapshot(t, map[string][]byte{
		"../outside.txt": []byte("escape"),
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	err := Restore(context.Background(), server.URL, filepath.Join(t.TempDir(), "data"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsafe archive member")
}
