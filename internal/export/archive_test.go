package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck // read-only handle

	entries := make(map[string]string, len(reader.File))
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = string(data)
	}
	return entries
}

func TestCreateArchiveEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, CreateArchive(path))
	require.Empty(t, readEntries(t, path))
}

func TestAppendAcrossSessions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, CreateArchive(path))

	w, err := OpenForAppend(path)
	require.NoError(t, err)
	require.NoError(t, w.AddEntry("index.html", []byte("<html>one</html>")))
	require.NoError(t, w.Close())

	w, err = OpenForAppend(path)
	require.NoError(t, err)
	require.NoError(t, w.AddEntry("about.html", []byte("<html>two</html>")))
	require.NoError(t, w.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	require.Equal(t, "<html>one</html>", entries["index.html"])
	require.Equal(t, "<html>two</html>", entries["about.html"])
}

func TestAddFileStreamsContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpegdata"), 0o600))

	path := filepath.Join(dir, "out.zip")
	require.NoError(t, CreateArchive(path))

	w, err := OpenForAppend(path)
	require.NoError(t, err)
	require.NoError(t, w.AddFile("uploads/photo.jpg", src))
	require.NoError(t, w.Close())

	entries := readEntries(t, path)
	require.Equal(t, "jpegdata", entries["uploads/photo.jpg"])
}

func TestAddFileMissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	require.NoError(t, CreateArchive(path))

	w, err := OpenForAppend(path)
	require.NoError(t, err)
	require.Error(t, w.AddFile("uploads/gone.jpg", filepath.Join(dir, "gone.jpg")))
	require.NoError(t, w.Close())
}

func TestAbortLeavesOriginalIntact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	require.NoError(t, CreateArchive(path))

	w, err := OpenForAppend(path)
	require.NoError(t, err)
	require.NoError(t, w.AddEntry("index.html", []byte("keep")))
	require.NoError(t, w.Close())

	w, err = OpenForAppend(path)
	require.NoError(t, err)
	require.NoError(t, w.AddEntry("discard.html", []byte("discard")))
	w.Abort()

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	require.Contains(t, entries, "index.html")

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestOpenForAppendMissingArchive(t *testing.T) {
	t.Parallel()

	_, err := OpenForAppend(filepath.Join(t.TempDir(), "nope.zip"))
	require.ErrorIs(t, err, ErrArchiveOpen)
}
