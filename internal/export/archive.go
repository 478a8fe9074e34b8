package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// ZipWriter is an archive that can be appended to across many sessions:
// each open/write/close cycle copies the existing entries into a fresh
// file, appends the new ones, then atomically replaces the original.
// Callers guarantee entry names are unique across the job's lifetime.
type ZipWriter struct {
	path     string
	tempPath string
	file     *os.File
	zw       *zip.Writer
}

// CreateArchive creates an empty archive at path, truncating anything
// already there.
func CreateArchive(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveCreate, err)
	}
	zw := zip.NewWriter(f)
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %v", ErrArchiveCreate, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveCreate, err)
	}
	return nil
}

// OpenForAppend reopens the archive at path for another write session.
// Existing entries are carried over verbatim.
func OpenForAppend(path string) (*ZipWriter, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
	}
	zw := zip.NewWriter(f)

	for _, entry := range reader.File {
		if err := copyEntry(zw, entry); err != nil {
			_ = zw.Close()
			_ = f.Close()
			_ = reader.Close()
			_ = os.Remove(tempPath)
			return nil, fmt.Errorf("%w: carry over %s: %v", ErrArchiveOpen, entry.Name, err)
		}
	}
	if err := reader.Close(); err != nil {
		_ = zw.Close()
		_ = f.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("%w: %v", ErrArchiveOpen, err)
	}

	return &ZipWriter{
		path:     path,
		tempPath: tempPath,
		file:     f,
		zw:       zw,
	}, nil
}

// AddEntry writes data under name.
func (w *ZipWriter) AddEntry(name string, data []byte) error {
	entry, err := w.zw.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// AddFile streams the file at srcPath into an entry under name.
func (w *ZipWriter) AddFile(name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer func() {
		_ = src.Close()
	}()
	entry, err := w.zw.Create(name)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("copy %s: %w", srcPath, err)
	}
	return nil
}

// Close seals the session and replaces the archive with the new file.
// If Close is not reached, the original archive is left intact.
func (w *ZipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.tempPath)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tempPath)
		return fmt.Errorf("close archive file: %w", err)
	}
	if err := os.Rename(w.tempPath, w.path); err != nil {
		_ = os.Remove(w.tempPath)
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

// Abort discards the session, leaving the original archive untouched.
func (w *ZipWriter) Abort() {
	_ = w.zw.Close()
	_ = w.file.Close()
	_ = os.Remove(w.tempPath)
}

func copyEntry(zw *zip.Writer, entry *zip.File) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()
	dst, err := zw.Create(entry.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, rc)
	return err
}
