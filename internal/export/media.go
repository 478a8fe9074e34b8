package export

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// ListMediaFiles walks the upload root and returns the absolute paths of
// every regular file under it. Unreadable entries are skipped rather than
// failing the enumeration.
func ListMediaFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		files = append(files, abs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media root %s: %w", root, err)
	}
	return files, nil
}
