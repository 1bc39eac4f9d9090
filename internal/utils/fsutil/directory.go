// fsutil/directory.go
package fsutil

import (
	"os"

	"github.com/spf13/afero"
)

// DirExists checks if a directory exists
func DirExists(fs afero.Fs, path string) bool {
	ok, err := afero.DirExists(fs, path)
	return err == nil && ok
}

// CreateDir creates a directory and any missing parents
func CreateDir(fs afero.Fs, path string, perm os.FileMode) error {
	if DirExists(fs, path) {
		return nil
	}
	return fs.MkdirAll(path, perm)
}

// CreateDirIfNotExists creates a directory with standard permissions if it doesn't exist
func CreateDirIfNotExists(fs afero.Fs, path string) error {
	if path == "" || path == "." {
		return nil
	}
	return CreateDir(fs, path, 0o755)
}
