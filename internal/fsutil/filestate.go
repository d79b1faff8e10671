package fsutil

import (
	"os"
	"time"
)

// Exists reports whether a regular file or directory is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ModTime returns the last-modified timestamp of the file at path, or the
// zero time if the file does not exist.
func ModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
