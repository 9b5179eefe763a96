// Package fsutil provides small filesystem helpers shared by the staging and
// output trees.
package fsutil

import (
	"os"
)

// tempSuffix marks in-progress writes. Fetch and assembly write to a
// temporary sibling and rename into place, so a crash never leaves a
// truncated file at a canonical path.
const tempSuffix = ".tmp"

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// TempFor returns the temporary sibling used for atomic writes to path.
func TempFor(path string) string {
	return path + tempSuffix
}

// IsTemp reports whether path carries the in-progress suffix.
func IsTemp(path string) bool {
	return len(path) > len(tempSuffix) && path[len(path)-len(tempSuffix):] == tempSuffix
}

// RemoveIfEmpty deletes dir when it exists and holds no entries. A missing
// directory is not an error.
func RemoveIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(dir)
}
