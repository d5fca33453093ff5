package util

import (
	"os"
	"path/filepath"
)

// FindUpward searches startPath and then each parent directory for the first
// of names that exists as a regular file. It returns the file's path, or ""
// when the filesystem root is reached without a match.
func FindUpward(startPath string, names []string) string {
	currentPath := filepath.Clean(startPath)
	if abs, err := filepath.Abs(currentPath); err == nil {
		currentPath = abs
	}

	for {
		for _, name := range names {
			candidate := filepath.Join(currentPath, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}

		// Move to parent directory
		parentPath := filepath.Dir(currentPath)

		// Stop if we've reached the root or can't go higher
		if parentPath == currentPath || parentPath == "." {
			return ""
		}
		currentPath = parentPath
	}
}
