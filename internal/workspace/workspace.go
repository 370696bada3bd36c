// Package workspace locates the workspace root that scopes
// workspace-level configuration. A workspace root is the nearest
// ancestor directory carrying a recognizable project marker.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// Markers that identify a directory as a workspace root, checked in order.
var rootMarkers = []string{
	".config/openllm",
	".git",
	"go.mod",
	"package.json",
	"Cargo.toml",
}

// DetectRoot walks up from start looking for a workspace marker. It
// returns the empty string when no marker is found before the
// filesystem root.
func DetectRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}

	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// DetectRootFromCwd detects the workspace root starting at the current
// working directory.
func DetectRootFromCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return DetectRoot(cwd)
}

// ResolvePath expands a leading ~ to the user's home directory and
// returns an absolute path.
func ResolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ConfigDir returns the workspace-scoped configuration directory.
func ConfigDir(root string) string {
	return filepath.Join(root, ".config", "openllm")
}
