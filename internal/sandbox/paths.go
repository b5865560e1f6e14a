package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveSymlinks resolves symlinks in absPath. For paths that do not
// exist yet (write destinations), the parent directory is resolved
// instead so a symlinked parent cannot smuggle a path out of the root.
func resolveSymlinks(absPath string) string {
	resolved, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		return resolved
	}
	if os.IsNotExist(err) {
		parent := filepath.Dir(absPath)
		resolvedParent, err2 := filepath.EvalSymlinks(parent)
		if err2 != nil {
			return absPath
		}
		return filepath.Join(resolvedParent, filepath.Base(absPath))
	}
	return absPath
}

// isSubpath reports whether child equals parent or lies beneath it.
func isSubpath(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
