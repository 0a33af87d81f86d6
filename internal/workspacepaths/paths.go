// Package workspacepaths normalizes filesystem paths for workspace
// matching so that trailing separators and case differences on
// case-insensitive filesystems do not split one workspace into two.
package workspacepaths

import (
	"path/filepath"
	"runtime"
	"strings"

	"cockpit/internal/types"
)

// Normalize cleans a path for comparison: Clean, trailing separator
// stripped, and case-folded on platforms with case-insensitive default
// filesystems.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	if len(path) > 1 {
		path = strings.TrimRight(path, string(filepath.Separator))
	}
	if caseInsensitive() {
		path = strings.ToLower(path)
	}
	return path
}

// SamePath reports whether two paths refer to the same directory after
// normalization.
func SamePath(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// WorkspaceFor returns the workspace whose root contains cwd, preferring
// the deepest matching root. Nil when no workspace matches.
func WorkspaceFor(workspaces []*types.Workspace, cwd string) *types.Workspace {
	target := Normalize(cwd)
	if target == "" {
		return nil
	}
	var best *types.Workspace
	bestLen := -1
	for _, ws := range workspaces {
		root := Normalize(ws.RootPath)
		if root == "" {
			continue
		}
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > bestLen {
			best = ws
			bestLen = len(root)
		}
	}
	return best
}

func caseInsensitive() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows"
}
