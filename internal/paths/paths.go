package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirName is the per-project directory holding config, the database and logs
const DataDirName = ".scadforge"

// Normalize reduces slash-delimited segments to the shortest equivalent
// relative path. Empty and "." segments are skipped, ".." pops the previous
// segment; a ".." with nothing to pop is absorbed.
func Normalize(segments ...string) string {
	return strings.Join(reduce(segments), "/")
}

// NormalizeAbs is Normalize with a single leading slash
func NormalizeAbs(segments ...string) string {
	return "/" + Normalize(segments...)
}

func reduce(segments []string) []string {
	stack := make([]string, 0, len(segments))
	for _, segment := range segments {
		for _, part := range strings.Split(segment, "/") {
			switch part {
			case "", ".":
			case "..":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			default:
				stack = append(stack, part)
			}
		}
	}
	return stack
}

// Join resolves rel against the directory base
func Join(base, rel string) string {
	return Normalize(base, rel)
}

// Dir returns the directory part of a slash path, "" for top-level files
func Dir(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

// IsAbs reports whether p starts at the namespace root
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// HasPrefix reports whether p lies under the directory prefix, segment-wise.
// "/SFLibs/a.scad" is under "/SFLibs"; "/SFLibsExtra/a.scad" is not.
func HasPrefix(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// CanonicalizePath converts an absolute path to a project-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to project root
// - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, projectRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(projectRoot)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = projectRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRepo checks if a host path is within the project root
func IsWithinRepo(path string, projectRoot string) bool {
	canonical, err := CanonicalizePath(path, projectRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// JoinRepoPath joins a project root with a canonical slash path
func JoinRepoPath(projectRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{projectRoot}, parts...)...)
}

// DataDir returns <projectRoot>/.scadforge
func DataDir(projectRoot string) string {
	return filepath.Join(projectRoot, DataDirName)
}

// EnsureDataDir creates the project data directory if needed
func EnsureDataDir(projectRoot string) (string, error) {
	dir := DataDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
