// Package sandbox resolves user-supplied paths relative to a session
// working directory, rejects traversals outside a root, rejects paths that
// match a blocklist of credential/secret locations, and forbids symbolic
// links along the resolved chain.
//
// Adapted from the teacher's internal/security/sandbox.go: the resolve/
// symlink-scan shape survives, generalized to the root-relative contract
// and sensitive-path/symlink error taxonomy spec.md §4.A requires.
package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Resolution is the result of resolving a sandboxed path.
type Resolution struct {
	ResolvedAbsolute string
	RelativeToRoot   string
}

// homoglyphSpaces are Unicode space characters normalized to ASCII space
// before resolution (spec §4.A), defeating homoglyph-based sandbox-escape
// attempts: NBSP, the U+2000-U+200A run, NNBSP, MMSP, and IDEOGRAPHIC SPACE.
var homoglyphSpaces = []rune{
	'\u00A0',
	'\u2000', '\u2001', '\u2002', '\u2003', '\u2004', '\u2005',
	'\u2006', '\u2007', '\u2008', '\u2009', '\u200A',
	'\u202F', '\u205F', '\u3000',
}

// normalizeSpaces replaces homoglyph space characters with ASCII space.
func normalizeSpaces(s string) string {
	for _, r := range homoglyphSpaces {
		s = strings.ReplaceAll(s, string(r), " ")
	}
	return s
}

// expandHome expands a leading ~ or ~/... to the user's home directory.
func expandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolveSandboxPath resolves filePath against cwd (for relative inputs),
// verifies the result stays within root, rejects sensitive locations, and
// forbids symlinked ancestors. Non-existent leaves are not an error: writes
// must be able to create new files.
func ResolveSandboxPath(filePath, cwd, root string) (Resolution, error) {
	expanded := normalizeSpaces(expandHome(filePath))

	var abs string
	if filepath.IsAbs(expanded) {
		abs = filepath.Clean(expanded)
	} else {
		abs = filepath.Clean(filepath.Join(cwd, expanded))
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Resolution{}, err
	}
	absRoot = filepath.Clean(absRoot)

	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return Resolution{}, ErrPathEscapesSandbox
	}

	if isSensitivePath(strings.ToLower(abs)) {
		return Resolution{}, ErrSensitivePath
	}

	if err := checkNoSymlinkAncestors(abs); err != nil {
		return Resolution{}, err
	}

	return Resolution{ResolvedAbsolute: abs, RelativeToRoot: rel}, nil
}

// checkNoSymlinkAncestors walks from the filesystem root down to the parent
// of the resolved path and rejects any component that is a symlink.
// ENOENT during the scan terminates it without error — nonexistent
// ancestors simply mean the path hasn't been created yet.
func checkNoSymlinkAncestors(abs string) error {
	dir := filepath.Dir(abs)
	components := strings.Split(filepath.ToSlash(dir), "/")

	var current string
	if filepath.IsAbs(dir) {
		current = string(filepath.Separator)
	}
	for _, c := range components {
		if c == "" {
			continue
		}
		current = filepath.Join(current, c)
		info, err := os.Lstat(current)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return ErrSymlinkForbidden
		}
	}
	return nil
}
