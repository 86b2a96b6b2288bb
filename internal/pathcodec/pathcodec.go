// Package pathcodec turns filesystem paths into the canonical, separator-independent
// keys used to persist and look up entries.
package pathcodec

import (
	"path"
	"path/filepath"
	"strings"
)

// Canonicalize returns the canonical key for p. Relative paths are resolved
// against the working directory, the result is cleaned and every separator
// (including a literal backslash) becomes a forward slash, so the same location
// yields the same key on every platform.
func Canonicalize(p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && !isWindowsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	slashed := strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
	cleaned := path.Clean(slashed)
	if len(cleaned) == 2 && cleaned[1] == ':' {
		// A bare drive is its root.
		cleaned += "/"
	}
	return cleaned
}

// isWindowsAbs reports whether p looks like a drive-letter or UNC path, which
// filepath.IsAbs does not recognise outside Windows.
func isWindowsAbs(p string) bool {
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// Parent returns the canonical parent of a canonical path. ok is false for a
// root ("/" or "C:/").
func Parent(canonical string) (parent string, ok bool) {
	dir := path.Dir(canonical)
	if dir == canonical || canonical == "" || strings.HasSuffix(canonical, ":/") {
		return "", false
	}
	if strings.HasSuffix(dir, ":") {
		dir += "/"
	}
	return dir, true
}

// Base returns the last element of a canonical path.
func Base(canonical string) string {
	return path.Base(canonical)
}

// IsUnder reports whether canonical equals root or lies beneath it.
func IsUnder(canonical, root string) bool {
	if canonical == root {
		return true
	}
	return strings.HasPrefix(canonical, SubtreePrefix(root))
}

// SubtreePrefix returns the prefix shared by every strict descendant of root.
func SubtreePrefix(root string) string {
	if strings.HasSuffix(root, "/") {
		return root
	}
	return root + "/"
}
