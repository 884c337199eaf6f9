// Package security holds filesystem guards for files written on behalf of a
// user-supplied path (cluster exports, rendered plots, run databases).
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir.
// Symlinks are resolved on the longest existing prefix of filePath, so a link
// inside safeDir that points elsewhere is rejected even before the target
// file exists.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}
	canonicalPath := canonicalise(absPath)

	rel, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// canonicalise resolves symlinks in the deepest existing ancestor of p and
// re-attaches the not-yet-existing remainder.
func canonicalise(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rest)
		}
		if dir == filepath.Dir(dir) {
			return p
		}
	}
}

// ResolveExportPath joins the final component of name onto root and verifies
// the result stays inside root. Directory components of name are discarded.
func ResolveExportPath(root, name string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("export root not configured")
	}
	base := filepath.Base(name)
	if name == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid export filename %q", name)
	}
	path := filepath.Join(root, base)
	if err := ValidatePathWithinDirectory(path, root); err != nil {
		return "", fmt.Errorf("invalid export path: %w", err)
	}
	return path, nil
}

// SanitizeFilename maps an arbitrary identifier (a run ID, a source file
// stem) to a safe filename: ASCII letters, digits, '.', '_' and '-' survive,
// any other run of characters becomes a single '_', and the result is capped
// at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
