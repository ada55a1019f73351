// Package security guards resource names and paths derived from caller-supplied
// transfer identifiers.
package security

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	maxComponentLen = 64
	// '_' plus 16 hex digits of the digest
	digestSuffixLen = 17
)

// SanitizeComponent maps s onto a string safe to embed in a file or segment
// name. Characters outside [A-Za-z0-9.-] become '_', so no separator or
// traversal sequence survives. Empty input yields "_".
//
// Distinct inputs give distinct outputs. An input that passes unchanged never
// contains '_'; any other input is shortened if needed and ends in '_' and
// the xxhash of the original, so replacing or truncating characters cannot
// make two identifiers collide.
func SanitizeComponent(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			changed = true
		}
	}
	out := b.String()
	if !changed && len(out) <= maxComponentLen {
		return out
	}
	if len(out) > maxComponentLen-digestSuffixLen {
		out = out[:maxComponentLen-digestSuffixLen]
	}
	return fmt.Sprintf("%s_%016x", out, xxhash.Sum64String(s))
}

// WithinRoot reports whether path resolves to a location strictly inside root.
func WithinRoot(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
