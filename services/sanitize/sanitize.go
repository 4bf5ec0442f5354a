// Package sanitize turns caller-supplied relative paths into canonical paths
// that are guaranteed to stay inside an ingestion root.
package sanitize

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/meghashyamc/corescout/errs"
)

const maxSegmentLength = 255

var (
	driveLetterPattern  = regexp.MustCompile(`^[A-Za-z]:`)
	reservedNamePattern = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])(\..*)?$`)
)

// Clean validates rel and returns its canonical, slash-separated form. Each
// segment is sanitized on its own; ".." segments are resolved lexically and
// must never climb above the root.
func Clean(rel string) (string, error) {
	if rel == "" {
		return "", &errs.PathEscapeError{Path: rel}
	}

	normalized := strings.ReplaceAll(rel, `\`, "/")
	if strings.HasPrefix(normalized, "/") || driveLetterPattern.MatchString(normalized) {
		return "", &errs.PathEscapeError{Path: rel}
	}

	segments := make([]string, 0, strings.Count(normalized, "/")+1)
	for _, segment := range strings.Split(normalized, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", &errs.PathEscapeError{Path: rel}
			}
			segments = segments[:len(segments)-1]
			continue
		}
		segments = append(segments, Segment(segment))
	}

	if len(segments) == 0 {
		// resolves to the root itself, which is not a file inside it
		return "", &errs.PathEscapeError{Path: rel}
	}

	return path.Join(segments...), nil
}

// Segment replaces characters that are illegal on common filesystems, trims
// leading and trailing dots and spaces, and defuses reserved device names.
// The result never contains a path separator and is never "." or "..".
func Segment(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), ". ")
	if cleaned == "" {
		return "_"
	}
	if reservedNamePattern.MatchString(cleaned) {
		cleaned = "_" + cleaned
	}
	if len(cleaned) > maxSegmentLength {
		cleaned = truncate(cleaned, maxSegmentLength)
	}
	return cleaned
}

// Resolve returns the absolute path of rel under root. The returned path is
// always a strict descendant of root.
func Resolve(root string, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("could not resolve ingestion root %q: %w", root, err)
	}

	cleaned, err := Clean(rel)
	if err != nil {
		return "", &errs.PathEscapeError{Root: absRoot, Path: rel}
	}

	resolved := filepath.Join(absRoot, filepath.FromSlash(cleaned))
	if !IsDescendant(absRoot, resolved) {
		return "", &errs.PathEscapeError{Root: absRoot, Path: rel}
	}

	return resolved, nil
}

// Stage resolves rel under root, creates any intermediate directories (only
// below root) and writes content. It returns the canonical relative path and
// the absolute path written.
func Stage(root string, rel string, content []byte) (string, string, error) {
	resolved, err := Resolve(root, rel)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", "", fmt.Errorf("could not create staging directory for %q: %w", rel, err)
	}
	if err := os.WriteFile(resolved, content, 0o644); err != nil {
		return "", "", fmt.Errorf("could not stage %q: %w", rel, err)
	}

	cleaned, _ := Clean(rel)
	return cleaned, resolved, nil
}

// IsDescendant reports whether candidate lies strictly below root. Both paths
// must be absolute.
func IsDescendant(root string, candidate string) bool {
	relative, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if relative == "." || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(relative)
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	// back off to a rune boundary
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
