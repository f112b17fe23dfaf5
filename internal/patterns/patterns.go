// Package patterns provides the glob matcher shared by every policy component.
//
// Matching follows doublestar semantics: "*" stays within one path segment,
// "**" spans any number of segments, and dot-files are not special. Both the
// pattern and the candidate are case-folded before matching.
package patterns

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matches reports whether text matches any of the glob patterns.
// A leading "./" on text is ignored, so "./dist/a.js" and "dist/a.js" are
// judged identically. Invalid patterns never match.
func Matches(text string, globs []string) bool {
	candidate := strings.ToLower(trimDotSlash(text))
	for _, g := range globs {
		if matchOne(strings.ToLower(strings.TrimSpace(g)), candidate) {
			return true
		}
	}
	return false
}

// Match reports whether text matches a single glob pattern.
func Match(glob, text string) bool {
	return Matches(text, []string{glob})
}

func matchOne(glob, candidate string) bool {
	if glob == "" {
		return false
	}
	if ok, err := doublestar.Match(glob, candidate); err == nil && ok {
		return true
	}
	// "dir/**" also covers "dir" itself.
	if base, ok := strings.CutSuffix(glob, "/**"); ok && base != "" {
		if ok, err := doublestar.Match(base, candidate); err == nil && ok {
			return true
		}
	}
	return false
}

// NormalizePath canonicalizes a path operand before it is matched against
// allow/block lists: "./" prefixes are removed, "." and ".." segments are
// resolved lexically and trailing slashes dropped. "node_modules/../src"
// becomes "src", so a traversal cannot borrow an allowed prefix.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	return trimDotSlash(cleaned)
}

// Validate returns an error if glob is not a well-formed pattern.
func Validate(glob string) error {
	if strings.TrimSpace(glob) == "" {
		return doublestar.ErrBadPattern
	}
	if !doublestar.ValidatePattern(glob) {
		return doublestar.ErrBadPattern
	}
	return nil
}

func trimDotSlash(s string) string {
	for strings.HasPrefix(s, "./") {
		s = strings.TrimLeft(s[2:], "/")
	}
	return s
}
