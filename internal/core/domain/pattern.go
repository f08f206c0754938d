package domain

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchPath reports whether the root-relative path name matches pattern.
// Patterns support ** and {a,b}; a pattern without wildcards also matches
// everything below it when it names a directory.
func MatchPath(pattern, name string) bool {
	pattern, name = CleanPattern(pattern), CleanPattern(name)
	if ok, err := doublestar.Match(pattern, name); err == nil && ok {
		return true
	}
	if !hasMeta(pattern) {
		return IsWithin(pattern, name)
	}
	return false
}

// PatternsOverlap reports whether two path patterns may name a common file.
// Two wildcard patterns are compared by their static base directories and
// their literal extensions, which errs on the side of reporting an overlap.
func PatternsOverlap(a, b string) bool {
	a, b = CleanPattern(a), CleanPattern(b)
	if a == b {
		return true
	}

	aMeta, bMeta := hasMeta(a), hasMeta(b)
	switch {
	case !aMeta && !bMeta:
		return IsWithin(a, b) || IsWithin(b, a)
	case !aMeta:
		return MatchPath(b, a) || IsWithin(a, PatternBase(b))
	case !bMeta:
		return MatchPath(a, b) || IsWithin(b, PatternBase(a))
	}

	ba, bb := PatternBase(a), PatternBase(b)
	if !IsWithin(ba, bb) && !IsWithin(bb, ba) {
		return false
	}
	ea, eb := literalExt(a), literalExt(b)
	return ea == "" || eb == "" || ea == eb
}

// CleanPattern normalises a pattern to a slash-separated, root-relative form.
func CleanPattern(p string) string {
	if p == "" {
		return p
	}
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}

// HasMeta reports whether p contains glob metacharacters.
func HasMeta(p string) bool {
	return hasMeta(p)
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{\\")
}

// PatternBase returns the static directory prefix of a glob, or the pattern itself when it has no wildcards.
func PatternBase(p string) string {
	p = CleanPattern(p)
	if !hasMeta(p) {
		return p
	}
	base, _ := doublestar.SplitPattern(p)
	return base
}

// IsWithin reports whether child equals parent or lies below it.
func IsWithin(parent, child string) bool {
	if parent == "." || parent == child {
		return true
	}
	return strings.HasPrefix(child, strings.TrimSuffix(parent, "/")+"/")
}

func literalExt(p string) string {
	seg := p[strings.LastIndex(p, "/")+1:]
	i := strings.LastIndex(seg, ".")
	if i < 0 {
		return ""
	}
	ext := seg[i:]
	if hasMeta(ext) {
		return ""
	}
	return ext
}
