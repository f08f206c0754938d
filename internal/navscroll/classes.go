package navscroll

import (
	"net/url"
	"slices"
	"strings"
)

// CSS classes toggled on the navigation element.
const (
	ClassNavUp       = "is-navUp"
	ClassTransparent = "headerSubpage-transparent"
)

// ClassList is the class attribute of the navigation element.
type ClassList interface {
	Add(name string)
	Remove(name string)
}

// Apply toggles the navigation classes for d. NoChange leaves the list untouched.
func (d Decision) Apply(classes ClassList) {
	switch d.Visibility {
	case NoChange:
		return
	case Hide:
		classes.Add(ClassNavUp)
	case Show:
		classes.Remove(ClassNavUp)
	}

	if !d.Banner {
		return
	}
	if d.Transparent {
		classes.Add(ClassTransparent)
	} else {
		classes.Remove(ClassTransparent)
	}
}

// ClassSet is an in-memory ClassList.
type ClassSet map[string]struct{}

// Add adds name to the set.
func (s ClassSet) Add(name string) {
	s[name] = struct{}{}
}

// Remove removes name from the set.
func (s ClassSet) Remove(name string) {
	delete(s, name)
}

// Has reports whether name is in the set.
func (s ClassSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// String renders the set like a class attribute, sorted.
func (s ClassSet) String() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, " ")
}

// SamePageAnchor reports whether following link from current should smooth-scroll
// instead of navigating: same path ignoring a leading slash, same host, and a non-empty fragment.
func SamePageAnchor(current, link *url.URL) bool {
	if link.Fragment == "" {
		return false
	}
	if current.Hostname() != link.Hostname() {
		return false
	}
	return strings.TrimPrefix(current.Path, "/") == strings.TrimPrefix(link.Path, "/")
}
