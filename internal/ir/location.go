package ir

import "strings"

// locationSeparator joins traversal steps into a location key.
// Edge fields are GraphQL-style names ("out_Animal_ParentOf") and can
// never contain a slash.
const locationSeparator = "/"

// Location identifies a node in the logical traversal tree by the
// sequence of edge steps taken from the query root. Two locations are
// equal iff their step sequences are equal; the zero value is the root.
//
// Location is an immutable value type and is used directly as a map key
// by the alias registry.
type Location struct {
	path string
}

// Root returns the location of the query root.
func Root() Location {
	return Location{}
}

// LocationAt builds a location from an explicit step sequence.
func LocationAt(steps ...string) Location {
	return Location{path: strings.Join(steps, locationSeparator)}
}

// Navigate returns the location reached by taking one more step.
func (l Location) Navigate(step string) Location {
	if l.path == "" {
		return Location{path: step}
	}
	return Location{path: l.path + locationSeparator + step}
}

// IsRoot reports whether the location is the query root.
func (l Location) IsRoot() bool {
	return l.path == ""
}

// Steps returns the step sequence from the root. The root returns nil.
func (l Location) Steps() []string {
	if l.path == "" {
		return nil
	}
	return strings.Split(l.path, locationSeparator)
}

// String renders the location for error messages. The root renders as "$".
func (l Location) String() string {
	if l.path == "" {
		return "$"
	}
	return "$" + locationSeparator + l.path
}
