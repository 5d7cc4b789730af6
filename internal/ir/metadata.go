package ir

// LocationInfo carries the out-of-band facts the frontend knows about
// one location: the schema type resolved there and how many enclosing
// optional traversals contain it.
//
// The emitter reads this and never mutates it. In particular Backtrack
// re-derives the current type from here rather than from the join
// graph, because backtracking does not undo joins already emitted.
type LocationInfo struct {
	// Type is the schema type name at this location.
	Type string
	// OptionalDepth counts enclosing optional traversals.
	OptionalDepth int
}

// QueryMetadata is the per-location metadata table supplied alongside
// the block program.
type QueryMetadata struct {
	root  Location
	infos map[Location]LocationInfo
}

// NewQueryMetadata creates an empty metadata table rooted at the query
// root location.
func NewQueryMetadata() *QueryMetadata {
	return &QueryMetadata{
		root:  Root(),
		infos: make(map[Location]LocationInfo),
	}
}

// RootLocation returns the root location identifier.
func (m *QueryMetadata) RootLocation() Location {
	return m.root
}

// Record registers the info for a location, replacing any previous
// entry.
func (m *QueryMetadata) Record(loc Location, info LocationInfo) {
	m.infos[loc] = info
}

// Info returns the recorded info for a location.
func (m *QueryMetadata) Info(loc Location) (LocationInfo, bool) {
	info, ok := m.infos[loc]
	return info, ok
}
