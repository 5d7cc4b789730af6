package ir

// Block represents one instruction in the linear traversal program.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and
// forces backend emitters into exhaustive type switches, so adding a
// block variant without handling it is caught at review time rather
// than falling through silently.
//
// A well-formed program is exactly one QueryRoot, zero or more local
// blocks, at most one GlobalOperationsStart, and zero or more global
// blocks. Any other shape is a structural error (see emit.SplitBlocks).
type Block interface {
	block() // Marker method - seals interface to this package
}

// QueryRoot declares the type the traversal starts at. It must be the
// first block of every program and may not appear again.
type QueryRoot struct {
	// StartType is the schema type of the root vertex.
	StartType string
}

func (QueryRoot) block() {}

// MarkLocation records the current alias as the representative alias
// for the current location. A location must be marked before it can be
// the target of a Backtrack or referenced by an output field.
type MarkLocation struct{}

func (MarkLocation) block() {}

// Traverse moves the walk across one edge to a fresh alias of the
// target table. The join is LEFT OUTER iff Optional is set.
type Traverse struct {
	// Direction is "out" or "in".
	Direction string
	// EdgeName is the bare edge name without direction prefix.
	EdgeName string
	// Optional marks a branch that may match no row.
	Optional bool
}

func (Traverse) block() {}

// EdgeField returns the directioned edge name used as a traversal step
// and as the key into the schema's edge metadata.
func (t Traverse) EdgeField() string {
	return t.Direction + "_" + t.EdgeName
}

// Backtrack restores the walk's cursor to a previously marked location.
// It moves only the cursor; joins already accumulated stay in place.
type Backtrack struct {
	Location Location
}

func (Backtrack) block() {}

// Filter accumulates a predicate that must hold for the current alias.
// All filters are AND-combined at the end of emission.
type Filter struct {
	Predicate Expr
}

func (Filter) block() {}

// EndOptional marks the exit from an optional traversal scope. The
// emitter ignores it structurally; it is retained for downstream
// consumers and the optional-filter bookkeeping of frontends.
type EndOptional struct{}

func (EndOptional) block() {}

// GlobalOperationsStart separates per-step blocks from whole-query
// blocks. It may appear at most once.
type GlobalOperationsStart struct{}

func (GlobalOperationsStart) block() {}

// ConstructResult is a global block mapping output names to the
// expressions projected under them.
type ConstructResult struct {
	// Fields maps output name to the projected expression. Emission
	// iterates output names in sorted order so plans are deterministic.
	Fields map[string]Expr
}

func (ConstructResult) block() {}
