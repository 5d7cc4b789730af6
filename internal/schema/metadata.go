// Package schema holds the table and join metadata the emitter
// consults: which physical table backs each schema type, which column
// pair backs each edge, and how polymorphic types disambiguate their
// subclasses. The metadata is pure data, built once (from CUE documents
// or directly in Go) and shared read-only across compilations.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/gravel/internal/ir"
)

// Table describes one physical table: its name and its columns with
// their declared kinds.
type Table struct {
	Name    string
	Columns map[string]ir.Kind
}

// HasColumn reports whether the table declares a column.
func (t Table) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// Edge is the join specification for one directioned edge: the target
// type and the column pair the equi-join runs on.
type Edge struct {
	ToType     string
	FromColumn string
	ToColumn   string
}

// Coercion disambiguates membership in one subclass of a polymorphic
// type: rows whose disambiguation column takes one of AllowedValues
// belong to the subclass. Consumed by the external coercion-lowering
// pass, not by the emitter.
type Coercion struct {
	Column        string
	AllowedValues []string
}

// MismatchError reports a type or edge that the supplied metadata does
// not know about. It is a compilation-time error: the IR references a
// schema element the metadata was never told about.
type MismatchError struct {
	// TypeName is the offending type (or edge origin type).
	TypeName string
	// Edge is the directioned edge field, empty for table lookups.
	Edge string
}

func (e *MismatchError) Error() string {
	if e.Edge != "" {
		return fmt.Sprintf("edge %q from type %q exists in the query, but not in the schema metadata", e.Edge, e.TypeName)
	}
	return fmt.Sprintf("type %q exists in the query, but no table for it in the schema metadata", e.TypeName)
}

// IsMismatch reports whether err is a metadata mismatch.
// Uses errors.As to handle wrapped errors.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// Metadata maps schema types to tables and (type, edge) pairs to join
// specifications. Immutable after building; safe to share across
// concurrent compilations.
type Metadata struct {
	tables    map[string]Table               // key: lowercased type name
	edges     map[string]map[string]Edge     // type name -> edge field -> spec
	coercions map[string]map[string]Coercion // supertype -> subtype -> rule
}

// New creates empty metadata to be populated with the Add methods.
func New() *Metadata {
	return &Metadata{
		tables:    make(map[string]Table),
		edges:     make(map[string]map[string]Edge),
		coercions: make(map[string]map[string]Coercion),
	}
}

// AddTable maps a schema type to its physical table. Type names resolve
// case-insensitively, so "Animal" and "animal" are the same key.
func (m *Metadata) AddTable(typeName string, table Table) {
	m.tables[strings.ToLower(typeName)] = table
}

// AddEdge registers the join specification for a directioned edge field
// at an origin type.
func (m *Metadata) AddEdge(originType, edgeField string, edge Edge) {
	byField, ok := m.edges[originType]
	if !ok {
		byField = make(map[string]Edge)
		m.edges[originType] = byField
	}
	byField[edgeField] = edge
}

// AddCoercion registers the subclass disambiguation rule for one
// subtype of a polymorphic supertype.
func (m *Metadata) AddCoercion(supertype, subtype string, c Coercion) {
	bySub, ok := m.coercions[supertype]
	if !ok {
		bySub = make(map[string]Coercion)
		m.coercions[supertype] = bySub
	}
	bySub[subtype] = c
}

// FlattenInheritance copies every supertype's edges down to its
// subtypes, following supertype chains. Called once when metadata is
// built so the walk never has to consult the hierarchy. An edge defined
// directly on a subtype wins over an inherited one.
func (m *Metadata) FlattenInheritance(supertypes map[string]string) error {
	for subtype := range supertypes {
		seen := map[string]bool{subtype: true}
		for super, ok := supertypes[subtype]; ok; super, ok = supertypes[super] {
			if seen[super] {
				return fmt.Errorf("supertype cycle through %q", super)
			}
			seen[super] = true
			for field, edge := range m.edges[super] {
				if _, exists := m.edgeLookup(subtype, field); !exists {
					m.AddEdge(subtype, field, edge)
				}
			}
		}
	}
	return nil
}

// Table resolves a schema type to its physical table.
func (m *Metadata) Table(typeName string) (Table, error) {
	table, ok := m.tables[strings.ToLower(typeName)]
	if !ok {
		return Table{}, &MismatchError{TypeName: typeName}
	}
	return table, nil
}

// Edge resolves the join specification for a directioned edge field at
// an origin type.
func (m *Metadata) Edge(originType, edgeField string) (Edge, error) {
	edge, ok := m.edgeLookup(originType, edgeField)
	if !ok {
		return Edge{}, &MismatchError{TypeName: originType, Edge: edgeField}
	}
	return edge, nil
}

func (m *Metadata) edgeLookup(originType, edgeField string) (Edge, bool) {
	byField, ok := m.edges[originType]
	if !ok {
		return Edge{}, false
	}
	edge, ok := byField[edgeField]
	return edge, ok
}

// Coercion returns the disambiguation rule for a subtype of a
// polymorphic supertype.
func (m *Metadata) Coercion(supertype, subtype string) (Coercion, bool) {
	bySub, ok := m.coercions[supertype]
	if !ok {
		return Coercion{}, false
	}
	c, ok := bySub[subtype]
	return c, ok
}

// Validate cross-checks the metadata: every edge endpoint type must
// have a table, every join column must exist on its table, and every
// coercion column must exist on the supertype's table. Returns all
// problems found, in deterministic order.
func (m *Metadata) Validate() []error {
	var problems []error

	for _, origin := range sortedKeys(m.edges) {
		originTable, err := m.Table(origin)
		if err != nil {
			problems = append(problems, fmt.Errorf("edge origin %q has no table", origin))
			continue
		}
		byField := m.edges[origin]
		for _, field := range sortedKeys(byField) {
			edge := byField[field]
			if !originTable.HasColumn(edge.FromColumn) {
				problems = append(problems, fmt.Errorf(
					"edge %s.%s: from_column %q not on table %q",
					origin, field, edge.FromColumn, originTable.Name))
			}
			target, err := m.Table(edge.ToType)
			if err != nil {
				problems = append(problems, fmt.Errorf(
					"edge %s.%s: target type %q has no table", origin, field, edge.ToType))
				continue
			}
			if !target.HasColumn(edge.ToColumn) {
				problems = append(problems, fmt.Errorf(
					"edge %s.%s: to_column %q not on table %q",
					origin, field, edge.ToColumn, target.Name))
			}
		}
	}

	for _, super := range sortedKeys(m.coercions) {
		superTable, err := m.Table(super)
		if err != nil {
			problems = append(problems, fmt.Errorf("coercion supertype %q has no table", super))
			continue
		}
		bySub := m.coercions[super]
		for _, sub := range sortedKeys(bySub) {
			c := bySub[sub]
			if !superTable.HasColumn(c.Column) {
				problems = append(problems, fmt.Errorf(
					"coercion %s -> %s: column %q not on table %q",
					super, sub, c.Column, superTable.Name))
			}
		}
	}

	return problems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
