package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gravel/internal/ir"
)

// LoadMetadata reads a CUE schema document and builds metadata from it.
// The document's top-level "schema" struct holds "types" (table,
// columns, edges, optional extends) and optional "coercions".
//
// Example:
//
//	schema: {
//		types: {
//			Animal: {
//				table: "animal"
//				columns: {uuid: "string", name: "string", parent: "string"}
//				edges: {
//					out_Animal_ParentOf: {to: "Animal", from_column: "parent", to_column: "uuid"}
//				}
//			}
//		}
//	}
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("schema"))
	if !root.Exists() {
		return nil, &LoadError{
			Field:   "schema",
			Message: "document has no top-level schema struct",
			Pos:     v.Pos(),
		}
	}
	return CompileMetadata(root)
}

// CompileMetadata parses a CUE schema struct into metadata.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
func CompileMetadata(v cue.Value) (*Metadata, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := New()
	supertypes := make(map[string]string)

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &LoadError{
			Field:   "types",
			Message: "at least one type is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		typeName := iter.Label()
		if err := parseType(m, supertypes, typeName, iter.Value()); err != nil {
			return nil, err
		}
	}

	coercionsVal := v.LookupPath(cue.ParsePath("coercions"))
	if coercionsVal.Exists() {
		if err := parseCoercions(m, coercionsVal); err != nil {
			return nil, err
		}
	}

	if err := m.FlattenInheritance(supertypes); err != nil {
		return nil, &LoadError{Field: "extends", Message: err.Error(), Pos: typesVal.Pos()}
	}
	return m, nil
}

func parseType(m *Metadata, supertypes map[string]string, typeName string, v cue.Value) error {
	tableVal := v.LookupPath(cue.ParsePath("table"))
	if !tableVal.Exists() {
		return &LoadError{
			Field:   fmt.Sprintf("types.%s.table", typeName),
			Message: "table name is required",
			Pos:     v.Pos(),
		}
	}
	tableName, err := tableVal.String()
	if err != nil {
		return formatCUEError(err)
	}

	table := Table{Name: tableName, Columns: make(map[string]ir.Kind)}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if columnsVal.Exists() {
		colIter, err := columnsVal.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for colIter.Next() {
			colName := colIter.Label()
			kindName, err := colIter.Value().String()
			if err != nil {
				return formatCUEError(err)
			}
			kind, err := ir.ParseKind(kindName)
			if err != nil {
				return &LoadError{
					Field:   fmt.Sprintf("types.%s.columns.%s", typeName, colName),
					Message: err.Error(),
					Pos:     colIter.Value().Pos(),
				}
			}
			table.Columns[colName] = kind
		}
	}
	m.AddTable(typeName, table)

	edgesVal := v.LookupPath(cue.ParsePath("edges"))
	if edgesVal.Exists() {
		edgeIter, err := edgesVal.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for edgeIter.Next() {
			edgeField := edgeIter.Label()
			edge, err := parseEdge(typeName, edgeField, edgeIter.Value())
			if err != nil {
				return err
			}
			m.AddEdge(typeName, edgeField, edge)
		}
	}

	extendsVal := v.LookupPath(cue.ParsePath("extends"))
	if extendsVal.Exists() {
		super, err := extendsVal.String()
		if err != nil {
			return formatCUEError(err)
		}
		supertypes[typeName] = super
	}

	return nil
}

func parseEdge(typeName, edgeField string, v cue.Value) (Edge, error) {
	var edge Edge
	fields := []struct {
		path string
		dst  *string
	}{
		{"to", &edge.ToType},
		{"from_column", &edge.FromColumn},
		{"to_column", &edge.ToColumn},
	}
	for _, f := range fields {
		fv := v.LookupPath(cue.ParsePath(f.path))
		if !fv.Exists() {
			return Edge{}, &LoadError{
				Field:   fmt.Sprintf("types.%s.edges.%s.%s", typeName, edgeField, f.path),
				Message: f.path + " is required",
				Pos:     v.Pos(),
			}
		}
		s, err := fv.String()
		if err != nil {
			return Edge{}, formatCUEError(err)
		}
		*f.dst = s
	}
	return edge, nil
}

func parseCoercions(m *Metadata, v cue.Value) error {
	superIter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for superIter.Next() {
		super := superIter.Label()
		subIter, err := superIter.Value().Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for subIter.Next() {
			sub := subIter.Label()
			subVal := subIter.Value()

			column, err := subVal.LookupPath(cue.ParsePath("column")).String()
			if err != nil {
				return formatCUEError(err)
			}

			valuesVal := subVal.LookupPath(cue.ParsePath("values"))
			listIter, err := valuesVal.List()
			if err != nil {
				return formatCUEError(err)
			}
			var values []string
			for listIter.Next() {
				s, err := listIter.Value().String()
				if err != nil {
					return formatCUEError(err)
				}
				values = append(values, s)
			}

			m.AddCoercion(super, sub, Coercion{Column: column, AllowedValues: values})
		}
	}
	return nil
}

// LoadError represents a schema-document error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
