// Package emit turns a lowered block program into an abstract
// relational query. It is the stateful centerpiece of the compiler: a
// single walk over the block sequence that reconstructs the tree-shaped
// traversal (backtracking and optional branches included) as a flat
// join graph, resolves every field reference to a table alias, and
// patches filter semantics so outer-join NULLs do not silently drop
// rows.
package emit

import (
	"fmt"
	"sort"

	"github.com/roach88/gravel/internal/ir"
	"github.com/roach88/gravel/internal/lower"
	"github.com/roach88/gravel/internal/relation"
	"github.com/roach88/gravel/internal/schema"
)

// Compile runs the full lowering-and-emission pipeline over a program.
// It is a pure function of its inputs; metadata is only read and may be
// shared across concurrent compilations.
func Compile(prog *ir.Program, meta *schema.Metadata) (*relation.SelectQuery, error) {
	lowered, err := lower.Blocks(prog.Blocks)
	if err != nil {
		return nil, &CompileError{Code: ErrCodeInternal, Message: "lowering failed", Err: err}
	}
	return Emit(lowered, prog.Metadata, meta)
}

// SplitBlocks validates the block ordering invariant and splits the
// sequence into its start type, local blocks, and global blocks. The
// GlobalOperationsStart marker itself is consumed here.
func SplitBlocks(blocks []ir.Block) (string, []ir.Block, []ir.Block, error) {
	if len(blocks) == 0 {
		return "", nil, nil, structuralError("program has no blocks")
	}
	root, ok := blocks[0].(ir.QueryRoot)
	if !ok {
		return "", nil, nil, structuralError("first block must be QueryRoot, got %T", blocks[0])
	}

	var locals, globals []ir.Block
	seenGlobalStart := false
	for i, block := range blocks[1:] {
		switch block.(type) {
		case ir.QueryRoot:
			return "", nil, nil, structuralError("block %d: duplicate QueryRoot", i+1)
		case ir.GlobalOperationsStart:
			if seenGlobalStart {
				return "", nil, nil, structuralError("block %d: duplicate GlobalOperationsStart", i+1)
			}
			seenGlobalStart = true
			continue
		}

		if seenGlobalStart {
			if _, ok := block.(ir.ConstructResult); !ok {
				return "", nil, nil, structuralError("block %d: local block %T after GlobalOperationsStart", i+1, block)
			}
			globals = append(globals, block)
		} else {
			if _, ok := block.(ir.ConstructResult); ok {
				return "", nil, nil, structuralError("block %d: ConstructResult before GlobalOperationsStart", i+1)
			}
			locals = append(locals, block)
		}
	}
	return root.StartType, locals, globals, nil
}

// aliasEntry pairs a table alias with its table definition so field
// resolution can check column existence without another metadata trip.
type aliasEntry struct {
	alias relation.TableAlias
	table schema.Table
}

// walker is the mutable walk context. It is owned exclusively by one
// Emit call and discarded afterwards; nothing aliases it.
type walker struct {
	query  *ir.QueryMetadata
	schema *schema.Metadata

	location ir.Location
	typeName string
	current  aliasEntry

	// marked is the alias registry: populated only by MarkLocation,
	// read by Backtrack and output-field resolution.
	marked map[ir.Location]aliasEntry

	from     relation.FromClause
	filters  []relation.Expr
	outputs  []relation.Output
	aliasSeq int
}

// Emit consumes lowered blocks in order and produces the relational
// query. Aliases are named alias1, alias2, ... in creation order, so
// identical inputs always produce structurally identical plans.
func Emit(blocks []ir.Block, query *ir.QueryMetadata, meta *schema.Metadata) (*relation.SelectQuery, error) {
	startType, locals, globals, err := SplitBlocks(blocks)
	if err != nil {
		return nil, err
	}

	rootTable, err := meta.Table(startType)
	if err != nil {
		return nil, &CompileError{Code: ErrCodeSchemaMismatch, Message: err.Error(), Err: err}
	}

	w := &walker{
		query:    query,
		schema:   meta,
		location: query.RootLocation(),
		typeName: startType,
		marked:   make(map[ir.Location]aliasEntry),
	}
	w.current = w.newAlias(rootTable)
	w.from.Root = w.current.alias

	for _, block := range locals {
		if err := w.step(block); err != nil {
			return nil, err
		}
	}

	// The local walk is over; there is no per-step position anymore.
	w.location = ir.Location{}
	for _, block := range globals {
		cr, ok := block.(ir.ConstructResult)
		if !ok {
			return nil, &CompileError{
				Code:    ErrCodeUnsupportedBlock,
				Message: fmt.Sprintf("unsupported global block %T", block),
			}
		}
		if err := w.project(cr); err != nil {
			return nil, err
		}
	}

	result := &relation.SelectQuery{
		Outputs: w.outputs,
		From:    w.from,
	}
	switch len(w.filters) {
	case 0:
	case 1:
		result.Where = w.filters[0]
	default:
		result.Where = relation.And{Exprs: w.filters}
	}
	return result, nil
}

func (w *walker) newAlias(table schema.Table) aliasEntry {
	w.aliasSeq++
	return aliasEntry{
		alias: relation.TableAlias{Table: table.Name, Alias: fmt.Sprintf("alias%d", w.aliasSeq)},
		table: table,
	}
}

func (w *walker) step(block ir.Block) error {
	switch b := block.(type) {
	case ir.EndOptional:
		// Structural marker only; nothing to do.
		return nil

	case ir.MarkLocation:
		w.marked[w.location] = w.current
		return nil

	case ir.Backtrack:
		entry, ok := w.marked[b.Location]
		if !ok {
			return &CompileError{
				Code:     ErrCodeUnresolvedReference,
				Message:  fmt.Sprintf("backtrack target %s was never marked", b.Location),
				Location: w.location.String(),
			}
		}
		info, ok := w.query.Info(b.Location)
		if !ok {
			return &CompileError{
				Code:     ErrCodeUnresolvedReference,
				Message:  fmt.Sprintf("no location metadata for %s", b.Location),
				Location: w.location.String(),
			}
		}
		// Only the cursor moves; joins already emitted stay in place.
		w.location = b.Location
		w.current = entry
		w.typeName = info.Type
		return nil

	case ir.Traverse:
		edgeField := b.EdgeField()
		edge, err := w.schema.Edge(w.typeName, edgeField)
		if err != nil {
			return &CompileError{
				Code:     ErrCodeSchemaMismatch,
				Message:  err.Error(),
				Location: w.location.String(),
				Err:      err,
			}
		}
		table, err := w.schema.Table(edge.ToType)
		if err != nil {
			return &CompileError{
				Code:     ErrCodeSchemaMismatch,
				Message:  err.Error(),
				Location: w.location.String(),
				Err:      err,
			}
		}

		previous := w.current
		next := w.newAlias(table)
		kind := relation.InnerJoin
		if b.Optional {
			kind = relation.LeftOuterJoin
		}
		w.from.Joins = append(w.from.Joins, relation.Join{
			Kind:   kind,
			Target: next.alias,
			Left:   relation.Column{Alias: previous.alias.Alias, Name: edge.FromColumn},
			Right:  relation.Column{Alias: next.alias.Alias, Name: edge.ToColumn},
		})

		w.location = w.location.Navigate(edgeField)
		w.typeName = edge.ToType
		w.current = next
		return nil

	case ir.Filter:
		pred, err := w.compileExpr(b.Predicate)
		if err != nil {
			return err
		}

		// Filters inside optional scopes are hard: an untaken branch
		// yields NULL columns through the outer join, which would
		// wrongly fail the filter and drop an otherwise valid root
		// row. Each directly referenced local field gets an IS NULL
		// escape hatch. This is a documented approximation - it is
		// unsound for predicates spanning multiple optional branches
		// with different nullability.
		if info, ok := w.query.Info(w.location); ok && info.OptionalDepth > 0 {
			ors := []relation.Expr{pred}
			for _, lf := range localFieldsUsed(b.Predicate) {
				col, err := w.localColumn(lf)
				if err != nil {
					return err
				}
				ors = append(ors, relation.IsNull{Expr: col})
			}
			pred = relation.Or{Exprs: ors}
		}

		w.filters = append(w.filters, pred)
		return nil

	default:
		return &CompileError{
			Code:     ErrCodeUnsupportedBlock,
			Message:  fmt.Sprintf("unsupported block %T", block),
			Location: w.location.String(),
		}
	}
}

// project handles one ConstructResult. Output names are emitted in
// sorted order so plans are deterministic.
func (w *walker) project(cr ir.ConstructResult) error {
	names := make([]string, 0, len(cr.Fields))
	for name := range cr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := cr.Fields[name]

		// Outputs in optionals: the surrounding outer join already
		// yields NULL when the branch was not taken, so a ternary
		// projects its if_true side unconditionally. Documented
		// approximation - the predicate and if_false side are
		// discarded without checking that the predicate really was an
		// existence test.
		if tern, ok := field.(ir.TernaryConditional); ok {
			if _, ok := tern.Predicate.(ir.ContextFieldExistence); ok {
				return &CompileError{
					Code:    ErrCodeInternal,
					Message: fmt.Sprintf("output %q: existence check survived lowering", name),
				}
			}
			field = tern.IfTrue
		}

		out, ok := field.(ir.OutputField)
		if !ok {
			return &CompileError{
				Code:    ErrCodeUnsupportedProjection,
				Message: fmt.Sprintf("output %q: unsupported projection %T", name, field),
			}
		}
		col, err := w.outputColumn(out)
		if err != nil {
			return err
		}
		w.outputs = append(w.outputs, relation.Output{Label: name, Expr: col})
	}
	return nil
}

// compileExpr translates one expression node into a relational
// expression against the current alias and the alias registry.
func (w *walker) compileExpr(e ir.Expr) (relation.Expr, error) {
	switch node := e.(type) {
	case ir.Literal:
		return relation.Literal{Value: node.Value}, nil

	case ir.LocalField:
		return w.localColumn(node)

	case ir.OutputField:
		return w.outputColumn(node)

	case ir.BinaryComposition:
		switch node.Op {
		case ir.OpAnd:
			left, right, err := w.compilePair(node)
			if err != nil {
				return nil, err
			}
			return relation.And{Exprs: []relation.Expr{left, right}}, nil
		case ir.OpOr:
			left, right, err := w.compilePair(node)
			if err != nil {
				return nil, err
			}
			return relation.Or{Exprs: []relation.Expr{left, right}}, nil
		}

		// Equality against a NULL literal means a NULL test, never a
		// SQL "= NULL" (which matches nothing).
		if other, ok := nullComparand(node); ok && (node.Op == ir.OpEquals || node.Op == ir.OpNotEquals) {
			operand, err := w.compileExpr(other)
			if err != nil {
				return nil, err
			}
			if node.Op == ir.OpEquals {
				return relation.IsNull{Expr: operand}, nil
			}
			return relation.Not{Expr: relation.IsNull{Expr: operand}}, nil
		}

		left, right, err := w.compilePair(node)
		if err != nil {
			return nil, err
		}
		return relation.Comparison{Op: node.Op, Left: left, Right: right}, nil

	case ir.TernaryConditional:
		when, err := w.compileExpr(node.Predicate)
		if err != nil {
			return nil, err
		}
		then, err := w.compileExpr(node.IfTrue)
		if err != nil {
			return nil, err
		}
		els, err := w.compileExpr(node.IfFalse)
		if err != nil {
			return nil, err
		}
		return relation.Case{When: when, Then: then, Else: els}, nil

	case ir.ContextFieldExistence:
		return nil, &CompileError{
			Code:     ErrCodeInternal,
			Message:  fmt.Sprintf("existence check for %s survived lowering", node.Location),
			Location: w.location.String(),
		}

	default:
		return nil, &CompileError{
			Code:     ErrCodeUnsupportedBlock,
			Message:  fmt.Sprintf("unsupported expression %T", e),
			Location: w.location.String(),
		}
	}
}

func (w *walker) compilePair(node ir.BinaryComposition) (relation.Expr, relation.Expr, error) {
	left, err := w.compileExpr(node.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := w.compileExpr(node.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (w *walker) localColumn(lf ir.LocalField) (relation.Column, error) {
	if !w.current.table.HasColumn(lf.Name) {
		return relation.Column{}, &CompileError{
			Code:     ErrCodeUnresolvedReference,
			Message:  fmt.Sprintf("column %q not on table %q", lf.Name, w.current.table.Name),
			Location: w.location.String(),
		}
	}
	return relation.Column{Alias: w.current.alias.Alias, Name: lf.Name}, nil
}

func (w *walker) outputColumn(of ir.OutputField) (relation.Column, error) {
	entry, ok := w.marked[of.Location]
	if !ok {
		return relation.Column{}, &CompileError{
			Code:    ErrCodeUnresolvedReference,
			Message: fmt.Sprintf("field %q references location %s, which was never marked", of.Name, of.Location),
		}
	}
	if !entry.table.HasColumn(of.Name) {
		return relation.Column{}, &CompileError{
			Code:    ErrCodeUnresolvedReference,
			Message: fmt.Sprintf("column %q not on table %q", of.Name, entry.table.Name),
		}
	}
	return relation.Column{Alias: entry.alias.Alias, Name: of.Name}, nil
}

// localFieldsUsed collects the local fields referenced directly through
// binary compositions. Fields reached through output references or
// ternaries are deliberately not collected; the optional-filter rewrite
// applies only to direct uses.
func localFieldsUsed(e ir.Expr) []ir.LocalField {
	switch node := e.(type) {
	case ir.BinaryComposition:
		return append(localFieldsUsed(node.Left), localFieldsUsed(node.Right)...)
	case ir.LocalField:
		return []ir.LocalField{node}
	default:
		return nil
	}
}

// nullComparand returns the non-NULL side of a comparison against a
// NULL literal.
func nullComparand(node ir.BinaryComposition) (ir.Expr, bool) {
	if lit, ok := node.Left.(ir.Literal); ok {
		if _, isNull := lit.Value.(ir.Null); isNull {
			return node.Right, true
		}
	}
	if lit, ok := node.Right.(ir.Literal); ok {
		if _, isNull := lit.Value.(ir.Null); isNull {
			return node.Left, true
		}
	}
	return nil, false
}
