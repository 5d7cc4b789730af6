// Package relation defines the abstract relational query produced by
// emission: aliased tables, a join list, a filter expression, and a
// projection list. It is the contract between the compiler and query
// renderers or executors; it knows nothing about SQL text.
package relation

import "github.com/roach88/gravel/internal/ir"

// Expr represents a relational scalar or predicate expression.
//
// This is a sealed interface - only types in this package implement it.
// Renderers must type-switch exhaustively over these variants.
type Expr interface {
	relExpr() // Marker method - seals interface to this package
}

// Column references a column of an aliased table instance.
type Column struct {
	Alias string
	Name  string
}

func (Column) relExpr() {}

// Literal is an inline constant value.
type Literal struct {
	Value ir.Value
}

func (Literal) relExpr() {}

// Param is a bound parameter with a declared kind. Renderers check the
// bound value's runtime kind against the declared kind and reject
// mismatches; a list parameter additionally declares its element kind
// and may not contain a nested list.
type Param struct {
	// Name identifies the parameter in error messages.
	Name string
	// Kind is the declared kind of the parameter.
	Kind ir.Kind
	// Elem is the declared element kind when Kind is ir.KindList.
	Elem ir.Kind
	// Value is the bound value. Rendering an unbound parameter fails.
	Value ir.Value
}

func (Param) relExpr() {}

// Comparison is a binary comparison between two expressions.
// Op is one of "=", "!=", "<", "<=", ">", ">=".
type Comparison struct {
	Op    string
	Left  Expr
	Right Expr
}

func (Comparison) relExpr() {}

// And is a conjunction; all expressions must hold. An empty And is
// vacuously true.
type And struct {
	Exprs []Expr
}

func (And) relExpr() {}

// Or is a disjunction; at least one expression must hold.
type Or struct {
	Exprs []Expr
}

func (Or) relExpr() {}

// Not negates a predicate.
type Not struct {
	Expr Expr
}

func (Not) relExpr() {}

// IsNull tests an expression for SQL NULL.
type IsNull struct {
	Expr Expr
}

func (IsNull) relExpr() {}

// Case selects between two expressions based on a predicate.
type Case struct {
	When Expr
	Then Expr
	Else Expr
}

func (Case) relExpr() {}

// JoinKind distinguishes inner from left outer joins. Those are the
// only two kinds emission produces.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// String returns the SQL keyword spelling of the join kind.
func (k JoinKind) String() string {
	if k == LeftOuterJoin {
		return "LEFT OUTER JOIN"
	}
	return "INNER JOIN"
}

// TableAlias is one aliased instance of a physical table. The same
// table may appear under several aliases in one query.
type TableAlias struct {
	Table string
	Alias string
}

// Join attaches one aliased table to the join graph with a single
// equi-join condition: Left = Right.
type Join struct {
	Kind   JoinKind
	Target TableAlias
	Left   Column
	Right  Column
}

// FromClause is the accumulated join graph: a root table plus joins in
// emission order.
type FromClause struct {
	Root  TableAlias
	Joins []Join
}

// Output is one labeled projection.
type Output struct {
	Label string
	Expr  Expr
}

// SelectQuery is the complete compiled query: what to project, the join
// graph to read from, and the combined filter. A nil Where means no
// filter.
type SelectQuery struct {
	Outputs []Output
	From    FromClause
	Where   Expr
}
