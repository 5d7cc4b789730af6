package ir

// Expr represents one node of the typed expression language used by
// Filter predicates and ConstructResult outputs.
//
// This is a sealed interface - only types in this package implement it.
// The expression compiler in the emitter type-switches exhaustively
// over these variants.
type Expr interface {
	expr() // Marker method - seals interface to this package
}

// Comparison and composition operators accepted by BinaryComposition.
const (
	OpEquals       = "="
	OpNotEquals    = "!="
	OpLessThan     = "<"
	OpLessOrEqual  = "<="
	OpGreaterThan  = ">"
	OpGreaterEqual = ">="
	OpAnd          = "&&"
	OpOr           = "||"
)

// Literal is a constant value, including a typed NULL.
type Literal struct {
	Value Value
}

func (Literal) expr() {}

// NullLiteral returns the literal SQL NULL.
func NullLiteral() Literal {
	return Literal{Value: Null{}}
}

// LocalField references a column on the alias the walk is currently at.
type LocalField struct {
	Name string
}

func (LocalField) expr() {}

// OutputField references a column at a marked location, which may
// differ from the current alias. Resolution goes through the alias
// registry by the location's path.
type OutputField struct {
	Location Location
	Name     string
}

func (OutputField) expr() {}

// BinaryComposition combines two sub-expressions with a comparison or
// boolean operator.
type BinaryComposition struct {
	Op    string
	Left  Expr
	Right Expr
}

func (BinaryComposition) expr() {}

// TernaryConditional selects between two expressions based on a
// predicate; relationally a CASE expression.
type TernaryConditional struct {
	Predicate Expr
	IfTrue    Expr
	IfFalse   Expr
}

func (TernaryConditional) expr() {}

// ContextFieldExistence tests whether the optional branch at a marked
// location was taken. The lowering pass removes every occurrence before
// emission; the emitter treats a surviving one as an internal invariant
// violation, not a user error.
type ContextFieldExistence struct {
	Location Location
}

func (ContextFieldExistence) expr() {}
