// Package sqlgen renders a relational query to SQL text. The default
// mode keeps every value out of the SQL string and returns it as a
// parameter; inline mode renders literals into the text for golden
// files and debugging output.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/gravel/internal/ir"
	"github.com/roach88/gravel/internal/relation"
)

// Compiler renders relation.SelectQuery values to SQL.
type Compiler struct {
	// InlineLiterals renders values into the SQL text instead of ?
	// placeholders. Executors should leave this off and pass values as
	// parameters.
	InlineLiterals bool
}

// NewCompiler creates a Compiler in parameterized mode.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile renders a query. Returns (sql, params, error); params is
// empty in inline mode.
func (c *Compiler) Compile(q *relation.SelectQuery) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot render nil query")
	}

	var params []any

	selectClause := "*"
	if len(q.Outputs) > 0 {
		parts := make([]string, len(q.Outputs))
		for i, out := range q.Outputs {
			expr, err := c.renderExpr(out.Expr, &params)
			if err != nil {
				return "", nil, fmt.Errorf("output %q: %w", out.Label, err)
			}
			parts[i] = expr + " AS " + out.Label
		}
		selectClause = strings.Join(parts, ", ")
	}

	var from strings.Builder
	fmt.Fprintf(&from, "%s AS %s", q.From.Root.Table, q.From.Root.Alias)
	for _, join := range q.From.Joins {
		fmt.Fprintf(&from, " %s %s AS %s ON %s.%s = %s.%s",
			join.Kind, join.Target.Table, join.Target.Alias,
			join.Left.Alias, join.Left.Name,
			join.Right.Alias, join.Right.Name)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", selectClause, from.String())
	if q.Where != nil {
		where, err := c.renderExpr(q.Where, &params)
		if err != nil {
			return "", nil, fmt.Errorf("where: %w", err)
		}
		sql += " WHERE " + where
	}

	return sql, params, nil
}

func (c *Compiler) renderExpr(e relation.Expr, params *[]any) (string, error) {
	switch node := e.(type) {
	case relation.Column:
		return node.Alias + "." + node.Name, nil

	case relation.Literal:
		return c.renderValue("", node.Value, params)

	case relation.Param:
		if err := checkParam(node); err != nil {
			return "", err
		}
		return c.renderValue(node.Name, node.Value, params)

	case relation.Comparison:
		left, err := c.renderExpr(node.Left, params)
		if err != nil {
			return "", err
		}
		right, err := c.renderExpr(node.Right, params)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", left, comparisonOp(node.Op), right), nil

	case relation.And:
		return c.renderJunction(node.Exprs, " AND ", params)

	case relation.Or:
		parts := make([]string, len(node.Exprs))
		for i, expr := range node.Exprs {
			rendered, err := c.renderExpr(expr, params)
			if err != nil {
				return "", err
			}
			parts[i] = "(" + rendered + ")"
		}
		return strings.Join(parts, " OR "), nil

	case relation.Not:
		inner, err := c.renderExpr(node.Expr, params)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	case relation.IsNull:
		inner, err := c.renderExpr(node.Expr, params)
		if err != nil {
			return "", err
		}
		return inner + " IS NULL", nil

	case relation.Case:
		when, err := c.renderExpr(node.When, params)
		if err != nil {
			return "", err
		}
		then, err := c.renderExpr(node.Then, params)
		if err != nil {
			return "", err
		}
		els, err := c.renderExpr(node.Else, params)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CASE WHEN %s THEN %s ELSE %s END", when, then, els), nil

	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (c *Compiler) renderJunction(exprs []relation.Expr, sep string, params *[]any) (string, error) {
	if len(exprs) == 0 {
		return "1 = 1", nil // Vacuous truth
	}
	parts := make([]string, len(exprs))
	for i, expr := range exprs {
		rendered, err := c.renderExpr(expr, params)
		if err != nil {
			return "", err
		}
		if _, ok := expr.(relation.Or); ok {
			rendered = "(" + rendered + ")"
		}
		parts[i] = rendered
	}
	return strings.Join(parts, sep), nil
}

// renderValue renders one value either inline or as placeholders.
func (c *Compiler) renderValue(name string, v ir.Value, params *[]any) (string, error) {
	if list, ok := v.(ir.List); ok {
		parts := make([]string, len(list))
		for i, elem := range list {
			if _, nested := elem.(ir.List); nested {
				return "", &ValueError{Name: name, Message: "nested lists are not allowed"}
			}
			rendered, err := c.renderValue(name, elem, params)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}

	if c.InlineLiterals {
		return inlineValue(v)
	}
	*params = append(*params, driverValue(v))
	return "?", nil
}

// inlineValue renders a scalar into SQL text. Booleans render as 1/0
// and strings double their quotes.
func inlineValue(v ir.Value) (string, error) {
	switch val := v.(type) {
	case ir.Null:
		return "NULL", nil
	case ir.Bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.Decimal:
		return string(val), nil
	case ir.String:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'", nil
	case ir.Date:
		return fmt.Sprintf("DATE '%04d-%02d-%02d'", val.Year, val.Month, val.Day), nil
	case ir.Timestamp:
		return fmt.Sprintf("TIMESTAMP '%s'", val.Time.Format("2006-01-02 15:04:05.000")), nil
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}

// driverValue converts a scalar to the native type handed to
// database/sql as a parameter.
func driverValue(v ir.Value) any {
	switch val := v.(type) {
	case ir.Null:
		return nil
	case ir.String:
		return string(val)
	case ir.Int:
		return int64(val)
	case ir.Decimal:
		return string(val)
	case ir.Bool:
		return bool(val)
	case ir.Date:
		return fmt.Sprintf("%04d-%02d-%02d", val.Year, val.Month, val.Day)
	case ir.Timestamp:
		return val.Time.Format("2006-01-02 15:04:05.000")
	default:
		return nil
	}
}

// checkParam validates a bound parameter against its declared kind.
func checkParam(p relation.Param) error {
	if p.Value == nil {
		return &ValueError{Name: p.Name, Message: "parameter is not bound"}
	}
	got := ir.KindOf(p.Value)
	if got != p.Kind {
		return &ValueError{
			Name:    p.Name,
			Message: fmt.Sprintf("value of kind %s does not match declared kind %s", got, p.Kind),
		}
	}
	if p.Kind != ir.KindList {
		return nil
	}
	for i, elem := range p.Value.(ir.List) {
		kind := ir.KindOf(elem)
		if kind == ir.KindList {
			return &ValueError{Name: p.Name, Message: fmt.Sprintf("element %d is a nested list", i)}
		}
		if kind != p.Elem {
			return &ValueError{
				Name:    p.Name,
				Message: fmt.Sprintf("element %d of kind %s does not match declared element kind %s", i, kind, p.Elem),
			}
		}
	}
	return nil
}

// comparisonOp maps IR comparison operators to SQL spelling.
func comparisonOp(op string) string {
	if op == ir.OpNotEquals {
		return "<>"
	}
	return op
}

// ValueError reports a rendering-time value problem: an unbound or
// mistyped parameter, or a nested list.
type ValueError struct {
	// Name identifies the parameter; empty for inline literals.
	Name string
	// Message describes the problem.
	Message string
}

func (e *ValueError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("param %q: %s", e.Name, e.Message)
	}
	return e.Message
}
