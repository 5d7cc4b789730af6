// Package lower holds the pre-emission IR rewrites. The only rewrite
// today removes existence checks: a ternary conditional whose predicate
// asks "was this optional branch taken" collapses to its if_true
// branch, relying on the outer join to supply NULL when the branch was
// not taken. This keeps the emitter's expression vocabulary free of a
// dedicated existence-check case.
//
// The pass is pure and deterministic: same input, same output, no
// mutation of the input slice.
package lower

import (
	"fmt"

	"github.com/roach88/gravel/internal/ir"
)

// Blocks rewrites a block sequence into the lowered form the emitter
// consumes. An existence check anywhere other than a ternary predicate
// has no lowered form; that is malformed IR from the frontend and is
// reported as an error rather than passed through.
func Blocks(blocks []ir.Block) ([]ir.Block, error) {
	lowered := make([]ir.Block, len(blocks))
	for i, block := range blocks {
		switch b := block.(type) {
		case ir.Filter:
			pred, err := lowerExpr(b.Predicate)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", i, err)
			}
			lowered[i] = ir.Filter{Predicate: pred}

		case ir.ConstructResult:
			fields := make(map[string]ir.Expr, len(b.Fields))
			for name, field := range b.Fields {
				expr, err := lowerExpr(field)
				if err != nil {
					return nil, fmt.Errorf("block %d, output %q: %w", i, name, err)
				}
				fields[name] = expr
			}
			lowered[i] = ir.ConstructResult{Fields: fields}

		default:
			lowered[i] = block
		}
	}
	return lowered, nil
}

func lowerExpr(e ir.Expr) (ir.Expr, error) {
	switch node := e.(type) {
	case ir.TernaryConditional:
		if _, ok := node.Predicate.(ir.ContextFieldExistence); ok {
			// The optional branch's outer join already yields NULL
			// columns when no match was taken, so the if_true side is
			// projected unconditionally. Documented approximation.
			return lowerExpr(node.IfTrue)
		}
		pred, err := lowerExpr(node.Predicate)
		if err != nil {
			return nil, err
		}
		ifTrue, err := lowerExpr(node.IfTrue)
		if err != nil {
			return nil, err
		}
		ifFalse, err := lowerExpr(node.IfFalse)
		if err != nil {
			return nil, err
		}
		return ir.TernaryConditional{Predicate: pred, IfTrue: ifTrue, IfFalse: ifFalse}, nil

	case ir.BinaryComposition:
		left, err := lowerExpr(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := lowerExpr(node.Right)
		if err != nil {
			return nil, err
		}
		return ir.BinaryComposition{Op: node.Op, Left: left, Right: right}, nil

	case ir.ContextFieldExistence:
		return nil, fmt.Errorf("existence check at %s outside a ternary predicate has no lowered form", node.Location)

	case ir.Literal, ir.LocalField, ir.OutputField:
		return node, nil

	default:
		return nil, fmt.Errorf("unknown ir.Expr type %T", e)
	}
}
