package relation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/gravel/internal/ir"
)

// Fingerprint produces the canonical JSON form of a compiled query.
// Compiling the same IR against the same metadata twice yields the same
// fingerprint byte-for-byte, which is how callers check plan identity
// without comparing structures field by field.
//
// Canonical form: object keys sorted by UTF-16 code units, strings NFC
// normalized, no HTML escaping.
func Fingerprint(q *SelectQuery) ([]byte, error) {
	tree, err := queryTree(q)
	if err != nil {
		return nil, err
	}
	return marshalCanonical(tree)
}

func queryTree(q *SelectQuery) (map[string]any, error) {
	outputs := make([]any, len(q.Outputs))
	for i, out := range q.Outputs {
		expr, err := exprTree(out.Expr)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", out.Label, err)
		}
		outputs[i] = map[string]any{"label": out.Label, "expr": expr}
	}

	joins := make([]any, len(q.From.Joins))
	for i, j := range q.From.Joins {
		joins[i] = map[string]any{
			"kind":  j.Kind.String(),
			"table": j.Target.Table,
			"alias": j.Target.Alias,
			"left":  j.Left.Alias + "." + j.Left.Name,
			"right": j.Right.Alias + "." + j.Right.Name,
		}
	}

	tree := map[string]any{
		"outputs": outputs,
		"from": map[string]any{
			"table": q.From.Root.Table,
			"alias": q.From.Root.Alias,
			"joins": joins,
		},
	}
	if q.Where != nil {
		where, err := exprTree(q.Where)
		if err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
		tree["where"] = where
	}
	return tree, nil
}

func exprTree(e Expr) (any, error) {
	switch node := e.(type) {
	case Column:
		return map[string]any{"column": node.Alias + "." + node.Name}, nil
	case Literal:
		value, err := valueTree(node.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"literal": value}, nil
	case Param:
		return map[string]any{"param": node.Name, "kind": node.Kind.String()}, nil
	case Comparison:
		left, err := exprTree(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := exprTree(node.Right)
		if err != nil {
			return nil, err
		}
		return map[string]any{"op": node.Op, "left": left, "right": right}, nil
	case And:
		exprs, err := exprTrees(node.Exprs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"and": exprs}, nil
	case Or:
		exprs, err := exprTrees(node.Exprs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"or": exprs}, nil
	case Not:
		inner, err := exprTree(node.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"not": inner}, nil
	case IsNull:
		inner, err := exprTree(node.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"is_null": inner}, nil
	case Case:
		when, err := exprTree(node.When)
		if err != nil {
			return nil, err
		}
		then, err := exprTree(node.Then)
		if err != nil {
			return nil, err
		}
		els, err := exprTree(node.Else)
		if err != nil {
			return nil, err
		}
		return map[string]any{"case": map[string]any{"when": when, "then": then, "else": els}}, nil
	default:
		return nil, fmt.Errorf("unknown relation.Expr type %T", e)
	}
}

func exprTrees(exprs []Expr) ([]any, error) {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		tree, err := exprTree(e)
		if err != nil {
			return nil, err
		}
		out[i] = tree
	}
	return out, nil
}

func valueTree(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.Null:
		return map[string]any{"kind": "null"}, nil
	case ir.String:
		return map[string]any{"kind": "string", "text": string(val)}, nil
	case ir.Int:
		return map[string]any{"kind": "int", "int": int64(val)}, nil
	case ir.Decimal:
		return map[string]any{"kind": "decimal", "text": string(val)}, nil
	case ir.Bool:
		return map[string]any{"kind": "bool", "bool": bool(val)}, nil
	case ir.Date:
		return map[string]any{
			"kind": "date",
			"text": fmt.Sprintf("%04d-%02d-%02d", val.Year, val.Month, val.Day),
		}, nil
	case ir.Timestamp:
		return map[string]any{
			"kind": "timestamp",
			"text": val.Time.Format("2006-01-02 15:04:05.000"),
		}, nil
	case ir.List:
		elems := make([]any, len(val))
		for i, elem := range val {
			tree, err := valueTree(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			elems[i] = tree
		}
		return map[string]any{"kind": "list", "elems": elems}, nil
	default:
		return nil, fmt.Errorf("unknown ir.Value type %T", v)
	}
}

// marshalCanonical serializes a tree of maps, slices, strings, int64s,
// and bools to canonical JSON.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysUTF16)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString NFC-normalizes and encodes without HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	// Encoder appends a newline; strip it.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// compareKeysUTF16 compares strings by UTF-16 code units, the canonical
// JSON key order. Go's native string comparison is UTF-8 and produces a
// different order for non-BMP runes.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
