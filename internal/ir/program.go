package ir

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Program bundles what the frontend hands to the compiler: the ordered
// block sequence and the per-location metadata table.
type Program struct {
	Blocks   []Block
	Metadata *QueryMetadata
}

// Block op names accepted in program files.
const (
	opQueryRoot             = "query_root"
	opMarkLocation          = "mark"
	opTraverse              = "traverse"
	opBacktrack             = "backtrack"
	opFilter                = "filter"
	opEndOptional           = "end_optional"
	opGlobalOperationsStart = "global_operations_start"
	opConstructResult       = "construct_result"
)

// programDoc is the on-disk shape of a program file.
type programDoc struct {
	Blocks    []blockDoc    `yaml:"blocks"`
	Locations []locationDoc `yaml:"locations"`
}

type blockDoc struct {
	Op        string              `yaml:"op"`
	Type      string              `yaml:"type,omitempty"`
	Direction string              `yaml:"direction,omitempty"`
	Edge      string              `yaml:"edge,omitempty"`
	Optional  bool                `yaml:"optional,omitempty"`
	Location  []string            `yaml:"location,omitempty"`
	Predicate *exprDoc            `yaml:"predicate,omitempty"`
	Outputs   map[string]*exprDoc `yaml:"outputs,omitempty"`
}

type locationDoc struct {
	Location      []string `yaml:"location"`
	Type          string   `yaml:"type"`
	OptionalDepth int      `yaml:"optional_depth,omitempty"`
}

// exprDoc is the on-disk shape of one expression node. Exactly one
// field must be set.
type exprDoc struct {
	Literal     *literalDoc     `yaml:"literal,omitempty"`
	LocalField  *string         `yaml:"local_field,omitempty"`
	OutputField *outputFieldDoc `yaml:"output_field,omitempty"`
	Binary      *binaryDoc      `yaml:"binary,omitempty"`
	Ternary     *ternaryDoc     `yaml:"ternary,omitempty"`
	Exists      *existsDoc      `yaml:"exists,omitempty"`
}

type literalDoc struct {
	Kind   string       `yaml:"kind"`
	Value  *yaml.Node   `yaml:"value,omitempty"`
	Values []literalDoc `yaml:"values,omitempty"`
}

type outputFieldDoc struct {
	Location []string `yaml:"location"`
	Name     string   `yaml:"name"`
}

type binaryDoc struct {
	Op    string   `yaml:"op"`
	Left  *exprDoc `yaml:"left"`
	Right *exprDoc `yaml:"right"`
}

type ternaryDoc struct {
	Predicate *exprDoc `yaml:"predicate"`
	IfTrue    *exprDoc `yaml:"if_true"`
	IfFalse   *exprDoc `yaml:"if_false"`
}

type existsDoc struct {
	Location []string `yaml:"location"`
}

// LoadProgram reads and decodes a program file.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program file: %w", err)
	}
	prog, err := DecodeProgram(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// DecodeProgram parses a YAML program document into blocks and query
// metadata. Unknown fields are rejected so typos surface as errors
// rather than silently dropped instructions.
func DecodeProgram(data []byte) (*Program, error) {
	var doc programDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse program YAML: %w", err)
	}

	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("program has no blocks")
	}

	blocks := make([]Block, 0, len(doc.Blocks))
	for i, bd := range doc.Blocks {
		block, err := decodeBlock(bd)
		if err != nil {
			return nil, fmt.Errorf("block %d (%s): %w", i, bd.Op, err)
		}
		blocks = append(blocks, block)
	}

	metadata := NewQueryMetadata()
	for i, ld := range doc.Locations {
		if ld.Type == "" {
			return nil, fmt.Errorf("location %d: type is required", i)
		}
		if ld.OptionalDepth < 0 {
			return nil, fmt.Errorf("location %d: optional_depth must not be negative", i)
		}
		metadata.Record(LocationAt(ld.Location...), LocationInfo{
			Type:          ld.Type,
			OptionalDepth: ld.OptionalDepth,
		})
	}

	return &Program{Blocks: blocks, Metadata: metadata}, nil
}

func decodeBlock(bd blockDoc) (Block, error) {
	switch bd.Op {
	case opQueryRoot:
		if bd.Type == "" {
			return nil, fmt.Errorf("type is required")
		}
		return QueryRoot{StartType: bd.Type}, nil

	case opMarkLocation:
		return MarkLocation{}, nil

	case opTraverse:
		if bd.Direction != "out" && bd.Direction != "in" {
			return nil, fmt.Errorf("direction must be \"out\" or \"in\", got %q", bd.Direction)
		}
		if bd.Edge == "" {
			return nil, fmt.Errorf("edge is required")
		}
		return Traverse{Direction: bd.Direction, EdgeName: bd.Edge, Optional: bd.Optional}, nil

	case opBacktrack:
		return Backtrack{Location: LocationAt(bd.Location...)}, nil

	case opFilter:
		if bd.Predicate == nil {
			return nil, fmt.Errorf("predicate is required")
		}
		pred, err := decodeExpr(bd.Predicate)
		if err != nil {
			return nil, err
		}
		return Filter{Predicate: pred}, nil

	case opEndOptional:
		return EndOptional{}, nil

	case opGlobalOperationsStart:
		return GlobalOperationsStart{}, nil

	case opConstructResult:
		fields := make(map[string]Expr, len(bd.Outputs))
		for name, ed := range bd.Outputs {
			expr, err := decodeExpr(ed)
			if err != nil {
				return nil, fmt.Errorf("output %q: %w", name, err)
			}
			fields[name] = expr
		}
		return ConstructResult{Fields: fields}, nil

	default:
		return nil, fmt.Errorf("unknown block op %q", bd.Op)
	}
}

func decodeExpr(ed *exprDoc) (Expr, error) {
	if ed == nil {
		return nil, fmt.Errorf("missing expression")
	}

	set := 0
	if ed.Literal != nil {
		set++
	}
	if ed.LocalField != nil {
		set++
	}
	if ed.OutputField != nil {
		set++
	}
	if ed.Binary != nil {
		set++
	}
	if ed.Ternary != nil {
		set++
	}
	if ed.Exists != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("expression must have exactly one variant, got %d", set)
	}

	switch {
	case ed.Literal != nil:
		value, err := decodeLiteral(*ed.Literal)
		if err != nil {
			return nil, err
		}
		return Literal{Value: value}, nil

	case ed.LocalField != nil:
		if *ed.LocalField == "" {
			return nil, fmt.Errorf("local_field name must not be empty")
		}
		return LocalField{Name: *ed.LocalField}, nil

	case ed.OutputField != nil:
		if ed.OutputField.Name == "" {
			return nil, fmt.Errorf("output_field name must not be empty")
		}
		return OutputField{
			Location: LocationAt(ed.OutputField.Location...),
			Name:     ed.OutputField.Name,
		}, nil

	case ed.Binary != nil:
		if !validOp(ed.Binary.Op) {
			return nil, fmt.Errorf("unknown operator %q", ed.Binary.Op)
		}
		left, err := decodeExpr(ed.Binary.Left)
		if err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
		right, err := decodeExpr(ed.Binary.Right)
		if err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
		return BinaryComposition{Op: ed.Binary.Op, Left: left, Right: right}, nil

	case ed.Ternary != nil:
		pred, err := decodeExpr(ed.Ternary.Predicate)
		if err != nil {
			return nil, fmt.Errorf("predicate: %w", err)
		}
		ifTrue, err := decodeExpr(ed.Ternary.IfTrue)
		if err != nil {
			return nil, fmt.Errorf("if_true: %w", err)
		}
		ifFalse, err := decodeExpr(ed.Ternary.IfFalse)
		if err != nil {
			return nil, fmt.Errorf("if_false: %w", err)
		}
		return TernaryConditional{Predicate: pred, IfTrue: ifTrue, IfFalse: ifFalse}, nil

	default:
		return ContextFieldExistence{Location: LocationAt(ed.Exists.Location...)}, nil
	}
}

// Literal date/timestamp layouts accepted in program files.
const (
	dateLayout           = "2006-01-02"
	timestampLayout      = "2006-01-02 15:04:05"
	timestampMilliLayout = "2006-01-02 15:04:05.000"
)

func decodeLiteral(ld literalDoc) (Value, error) {
	switch ld.Kind {
	case "null":
		return Null{}, nil

	case "string":
		var s string
		if err := decodeScalar(ld, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case "int":
		var n int64
		if err := decodeScalar(ld, &n); err != nil {
			return nil, err
		}
		return Int(n), nil

	case "decimal":
		var s string
		if err := decodeScalar(ld, &s); err != nil {
			return nil, err
		}
		return ParseDecimal(s)

	case "bool":
		var b bool
		if err := decodeScalar(ld, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case "date":
		var s string
		if err := decodeScalar(ld, &s); err != nil {
			return nil, err
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: want %s", s, dateLayout)
		}
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil

	case "timestamp":
		var s string
		if err := decodeScalar(ld, &s); err != nil {
			return nil, err
		}
		t, err := time.Parse(timestampMilliLayout, s)
		if err != nil {
			t, err = time.Parse(timestampLayout, s)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: want %s", s, timestampLayout)
		}
		return Timestamp{Time: t}, nil

	case "list":
		values := make(List, 0, len(ld.Values))
		for i, elem := range ld.Values {
			v, err := decodeLiteral(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			values = append(values, v)
		}
		return values, nil

	default:
		return nil, fmt.Errorf("unknown literal kind %q", ld.Kind)
	}
}

func decodeScalar(ld literalDoc, out any) error {
	if ld.Value == nil {
		return fmt.Errorf("%s literal requires a value", ld.Kind)
	}
	if err := ld.Value.Decode(out); err != nil {
		return fmt.Errorf("%s literal: %w", ld.Kind, err)
	}
	return nil
}

func validOp(op string) bool {
	switch op {
	case OpEquals, OpNotEquals, OpLessThan, OpLessOrEqual,
		OpGreaterThan, OpGreaterEqual, OpAnd, OpOr:
		return true
	}
	return false
}
