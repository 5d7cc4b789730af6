package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gravel/internal/ir"
	"github.com/roach88/gravel/internal/relation"
	"github.com/roach88/gravel/internal/schema"
)

func animalMetadata(t *testing.T) *schema.Metadata {
	t.Helper()
	m := schema.New()
	m.AddTable("Animal", schema.Table{
		Name: "Animal",
		Columns: map[string]ir.Kind{
			"uuid":      ir.KindString,
			"name":      ir.KindString,
			"parent":    ir.KindString,
			"species":   ir.KindString,
			"net_worth": ir.KindDecimal,
			"alive":     ir.KindBool,
		},
	})
	m.AddTable("Species", schema.Table{
		Name: "Species",
		Columns: map[string]ir.Kind{
			"uuid": ir.KindString,
			"name": ir.KindString,
		},
	})
	m.AddEdge("Animal", "out_Animal_ParentOf", schema.Edge{
		ToType: "Animal", FromColumn: "parent", ToColumn: "uuid",
	})
	m.AddEdge("Animal", "out_Animal_OfSpecies", schema.Edge{
		ToType: "Species", FromColumn: "species", ToColumn: "uuid",
	})
	return m
}

var parentLoc = ir.LocationAt("out_Animal_ParentOf")

// parentProgram is the canonical two-hop program: traverse to the
// parent, output its name.
func parentProgram(optional bool) ([]ir.Block, *ir.QueryMetadata) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf", Optional: optional},
		ir.MarkLocation{},
		ir.Backtrack{Location: ir.Root()},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"parent_name": ir.OutputField{Location: parentLoc, Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	depth := 0
	if optional {
		depth = 1
	}
	qm.Record(parentLoc, ir.LocationInfo{Type: "Animal", OptionalDepth: depth})
	return blocks, qm
}

func TestEmit_MandatoryTraverse(t *testing.T) {
	blocks, qm := parentProgram(false)

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	assert.Equal(t, relation.TableAlias{Table: "Animal", Alias: "alias1"}, plan.From.Root)
	require.Len(t, plan.From.Joins, 1)
	assert.Equal(t, relation.Join{
		Kind:   relation.InnerJoin,
		Target: relation.TableAlias{Table: "Animal", Alias: "alias2"},
		Left:   relation.Column{Alias: "alias1", Name: "parent"},
		Right:  relation.Column{Alias: "alias2", Name: "uuid"},
	}, plan.From.Joins[0])

	require.Len(t, plan.Outputs, 1)
	assert.Equal(t, relation.Output{
		Label: "parent_name",
		Expr:  relation.Column{Alias: "alias2", Name: "name"},
	}, plan.Outputs[0])

	assert.Nil(t, plan.Where)
}

func TestEmit_NoRootMarkNeeded(t *testing.T) {
	// Marking is only required for locations that are backtracked to or
	// referenced by outputs; the root can stay unmarked.
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf"},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"parent_name": ir.OutputField{Location: parentLoc, Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	qm.Record(parentLoc, ir.LocationInfo{Type: "Animal"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)
	require.Len(t, plan.From.Joins, 1)
	assert.Equal(t, relation.InnerJoin, plan.From.Joins[0].Kind)
	assert.Equal(t, relation.Column{Alias: "alias2", Name: "name"}, plan.Outputs[0].Expr)
	assert.Nil(t, plan.Where)
}

func TestEmit_OptionalTraverseIsOuterJoin(t *testing.T) {
	blocks, qm := parentProgram(true)

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)
	require.Len(t, plan.From.Joins, 1)
	assert.Equal(t, relation.LeftOuterJoin, plan.From.Joins[0].Kind)
}

func TestEmit_Deterministic(t *testing.T) {
	blocks, qm := parentProgram(false)
	meta := animalMetadata(t)

	first, err := Emit(blocks, qm, meta)
	require.NoError(t, err)
	second, err := Emit(blocks, qm, meta)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEmit_BacktrackRestoresAlias(t *testing.T) {
	// Filter after backtracking applies to the root alias, not the
	// traversed one.
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf"},
		ir.MarkLocation{},
		ir.Backtrack{Location: ir.Root()},
		ir.Filter{Predicate: ir.BinaryComposition{
			Op:    ir.OpEquals,
			Left:  ir.LocalField{Name: "name"},
			Right: ir.Literal{Value: ir.String("Hedwig")},
		}},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"parent_name": ir.OutputField{Location: parentLoc, Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	qm.Record(parentLoc, ir.LocationInfo{Type: "Animal"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	cmp, ok := plan.Where.(relation.Comparison)
	require.True(t, ok)
	assert.Equal(t, relation.Column{Alias: "alias1", Name: "name"}, cmp.Left)
}

func TestEmit_FilterAtDepthZeroIsNotRewritten(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.Filter{Predicate: ir.BinaryComposition{
			Op:    ir.OpGreaterThan,
			Left:  ir.LocalField{Name: "net_worth"},
			Right: ir.Literal{Value: ir.Decimal("1000")},
		}},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"name": ir.OutputField{Location: ir.Root(), Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	_, ok := plan.Where.(relation.Comparison)
	assert.True(t, ok, "expected bare comparison, got %T", plan.Where)
}

func TestEmit_FilterInOptionalScopeGetsNullEscape(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf", Optional: true},
		ir.Filter{Predicate: ir.BinaryComposition{
			Op:    ir.OpEquals,
			Left:  ir.LocalField{Name: "name"},
			Right: ir.Literal{Value: ir.String("Nate")},
		}},
		ir.MarkLocation{},
		ir.EndOptional{},
		ir.Backtrack{Location: ir.Root()},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"name": ir.OutputField{Location: ir.Root(), Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	qm.Record(parentLoc, ir.LocationInfo{Type: "Animal", OptionalDepth: 1})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	or, ok := plan.Where.(relation.Or)
	require.True(t, ok, "expected Or, got %T", plan.Where)
	require.Len(t, or.Exprs, 2)
	assert.Equal(t,
		relation.IsNull{Expr: relation.Column{Alias: "alias2", Name: "name"}},
		or.Exprs[1])
}

func TestEmit_NullEscapeOnlyForDirectLocalFields(t *testing.T) {
	// The predicate references the optional scope's field through an
	// output reference, not a local field; no escape hatch is added.
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf", Optional: true},
		ir.MarkLocation{},
		ir.Filter{Predicate: ir.BinaryComposition{
			Op:    ir.OpEquals,
			Left:  ir.OutputField{Location: parentLoc, Name: "name"},
			Right: ir.Literal{Value: ir.String("Nate")},
		}},
		ir.EndOptional{},
		ir.Backtrack{Location: ir.Root()},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"name": ir.OutputField{Location: ir.Root(), Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	qm.Record(parentLoc, ir.LocationInfo{Type: "Animal", OptionalDepth: 1})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	or, ok := plan.Where.(relation.Or)
	require.True(t, ok)
	assert.Len(t, or.Exprs, 1)
}

func TestEmit_MultipleFiltersConjoin(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.Filter{Predicate: ir.BinaryComposition{
			Op:    ir.OpEquals,
			Left:  ir.LocalField{Name: "alive"},
			Right: ir.Literal{Value: ir.Bool(true)},
		}},
		ir.Filter{Predicate: ir.BinaryComposition{
			Op:    ir.OpLessThan,
			Left:  ir.LocalField{Name: "net_worth"},
			Right: ir.Literal{Value: ir.Decimal("5.50")},
		}},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"name": ir.OutputField{Location: ir.Root(), Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	and, ok := plan.Where.(relation.And)
	require.True(t, ok)
	assert.Len(t, and.Exprs, 2)
}

func TestEmit_NullComparisonBecomesIsNull(t *testing.T) {
	makeBlocks := func(op string) ([]ir.Block, *ir.QueryMetadata) {
		blocks := []ir.Block{
			ir.QueryRoot{StartType: "Animal"},
			ir.Filter{Predicate: ir.BinaryComposition{
				Op:    op,
				Left:  ir.LocalField{Name: "parent"},
				Right: ir.Literal{Value: ir.Null{}},
			}},
			ir.MarkLocation{},
			ir.GlobalOperationsStart{},
			ir.ConstructResult{Fields: map[string]ir.Expr{
				"name": ir.OutputField{Location: ir.Root(), Name: "name"},
			}},
		}
		qm := ir.NewQueryMetadata()
		qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
		return blocks, qm
	}

	blocks, qm := makeBlocks(ir.OpEquals)
	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)
	assert.Equal(t,
		relation.IsNull{Expr: relation.Column{Alias: "alias1", Name: "parent"}},
		plan.Where)

	blocks, qm = makeBlocks(ir.OpNotEquals)
	plan, err = Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)
	assert.Equal(t,
		relation.Not{Expr: relation.IsNull{Expr: relation.Column{Alias: "alias1", Name: "parent"}}},
		plan.Where)
}

func TestEmit_BooleanOperatorsMapToJunctions(t *testing.T) {
	pred := ir.BinaryComposition{
		Op: ir.OpAnd,
		Left: ir.BinaryComposition{
			Op:    ir.OpEquals,
			Left:  ir.LocalField{Name: "alive"},
			Right: ir.Literal{Value: ir.Bool(true)},
		},
		Right: ir.BinaryComposition{
			Op: ir.OpOr,
			Left: ir.BinaryComposition{
				Op:    ir.OpEquals,
				Left:  ir.LocalField{Name: "name"},
				Right: ir.Literal{Value: ir.String("Nate")},
			},
			Right: ir.BinaryComposition{
				Op:    ir.OpEquals,
				Left:  ir.LocalField{Name: "name"},
				Right: ir.Literal{Value: ir.String("Hedwig")},
			},
		},
	}
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.Filter{Predicate: pred},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"name": ir.OutputField{Location: ir.Root(), Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	and, ok := plan.Where.(relation.And)
	require.True(t, ok)
	require.Len(t, and.Exprs, 2)
	_, ok = and.Exprs[1].(relation.Or)
	assert.True(t, ok)
}

func TestEmit_OutputsSortedByLabel(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"zeta":  ir.OutputField{Location: ir.Root(), Name: "name"},
			"alpha": ir.OutputField{Location: ir.Root(), Name: "uuid"},
			"mid":   ir.OutputField{Location: ir.Root(), Name: "parent"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	labels := make([]string, len(plan.Outputs))
	for i, out := range plan.Outputs {
		labels[i] = out.Label
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, labels)
}

func TestEmit_SchemaMismatches(t *testing.T) {
	meta := animalMetadata(t)

	t.Run("unknown root type", func(t *testing.T) {
		blocks := []ir.Block{ir.QueryRoot{StartType: "Plant"}}
		qm := ir.NewQueryMetadata()
		qm.Record(ir.Root(), ir.LocationInfo{Type: "Plant"})

		_, err := Emit(blocks, qm, meta)
		require.Error(t, err)
		assert.True(t, IsSchemaMismatch(err))
		assert.True(t, schema.IsMismatch(err))
	})

	t.Run("unknown edge", func(t *testing.T) {
		blocks := []ir.Block{
			ir.QueryRoot{StartType: "Animal"},
			ir.MarkLocation{},
			ir.Traverse{Direction: "out", EdgeName: "Animal_FedBy"},
		}
		qm := ir.NewQueryMetadata()
		qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

		_, err := Emit(blocks, qm, meta)
		require.Error(t, err)
		assert.True(t, IsSchemaMismatch(err))
		assert.Contains(t, err.Error(), `edge "out_Animal_FedBy"`)
	})
}

func TestEmit_UnresolvedReferences(t *testing.T) {
	meta := animalMetadata(t)

	t.Run("backtrack to unmarked location", func(t *testing.T) {
		blocks := []ir.Block{
			ir.QueryRoot{StartType: "Animal"},
			ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf"},
			ir.Backtrack{Location: ir.Root()},
		}
		qm := ir.NewQueryMetadata()
		qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
		qm.Record(parentLoc, ir.LocationInfo{Type: "Animal"})

		_, err := Emit(blocks, qm, meta)
		require.Error(t, err)
		assert.True(t, IsUnresolvedReference(err))
		assert.Contains(t, err.Error(), "never marked")
	})

	t.Run("output from unmarked location", func(t *testing.T) {
		blocks := []ir.Block{
			ir.QueryRoot{StartType: "Animal"},
			ir.MarkLocation{},
			ir.GlobalOperationsStart{},
			ir.ConstructResult{Fields: map[string]ir.Expr{
				"parent_name": ir.OutputField{Location: parentLoc, Name: "name"},
			}},
		}
		qm := ir.NewQueryMetadata()
		qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

		_, err := Emit(blocks, qm, meta)
		require.Error(t, err)
		assert.True(t, IsUnresolvedReference(err))
	})

	t.Run("column not on table", func(t *testing.T) {
		blocks := []ir.Block{
			ir.QueryRoot{StartType: "Animal"},
			ir.Filter{Predicate: ir.BinaryComposition{
				Op:    ir.OpEquals,
				Left:  ir.LocalField{Name: "wingspan"},
				Right: ir.Literal{Value: ir.Int(2)},
			}},
			ir.MarkLocation{},
		}
		qm := ir.NewQueryMetadata()
		qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

		_, err := Emit(blocks, qm, meta)
		require.Error(t, err)
		assert.True(t, IsUnresolvedReference(err))
		assert.Contains(t, err.Error(), `column "wingspan"`)
	})
}

func TestEmit_UnsupportedProjection(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"flag": ir.Literal{Value: ir.Bool(true)},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

	_, err := Emit(blocks, qm, animalMetadata(t))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeUnsupportedProjection, ce.Code)
}

func TestEmit_SurvivingExistenceIsInternal(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"parent_name": ir.TernaryConditional{
				Predicate: ir.ContextFieldExistence{Location: parentLoc},
				IfTrue:    ir.OutputField{Location: parentLoc, Name: "name"},
				IfFalse:   ir.Literal{Value: ir.Null{}},
			},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})

	_, err := Emit(blocks, qm, animalMetadata(t))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeInternal, ce.Code)
}

func TestSplitBlocks_OrderingViolations(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []ir.Block
		wantErr string
	}{
		{
			name:    "empty program",
			blocks:  nil,
			wantErr: "no blocks",
		},
		{
			name:    "first block not QueryRoot",
			blocks:  []ir.Block{ir.MarkLocation{}},
			wantErr: "first block must be QueryRoot",
		},
		{
			name: "duplicate QueryRoot",
			blocks: []ir.Block{
				ir.QueryRoot{StartType: "Animal"},
				ir.QueryRoot{StartType: "Animal"},
			},
			wantErr: "duplicate QueryRoot",
		},
		{
			name: "duplicate GlobalOperationsStart",
			blocks: []ir.Block{
				ir.QueryRoot{StartType: "Animal"},
				ir.GlobalOperationsStart{},
				ir.GlobalOperationsStart{},
			},
			wantErr: "duplicate GlobalOperationsStart",
		},
		{
			name: "ConstructResult before marker",
			blocks: []ir.Block{
				ir.QueryRoot{StartType: "Animal"},
				ir.ConstructResult{},
			},
			wantErr: "ConstructResult before GlobalOperationsStart",
		},
		{
			name: "local block after marker",
			blocks: []ir.Block{
				ir.QueryRoot{StartType: "Animal"},
				ir.GlobalOperationsStart{},
				ir.Filter{},
			},
			wantErr: "after GlobalOperationsStart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := SplitBlocks(tt.blocks)
			require.Error(t, err)
			assert.True(t, IsStructural(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitBlocks_ConsumesMarker(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{},
	}

	startType, locals, globals, err := SplitBlocks(blocks)
	require.NoError(t, err)
	assert.Equal(t, "Animal", startType)
	assert.Equal(t, []ir.Block{ir.MarkLocation{}}, locals)
	assert.Equal(t, []ir.Block{ir.ConstructResult{}}, globals)
}

func TestCompile_LowersExistenceTernary(t *testing.T) {
	blocks, qm := parentProgram(true)
	// Swap the plain output for an existence ternary; Compile lowers it
	// before emission.
	blocks[6] = ir.ConstructResult{Fields: map[string]ir.Expr{
		"parent_name": ir.TernaryConditional{
			Predicate: ir.ContextFieldExistence{Location: parentLoc},
			IfTrue:    ir.OutputField{Location: parentLoc, Name: "name"},
			IfFalse:   ir.Literal{Value: ir.Null{}},
		},
	}}
	prog := &ir.Program{Blocks: blocks, Metadata: qm}

	plan, err := Compile(prog, animalMetadata(t))
	require.NoError(t, err)
	require.Len(t, plan.Outputs, 1)
	assert.Equal(t, relation.Column{Alias: "alias2", Name: "name"}, plan.Outputs[0].Expr)
}

func TestCompile_BareExistenceIsInternal(t *testing.T) {
	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.Filter{Predicate: ir.ContextFieldExistence{Location: parentLoc}},
		ir.MarkLocation{},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	prog := &ir.Program{Blocks: blocks, Metadata: qm}

	_, err := Compile(prog, animalMetadata(t))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeInternal, ce.Code)
}

func TestEmit_DeepTraversalAliasNumbering(t *testing.T) {
	grandLoc := parentLoc.Navigate("out_Animal_ParentOf")
	speciesLoc := ir.LocationAt("out_Animal_OfSpecies")

	blocks := []ir.Block{
		ir.QueryRoot{StartType: "Animal"},
		ir.MarkLocation{},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf"},
		ir.MarkLocation{},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf"},
		ir.MarkLocation{},
		ir.Backtrack{Location: ir.Root()},
		ir.Traverse{Direction: "out", EdgeName: "Animal_OfSpecies"},
		ir.MarkLocation{},
		ir.Backtrack{Location: ir.Root()},
		ir.GlobalOperationsStart{},
		ir.ConstructResult{Fields: map[string]ir.Expr{
			"grandparent_name": ir.OutputField{Location: grandLoc, Name: "name"},
			"species_name":     ir.OutputField{Location: speciesLoc, Name: "name"},
		}},
	}
	qm := ir.NewQueryMetadata()
	qm.Record(ir.Root(), ir.LocationInfo{Type: "Animal"})
	qm.Record(parentLoc, ir.LocationInfo{Type: "Animal"})
	qm.Record(grandLoc, ir.LocationInfo{Type: "Animal"})
	qm.Record(speciesLoc, ir.LocationInfo{Type: "Species"})

	plan, err := Emit(blocks, qm, animalMetadata(t))
	require.NoError(t, err)

	require.Len(t, plan.From.Joins, 3)
	// The species join hangs off the root alias even though it was
	// emitted after the two-hop parent chain.
	assert.Equal(t, "alias1", plan.From.Joins[2].Left.Alias)
	assert.Equal(t, relation.TableAlias{Table: "Species", Alias: "alias4"}, plan.From.Joins[2].Target)

	require.Len(t, plan.Outputs, 2)
	assert.Equal(t, relation.Column{Alias: "alias3", Name: "name"}, plan.Outputs[0].Expr)
	assert.Equal(t, relation.Column{Alias: "alias4", Name: "name"}, plan.Outputs[1].Expr)
}
