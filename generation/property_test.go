package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlsim/core"
	"sqlsim/sim"
)

func insertValuesSelectFixture() *Property {
	insert := core.Query{Insert: &core.Insert{Table: "pairs", Values: [][]core.SimValue{
		{core.IntegerValue(42), core.TextValue("x")},
	}}}
	sel := core.Query{Select: &core.Select{
		Table:         "pairs",
		ResultColumns: []core.ResultColumn{core.StarColumn()},
		Predicate:     core.ComparePredicate("a", core.OpEq, core.IntegerValue(42)),
		Distinct:      core.DistinctnessAll,
	}}
	return &Property{InsertValuesSelect: &InsertValuesSelect{
		Insert:   insert,
		RowIndex: 0,
		Queries: []core.Query{
			{Select: &core.Select{Table: "pairs", ResultColumns: []core.ResultColumn{core.StarColumn()}, Predicate: core.TruePredicate(), Distinct: core.DistinctnessAll}},
			{Select: &core.Select{Table: "pairs", ResultColumns: []core.ResultColumn{core.StarColumn()}, Predicate: core.TruePredicate(), Distinct: core.DistinctnessAll}},
		},
		Select: sel,
	}}
}

func TestInsertValuesSelectExpansion(t *testing.T) {
	p := insertValuesSelectFixture()
	interactions := p.Interactions()

	// assumption, insert, two fillers, select, assertion
	require.Len(t, interactions, 6)
	assert.NotNil(t, interactions[0].Assumption)
	assert.NotNil(t, interactions[1].Query)
	assert.NotNil(t, interactions[2].Query)
	assert.NotNil(t, interactions[3].Query)
	assert.NotNil(t, interactions[4].Query)
	require.NotNil(t, interactions[5].Assertion)

	kind, ok := interactions[5].Assertion.Kind.(RowInLastResult)
	require.True(t, ok)
	assert.True(t, core.RowsEqual(kind.Row, []core.SimValue{core.IntegerValue(42), core.TextValue("x")}))
}

func TestDoubleCreateFailureExpansion(t *testing.T) {
	create := core.Query{Create: &core.Create{Table: core.Table{
		Name:    "users",
		Columns: []core.Column{{Name: "id", Type: core.TypeInteger, PrimaryKey: true}},
	}}}
	p := Property{DoubleCreateFailure: &DoubleCreateFailure{Create: create}}
	interactions := p.Interactions()

	require.Len(t, interactions, 5)
	assert.NotNil(t, interactions[0].Assumption)
	require.NotNil(t, interactions[1].Query)
	require.NotNil(t, interactions[2].Query)
	assert.Equal(t, interactions[1].Query.String(), interactions[2].Query.String())
	assert.NotNil(t, interactions[3].Assumption)
	assert.NotNil(t, interactions[4].Assertion)
}

func TestPropertyShadowAppliesEachQueryExactlyOnce(t *testing.T) {
	env := sim.NewGenerationEnv(sim.DefaultOptions(), nil)
	env.Tables.Add(&core.Table{Name: "pairs", Columns: []core.Column{
		{Name: "a", Type: core.TypeInteger},
		{Name: "b", Type: core.TypeText},
	}})

	p := insertValuesSelectFixture()
	item := Interactions{Property: p}
	item.Shadow(env)

	// The embedded insert must land exactly once even though the property
	// both carries it as a field and expands it as an interaction.
	assert.Len(t, env.Tables.Table("pairs").Rows, 1)
}

func TestDoubleCreateShadowKeepsOneTable(t *testing.T) {
	env := sim.NewGenerationEnv(sim.DefaultOptions(), nil)
	create := core.Query{Create: &core.Create{Table: core.Table{
		Name:    "users",
		Columns: []core.Column{{Name: "id", Type: core.TypeInteger}},
	}}}
	item := Interactions{Property: &Property{DoubleCreateFailure: &DoubleCreateFailure{Create: create}}}
	item.Shadow(env)

	assert.Equal(t, 1, env.Tables.Count("users"))
}

func TestDeleteSelectExpansionEndsEmptyAssertion(t *testing.T) {
	p := Property{DeleteSelect: &DeleteSelect{
		Table:     "t",
		Predicate: core.ComparePredicate("a", core.OpGt, core.IntegerValue(0)),
	}}
	interactions := p.Interactions()
	require.Len(t, interactions, 4)
	assert.NotNil(t, interactions[1].Query.Delete)
	assert.NotNil(t, interactions[2].Query.Select)
	_, ok := interactions[3].Assertion.Kind.(EmptyLastResult)
	assert.True(t, ok)
}

func TestDropSelectExpansion(t *testing.T) {
	sel := core.Query{Select: &core.Select{
		Table:         "orders",
		ResultColumns: []core.ResultColumn{core.StarColumn()},
		Predicate:     core.TruePredicate(),
		Distinct:      core.DistinctnessAll,
	}}
	p := Property{DropSelect: &DropSelect{Table: "orders", Select: sel}}
	interactions := p.Interactions()
	require.Len(t, interactions, 4)
	assert.NotNil(t, interactions[1].Query.Drop)
	_, ok := interactions[3].Assertion.Kind.(NoSuchTableLastResult)
	assert.True(t, ok)
}

func TestSelectSelectOptimizerExpansion(t *testing.T) {
	p := Property{SelectSelectOptimizer: &SelectSelectOptimizer{
		Table:     "t",
		Predicate: core.ComparePredicate("a", core.OpEq, core.IntegerValue(1)),
	}}
	interactions := p.Interactions()
	require.Len(t, interactions, 4)

	projected := interactions[1].Query.Select
	require.NotNil(t, projected)
	assert.True(t, projected.Predicate.True)
	require.Len(t, projected.ResultColumns, 1)
	assert.NotNil(t, projected.ResultColumns[0].Expr)

	filtered := interactions[2].Query.Select
	require.NotNil(t, filtered)
	assert.True(t, filtered.ResultColumns[0].Star)
	assert.False(t, filtered.Predicate.True)
}

func TestRemainingClampsToZero(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.MaxInteractions = 10
	opts.ReadPercent = 20 // target 2 reads

	r := RemainingOf(opts, InteractionStats{ReadCount: 5})
	assert.Equal(t, 0.0, r.Read)

	r = RemainingOf(opts, InteractionStats{ReadCount: 1})
	assert.Equal(t, 1.0, r.Read)
}

func TestRandomPropertyWithEmptyCatalog(t *testing.T) {
	env := sim.NewGenerationEnv(sim.DefaultOptions(), nil)
	p := RandomProperty(env.Rng, env, InteractionStats{})
	assert.Equal(t, "DoubleCreateFailure", p.Name())
}

func TestPropertyAssertionChecks(t *testing.T) {
	env := sim.NewGenerationEnv(sim.DefaultOptions(), nil)
	env.Tables.Add(&core.Table{Name: "t", Columns: []core.Column{{Name: "a", Type: core.TypeInteger}}})

	ok, err := TableInCatalog{Table: "t"}.Check(nil, env)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = TableNotInCatalog{Table: "t"}.Check(nil, env)
	require.NoError(t, err)
	assert.False(t, ok)

	row := []core.SimValue{core.IntegerValue(1)}
	stack := []sim.ResultSet{{Rows: [][]core.SimValue{row}}}
	ok, err = RowInLastResult{Row: row}.Check(stack, env)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EmptyLastResult{}.Check(stack, env)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = EmptyLastResult{}.Check(nil, env)
	assert.Error(t, err, "empty stack must be an evaluation error")

	stack = []sim.ResultSet{
		{Rows: [][]core.SimValue{{core.IntegerValue(1)}, {core.IntegerValue(0)}, {core.NullValue()}}},
		{Rows: [][]core.SimValue{{core.IntegerValue(9)}}},
	}
	ok, err = PredicateCountAgrees{}.Check(stack, env)
	require.NoError(t, err)
	assert.True(t, ok, "one truthy projected value matches one filtered row")
}
