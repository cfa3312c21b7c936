package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testTable() *Table {
	return &Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: TypeInteger, PrimaryKey: true},
			{Name: "name", Type: TypeText},
			{Name: "score", Type: TypeReal},
		},
	}
}

func TestPredicateComparisons(t *testing.T) {
	tbl := testTable()
	row := []SimValue{IntegerValue(1), TextValue("ada"), RealValue(2.5)}

	assert.Equal(t, TernTrue, ComparePredicate("id", OpEq, IntegerValue(1)).Eval(tbl, row))
	assert.Equal(t, TernFalse, ComparePredicate("id", OpEq, IntegerValue(2)).Eval(tbl, row))
	assert.Equal(t, TernTrue, ComparePredicate("score", OpGt, RealValue(2)).Eval(tbl, row))
	assert.Equal(t, TernTrue, ComparePredicate("name", OpLe, TextValue("ada")).Eval(tbl, row))
	assert.Equal(t, TernTrue, ComparePredicate("id", OpNe, IntegerValue(3)).Eval(tbl, row))
}

func TestPredicateNullComparisonsYieldNull(t *testing.T) {
	tbl := testTable()
	row := []SimValue{IntegerValue(1), NullValue(), RealValue(2.5)}

	p := ComparePredicate("name", OpEq, TextValue("ada"))
	assert.Equal(t, TernNull, p.Eval(tbl, row))
	assert.False(t, p.Eval(tbl, row).AsBool())

	q := ComparePredicate("id", OpEq, NullValue())
	assert.Equal(t, TernNull, q.Eval(tbl, row))
}

func TestPredicateThreeValuedCombinators(t *testing.T) {
	tbl := testTable()
	row := []SimValue{IntegerValue(1), NullValue(), RealValue(2.5)}

	isOne := ComparePredicate("id", OpEq, IntegerValue(1))
	isTwo := ComparePredicate("id", OpEq, IntegerValue(2))
	nullCmp := ComparePredicate("name", OpEq, TextValue("ada"))

	// FALSE AND NULL is FALSE; TRUE AND NULL is NULL.
	assert.Equal(t, TernFalse, AndPredicate(isTwo, nullCmp).Eval(tbl, row))
	assert.Equal(t, TernNull, AndPredicate(isOne, nullCmp).Eval(tbl, row))
	// TRUE OR NULL is TRUE; FALSE OR NULL is NULL.
	assert.Equal(t, TernTrue, OrPredicate(isOne, nullCmp).Eval(tbl, row))
	assert.Equal(t, TernNull, OrPredicate(isTwo, nullCmp).Eval(tbl, row))
	// NOT NULL is NULL.
	assert.Equal(t, TernNull, NotPredicate(nullCmp).Eval(tbl, row))
	assert.Equal(t, TernFalse, NotPredicate(isOne).Eval(tbl, row))
}

func TestPredicateRendering(t *testing.T) {
	p := AndPredicate(
		ComparePredicate("id", OpEq, IntegerValue(5)),
		ComparePredicate("name", OpNe, TextValue("x")),
	)
	assert.Equal(t, "(id = 5 AND name <> 'x')", p.String())
	assert.Equal(t, "TRUE", TruePredicate().String())
	assert.Equal(t, "NOT (id = 5)", NotPredicate(ComparePredicate("id", OpEq, IntegerValue(5))).String())
}

func TestTernaryAsValue(t *testing.T) {
	assert.Equal(t, IntegerValue(1), TernTrue.AsValue())
	assert.Equal(t, IntegerValue(0), TernFalse.AsValue())
	assert.True(t, TernNull.AsValue().IsNull())
}
