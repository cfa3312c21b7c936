// Package generation builds interaction plans: weighted-random queries,
// composite properties with embedded assumptions and assertions, and the
// plan's textual and canonical serialized forms.
package generation

import (
	"math/rand"

	"sqlsim/core"
)

// producer couples a selection weight with a constructor. Weights at or
// below zero are never chosen.
type producer[T any] struct {
	weight  float64
	produce func(rng *rand.Rand) T
}

// frequency draws uniformly in [0, totalWeight) and dispatches to the first
// producer whose cumulative weight exceeds the draw. With no positive weight
// the first producer wins.
func frequency[T any](items []producer[T], rng *rand.Rand) T {
	total := 0.0
	for _, it := range items {
		if it.weight > 0 {
			total += it.weight
		}
	}
	if total <= 0 {
		return items[0].produce(rng)
	}
	draw := rng.Float64() * total
	acc := 0.0
	for _, it := range items {
		if it.weight <= 0 {
			continue
		}
		acc += it.weight
		if draw < acc {
			return it.produce(rng)
		}
	}
	return items[len(items)-1].produce(rng)
}

const identAlphabet = "abcdefghijklmnopqrstuvwxyz"

func randIdent(rng *rand.Rand, prefix string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = identAlphabet[rng.Intn(len(identAlphabet))]
	}
	return prefix + string(b)
}

func randColumnType(rng *rand.Rand) core.ColumnType {
	switch rng.Intn(4) {
	case 0:
		return core.TypeInteger
	case 1:
		return core.TypeReal
	case 2:
		return core.TypeText
	default:
		return core.TypeBlob
	}
}

// randValue produces a literal of the given affinity. Reals are drawn from
// halves so they round-trip every engine's float handling exactly.
func randValue(rng *rand.Rand, t core.ColumnType) core.SimValue {
	switch t {
	case core.TypeInteger:
		return core.IntegerValue(rng.Int63n(1 << 32))
	case core.TypeReal:
		return core.RealValue(float64(rng.Intn(2000)-1000) / 2)
	case core.TypeText:
		return core.TextValue(randIdent(rng, "", 1+rng.Intn(8)))
	default:
		b := make([]byte, 1+rng.Intn(8))
		for i := range b {
			b[i] = byte(rng.Intn(256))
		}
		return core.BlobValue(b)
	}
}

func randValueForColumn(rng *rand.Rand, col core.Column) core.SimValue {
	if !col.NotNull && !col.PrimaryKey && rng.Intn(10) == 0 {
		return core.NullValue()
	}
	return randValue(rng, col.Type)
}

// randPredicate builds a predicate over the table's columns, biased toward
// matching an existing shadow row so selects and deletes see data.
func randPredicate(rng *rand.Rand, t *core.Table) core.Predicate {
	if t == nil || len(t.Columns) == 0 || rng.Intn(10) == 0 {
		return core.TruePredicate()
	}
	leaf := func() core.Predicate {
		colIdx := rng.Intn(len(t.Columns))
		col := t.Columns[colIdx]
		var val core.SimValue
		if len(t.Rows) > 0 && rng.Intn(4) != 0 {
			row := t.Rows[rng.Intn(len(t.Rows))]
			val = row[colIdx]
		} else {
			val = randValue(rng, col.Type)
		}
		if val.IsNull() {
			// NULL never compares true; fall back to a literal draw.
			val = randValue(rng, col.Type)
		}
		ops := []core.CompareOp{core.OpEq, core.OpNe, core.OpGt, core.OpGe, core.OpLt, core.OpLe}
		return core.ComparePredicate(col.Name, ops[rng.Intn(len(ops))], val)
	}
	switch rng.Intn(6) {
	case 0:
		return core.AndPredicate(leaf(), leaf())
	case 1:
		return core.OrPredicate(leaf(), leaf())
	case 2:
		return core.NotPredicate(leaf())
	default:
		return leaf()
	}
}
