package generation

import (
	"math/rand"

	"sqlsim/core"
)

// RandomCreate builds a CREATE TABLE for a name not present in the catalog.
func RandomCreate(rng *rand.Rand, tables *core.Catalog) *core.Create {
	name := randIdent(rng, "t_", 6)
	for tables != nil && tables.Has(name) {
		name = randIdent(rng, "t_", 6)
	}
	numCols := 1 + rng.Intn(5)
	cols := make([]core.Column, 0, numCols)
	seen := map[string]bool{}
	for len(cols) < numCols {
		colName := randIdent(rng, "c_", 4)
		if seen[colName] {
			continue
		}
		seen[colName] = true
		col := core.Column{Name: colName, Type: randColumnType(rng)}
		if len(cols) == 0 && rng.Intn(2) == 0 {
			col.Type = core.TypeInteger
			col.PrimaryKey = true
		} else if rng.Intn(5) == 0 {
			col.NotNull = true
		}
		cols = append(cols, col)
	}
	return &core.Create{Table: core.Table{Name: name, Columns: cols}}
}

func randTable(rng *rand.Rand, tables *core.Catalog) *core.Table {
	if len(tables.Tables) == 0 {
		return nil
	}
	return tables.Tables[rng.Intn(len(tables.Tables))]
}

// RandomSelect builds a SELECT over an existing table; nil without one.
func RandomSelect(rng *rand.Rand, tables *core.Catalog) *core.Select {
	t := randTable(rng, tables)
	if t == nil {
		return nil
	}
	sel := &core.Select{
		Table:         t.Name,
		ResultColumns: []core.ResultColumn{core.StarColumn()},
		Predicate:     randPredicate(rng, t),
		Distinct:      core.DistinctnessAll,
	}
	if rng.Intn(5) == 0 {
		sel.Distinct = core.DistinctnessDistinct
	}
	if rng.Intn(4) == 0 {
		limit := 1 + rng.Intn(10)
		sel.Limit = &limit
	}
	return sel
}

// RandomInsert builds an INSERT of full-arity rows into an existing table.
func RandomInsert(rng *rand.Rand, tables *core.Catalog, minRows, maxRows int) *core.Insert {
	t := randTable(rng, tables)
	if t == nil {
		return nil
	}
	if minRows < 1 {
		minRows = 1
	}
	if maxRows < minRows {
		maxRows = minRows
	}
	numRows := minRows + rng.Intn(maxRows-minRows+1)
	values := make([][]core.SimValue, numRows)
	for i := range values {
		row := make([]core.SimValue, len(t.Columns))
		for j, col := range t.Columns {
			row[j] = randValueForColumn(rng, col)
		}
		values[i] = row
	}
	return &core.Insert{Table: t.Name, Values: values}
}

// RandomDelete builds a DELETE with a row-biased predicate.
func RandomDelete(rng *rand.Rand, tables *core.Catalog) *core.Delete {
	t := randTable(rng, tables)
	if t == nil {
		return nil
	}
	return &core.Delete{Table: t.Name, Predicate: randPredicate(rng, t)}
}

// RandomUpdate assigns fresh literals to one or two columns. Primary-key
// columns are never assigned: a multi-row update on a key column would be
// rejected by the engine while the shadow applied it.
func RandomUpdate(rng *rand.Rand, tables *core.Catalog) *core.Update {
	t := randTable(rng, tables)
	if t == nil {
		return nil
	}
	var candidates []core.Column
	for _, col := range t.Columns {
		if !col.PrimaryKey {
			candidates = append(candidates, col)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	numSet := 1
	if len(candidates) > 1 && rng.Intn(2) == 0 {
		numSet = 2
	}
	set := make([]core.Assignment, 0, numSet)
	used := map[int]bool{}
	for len(set) < numSet {
		idx := rng.Intn(len(candidates))
		if used[idx] {
			continue
		}
		used[idx] = true
		col := candidates[idx]
		set = append(set, core.Assignment{Column: col.Name, Value: randValue(rng, col.Type)})
	}
	return &core.Update{Table: t.Name, Set: set, Predicate: randPredicate(rng, t)}
}

// RandomDrop drops a random existing table; nil without one.
func RandomDrop(rng *rand.Rand, tables *core.Catalog) *core.Drop {
	t := randTable(rng, tables)
	if t == nil {
		return nil
	}
	return &core.Drop{Table: t.Name}
}

// RandomCreateIndex builds a CREATE INDEX over an existing table's columns;
// nil when the catalog is empty.
func RandomCreateIndex(rng *rand.Rand, tables *core.Catalog) *core.CreateIndex {
	t := randTable(rng, tables)
	if t == nil || len(t.Columns) == 0 {
		return nil
	}
	numCols := 1
	if len(t.Columns) > 1 && rng.Intn(3) == 0 {
		numCols = 2
	}
	cols := make([]string, 0, numCols)
	used := map[int]bool{}
	for len(cols) < numCols {
		idx := rng.Intn(len(t.Columns))
		if used[idx] {
			continue
		}
		used[idx] = true
		cols = append(cols, t.Columns[idx].Name)
	}
	return &core.CreateIndex{IndexName: randIdent(rng, "i_", 6), Table: t.Name, Columns: cols}
}
