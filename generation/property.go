package generation

import (
	"fmt"
	"math/rand"

	"sqlsim/core"
	"sqlsim/sim"
)

// InsertValuesSelect inserts rows, runs filler reads, selects one inserted
// row back by equality on each of its non-null values, and asserts the row
// came back intact.
type InsertValuesSelect struct {
	Insert   core.Query   `json:"insert"`
	RowIndex int          `json:"row_index"`
	Queries  []core.Query `json:"queries"`
	Select   core.Query   `json:"select"`
}

// DoubleCreateFailure creates a table twice with filler reads in between;
// the second create must fail or be a no-op, and the schema must still list
// the table exactly once.
type DoubleCreateFailure struct {
	Create  core.Query   `json:"create"`
	Queries []core.Query `json:"queries"`
}

// SelectLimit runs a SELECT with a LIMIT and asserts the truncation.
type SelectLimit struct {
	Select core.Query `json:"select"`
}

// DeleteSelect deletes by a predicate, runs filler reads, re-selects by the
// same predicate, and asserts emptiness.
type DeleteSelect struct {
	Table     string         `json:"table"`
	Predicate core.Predicate `json:"predicate"`
	Queries   []core.Query   `json:"queries"`
}

// DropSelect drops a table, runs filler reads, selects from the dropped
// table, and asserts the engine reports schema absence.
type DropSelect struct {
	Table   string       `json:"table"`
	Queries []core.Query `json:"queries"`
	Select  core.Query   `json:"select"`
}

// SelectSelectOptimizer issues two semantically equivalent selects and
// asserts their evaluated predicate multisets agree.
type SelectSelectOptimizer struct {
	Table     string         `json:"table"`
	Predicate core.Predicate `json:"predicate"`
}

// Property is the closed enumeration of composite tests; exactly one field
// is non-nil. Names are part of the plan format.
type Property struct {
	InsertValuesSelect    *InsertValuesSelect    `json:"InsertValuesSelect,omitempty"`
	DoubleCreateFailure   *DoubleCreateFailure   `json:"DoubleCreateFailure,omitempty"`
	SelectLimit           *SelectLimit           `json:"SelectLimit,omitempty"`
	DeleteSelect          *DeleteSelect          `json:"DeleteSelect,omitempty"`
	DropSelect            *DropSelect            `json:"DropSelect,omitempty"`
	SelectSelectOptimizer *SelectSelectOptimizer `json:"SelectSelectOptimizer,omitempty"`
}

// Name returns the property's plan-format name.
func (p *Property) Name() string {
	switch {
	case p.InsertValuesSelect != nil:
		return "InsertValuesSelect"
	case p.DoubleCreateFailure != nil:
		return "DoubleCreateFailure"
	case p.SelectLimit != nil:
		return "SelectLimit"
	case p.DeleteSelect != nil:
		return "DeleteSelect"
	case p.DropSelect != nil:
		return "DropSelect"
	case p.SelectSelectOptimizer != nil:
		return "SelectSelectOptimizer"
	}
	return "Unknown"
}

// Interactions expands the property into its ordered interaction list.
// Assumptions gate execution; assertions fail the run.
func (p *Property) Interactions() []Interaction {
	switch {
	case p.InsertValuesSelect != nil:
		return p.InsertValuesSelect.interactions()
	case p.DoubleCreateFailure != nil:
		return p.DoubleCreateFailure.interactions()
	case p.SelectLimit != nil:
		return p.SelectLimit.interactions()
	case p.DeleteSelect != nil:
		return p.DeleteSelect.interactions()
	case p.DropSelect != nil:
		return p.DropSelect.interactions()
	case p.SelectSelectOptimizer != nil:
		return p.SelectSelectOptimizer.interactions()
	}
	return nil
}

func queryInteraction(q core.Query) Interaction {
	return Interaction{Query: &q}
}

func queryInteractions(qs []core.Query) []Interaction {
	out := make([]Interaction, len(qs))
	for i, q := range qs {
		out[i] = queryInteraction(q)
	}
	return out
}

func (p *InsertValuesSelect) interactions() []Interaction {
	table := p.Insert.Insert.Table
	row := p.Insert.Insert.Values[p.RowIndex]
	out := []Interaction{
		{Assumption: &Assertion{
			Message: fmt.Sprintf("table %s exists", table),
			Kind:    TableInCatalog{Table: table},
		}},
		queryInteraction(p.Insert),
	}
	out = append(out, queryInteractions(p.Queries)...)
	out = append(out,
		queryInteraction(p.Select),
		Interaction{Assertion: &Assertion{
			Message: fmt.Sprintf("selecting inserted row %d from %s returns the inserted values", p.RowIndex, table),
			Kind:    RowInLastResult{Row: row},
		}},
	)
	return out
}

func (p *DoubleCreateFailure) interactions() []Interaction {
	table := p.Create.Create.Table.Name
	out := []Interaction{
		{Assumption: &Assertion{
			Message: fmt.Sprintf("table %s does not exist yet", table),
			Kind:    TableNotInCatalog{Table: table},
		}},
		queryInteraction(p.Create),
	}
	out = append(out, queryInteractions(p.Queries)...)
	out = append(out,
		queryInteraction(p.Create),
		Interaction{Assumption: &Assertion{
			Message: fmt.Sprintf("creating %s again fails or is a no-op", table),
			Kind:    CreateFailedOrNoop{Table: table},
		}},
		Interaction{Assertion: &Assertion{
			Message: fmt.Sprintf("schema still lists %s exactly once", table),
			Kind:    SchemaListsOnce{Table: table},
		}},
	)
	return out
}

func (p *SelectLimit) interactions() []Interaction {
	sel := p.Select.Select
	limit := 0
	if sel.Limit != nil {
		limit = *sel.Limit
	}
	return []Interaction{
		{Assumption: &Assertion{
			Message: fmt.Sprintf("table %s exists", sel.Table),
			Kind:    TableInCatalog{Table: sel.Table},
		}},
		queryInteraction(p.Select),
		{Assertion: &Assertion{
			Message: fmt.Sprintf("select on %s returns at most %d rows and matches the shadow truncation", sel.Table, limit),
			Kind:    LimitRespected{Select: sel, Limit: limit},
		}},
	}
}

func (p *DeleteSelect) interactions() []Interaction {
	deleteQuery := core.Query{Delete: &core.Delete{Table: p.Table, Predicate: p.Predicate}}
	selectQuery := core.Query{Select: &core.Select{
		Table:         p.Table,
		ResultColumns: []core.ResultColumn{core.StarColumn()},
		Predicate:     p.Predicate,
		Distinct:      core.DistinctnessAll,
	}}
	out := []Interaction{
		{Assumption: &Assertion{
			Message: fmt.Sprintf("table %s exists", p.Table),
			Kind:    TableInCatalog{Table: p.Table},
		}},
		queryInteraction(deleteQuery),
	}
	out = append(out, queryInteractions(p.Queries)...)
	out = append(out,
		queryInteraction(selectQuery),
		Interaction{Assertion: &Assertion{
			Message: fmt.Sprintf("selecting deleted rows from %s returns nothing", p.Table),
			Kind:    EmptyLastResult{},
		}},
	)
	return out
}

func (p *DropSelect) interactions() []Interaction {
	dropQuery := core.Query{Drop: &core.Drop{Table: p.Table}}
	out := []Interaction{
		{Assumption: &Assertion{
			Message: fmt.Sprintf("table %s exists", p.Table),
			Kind:    TableInCatalog{Table: p.Table},
		}},
		queryInteraction(dropQuery),
	}
	out = append(out, queryInteractions(p.Queries)...)
	out = append(out,
		queryInteraction(p.Select),
		Interaction{Assertion: &Assertion{
			Message: fmt.Sprintf("selecting from dropped table %s reports schema absence", p.Table),
			Kind:    NoSuchTableLastResult{},
		}},
	)
	return out
}

func (p *SelectSelectOptimizer) interactions() []Interaction {
	projected := core.Query{Select: &core.Select{
		Table:         p.Table,
		ResultColumns: []core.ResultColumn{core.ExprColumn(p.Predicate)},
		Predicate:     core.TruePredicate(),
		Distinct:      core.DistinctnessAll,
	}}
	filtered := core.Query{Select: &core.Select{
		Table:         p.Table,
		ResultColumns: []core.ResultColumn{core.StarColumn()},
		Predicate:     p.Predicate,
		Distinct:      core.DistinctnessAll,
	}}
	return []Interaction{
		{Assumption: &Assertion{
			Message: fmt.Sprintf("table %s exists", p.Table),
			Kind:    TableInCatalog{Table: p.Table},
		}},
		queryInteraction(projected),
		queryInteraction(filtered),
		{Assertion: &Assertion{
			Message: fmt.Sprintf("equivalent selects on %s agree on the predicate multiset", p.Table),
			Kind:    PredicateCountAgrees{},
		}},
	}
}

// Remaining is the positive per-kind slack between configured targets and
// the counts accumulated so far; negative slack clamps to zero.
type Remaining struct {
	Read        float64
	Write       float64
	Create      float64
	CreateIndex float64
	Delete      float64
	Update      float64
	Drop        float64
}

func clampRemaining(target float64, count int) float64 {
	r := target - float64(count)
	if r < 0 {
		return 0
	}
	return r
}

// RemainingOf derives the per-kind budgets from the options' target ratios
// and the plan's stats.
func RemainingOf(opts sim.Options, stats InteractionStats) Remaining {
	total := float64(opts.MaxInteractions)
	return Remaining{
		Read:        clampRemaining(total*opts.ReadPercent/100, stats.ReadCount),
		Write:       clampRemaining(total*opts.WritePercent/100, stats.WriteCount),
		Create:      clampRemaining(total*opts.CreatePercent/100, stats.CreateCount),
		CreateIndex: clampRemaining(total*opts.CreateIndexPercent/100, stats.CreateIndexCount),
		Delete:      clampRemaining(total*opts.DeletePercent/100, stats.DeleteCount),
		Update:      clampRemaining(total*opts.UpdatePercent/100, stats.UpdateCount),
		Drop:        clampRemaining(total*opts.DropPercent/100, stats.DropCount),
	}
}

// fillerQueries are read-only so they cannot disturb a property's target
// table between its setup and its verification.
func fillerQueries(rng *rand.Rand, tables *core.Catalog) []core.Query {
	num := rng.Intn(3)
	out := make([]core.Query, 0, num)
	for i := 0; i < num; i++ {
		if sel := RandomSelect(rng, tables); sel != nil {
			out = append(out, core.Query{Select: sel})
		}
	}
	return out
}

// RandomProperty draws a property whose weights follow the remaining
// per-kind budgets. Properties needing a table fall back to
// DoubleCreateFailure when the catalog is empty.
func RandomProperty(rng *rand.Rand, env *sim.SimulatorEnv, stats InteractionStats) Property {
	r := RemainingOf(env.Opts, stats)

	doubleCreate := func(rng *rand.Rand) Property {
		create := RandomCreate(rng, env.Tables)
		return Property{DoubleCreateFailure: &DoubleCreateFailure{
			Create:  core.Query{Create: create},
			Queries: fillerQueries(rng, env.Tables),
		}}
	}
	if len(env.Tables.Tables) == 0 {
		return doubleCreate(rng)
	}

	return frequency([]producer[Property]{
		{
			weight: minFloat(r.Read, r.Write),
			produce: func(rng *rand.Rand) Property {
				insert := RandomInsert(rng, env.Tables, env.Opts.MinRowsPerInsert, env.Opts.MaxRowsPerInsert)
				rowIndex := rng.Intn(len(insert.Values))
				row := insert.Values[rowIndex]
				t := env.Tables.Table(insert.Table)
				sel := &core.Select{
					Table:         insert.Table,
					ResultColumns: []core.ResultColumn{core.StarColumn()},
					Predicate:     rowAnchorPredicate(t, row),
					Distinct:      core.DistinctnessAll,
				}
				return Property{InsertValuesSelect: &InsertValuesSelect{
					Insert:   core.Query{Insert: insert},
					RowIndex: rowIndex,
					Queries:  fillerQueries(rng, env.Tables),
					Select:   core.Query{Select: sel},
				}}
			},
		},
		{weight: r.Create, produce: doubleCreate},
		{
			weight: r.Read,
			produce: func(rng *rand.Rand) Property {
				sel := RandomSelect(rng, env.Tables)
				limit := 1 + rng.Intn(10)
				sel.Limit = &limit
				return Property{SelectLimit: &SelectLimit{Select: core.Query{Select: sel}}}
			},
		},
		{
			weight: minFloat(r.Read, r.Delete),
			produce: func(rng *rand.Rand) Property {
				t := randTable(rng, env.Tables)
				return Property{DeleteSelect: &DeleteSelect{
					Table:     t.Name,
					Predicate: randPredicate(rng, t),
					Queries:   fillerQueries(rng, env.Tables),
				}}
			},
		},
		{
			weight: r.Drop,
			produce: func(rng *rand.Rand) Property {
				t := randTable(rng, env.Tables)
				sel := core.Query{Select: &core.Select{
					Table:         t.Name,
					ResultColumns: []core.ResultColumn{core.StarColumn()},
					Predicate:     core.TruePredicate(),
					Distinct:      core.DistinctnessAll,
				}}
				return Property{DropSelect: &DropSelect{
					Table:   t.Name,
					Queries: fillerQueries(rng, env.Tables),
					Select:  sel,
				}}
			},
		},
		{
			weight: r.Read,
			produce: func(rng *rand.Rand) Property {
				t := randTable(rng, env.Tables)
				return Property{SelectSelectOptimizer: &SelectSelectOptimizer{
					Table:     t.Name,
					Predicate: randPredicate(rng, t),
				}}
			},
		},
	}, rng)
}

// rowAnchorPredicate pins a select to one inserted row by conjoining
// equality over its non-null values.
func rowAnchorPredicate(t *core.Table, row []core.SimValue) core.Predicate {
	if t == nil {
		return core.TruePredicate()
	}
	var parts []core.Predicate
	for i, col := range t.Columns {
		if i >= len(row) || row[i].IsNull() {
			continue
		}
		parts = append(parts, core.ComparePredicate(col.Name, core.OpEq, row[i]))
	}
	if len(parts) == 0 {
		return core.TruePredicate()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return core.AndPredicate(parts...)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
