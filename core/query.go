package core

import (
	"fmt"
	"sort"
	"strings"
)

// QueryKind classifies queries for generator bookkeeping.
type QueryKind int

const (
	QueryCreate QueryKind = iota
	QueryCreateIndex
	QueryInsert
	QueryDelete
	QueryUpdate
	QueryDrop
	QuerySelect
)

// Distinctness mirrors the DISTINCT/ALL choice of a SELECT.
type Distinctness string

const (
	DistinctnessAll      Distinctness = "All"
	DistinctnessDistinct Distinctness = "Distinct"
)

// ResultColumn is either the star projection or an evaluated predicate
// expression.
type ResultColumn struct {
	Star bool       `json:"Star,omitempty"`
	Expr *Predicate `json:"Expr,omitempty"`
}

func StarColumn() ResultColumn            { return ResultColumn{Star: true} }
func ExprColumn(p Predicate) ResultColumn { return ResultColumn{Expr: &p} }

// Create creates a table. The carried table has an empty row list.
type Create struct {
	Table Table `json:"table"`
}

// CreateIndex creates an index over existing columns; it has no row-level
// shadow effect.
type CreateIndex struct {
	IndexName string   `json:"index_name"`
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
}

// Insert appends literal rows to a table.
type Insert struct {
	Table  string       `json:"table"`
	Values [][]SimValue `json:"values"`
}

// Delete removes the rows matching the predicate.
type Delete struct {
	Table     string    `json:"table"`
	Predicate Predicate `json:"predicate"`
}

// Assignment sets one column to a literal value.
type Assignment struct {
	Column string   `json:"column"`
	Value  SimValue `json:"value"`
}

// Update assigns literals to the rows matching the predicate.
type Update struct {
	Table     string       `json:"table"`
	Set       []Assignment `json:"set"`
	Predicate Predicate    `json:"predicate"`
}

// Drop removes a table.
type Drop struct {
	Table string `json:"table"`
}

// Select filters, projects, deduplicates, and truncates.
type Select struct {
	Table         string         `json:"table"`
	ResultColumns []ResultColumn `json:"result_columns"`
	Predicate     Predicate      `json:"predicate"`
	Distinct      Distinctness   `json:"distinct"`
	Limit         *int           `json:"limit,omitempty"`
}

// Query is the tagged union over all query variants; exactly one field is
// non-nil. The externally tagged JSON layout is the canonical plan format.
type Query struct {
	Create      *Create      `json:"Create,omitempty"`
	CreateIndex *CreateIndex `json:"CreateIndex,omitempty"`
	Insert      *Insert      `json:"Insert,omitempty"`
	Delete      *Delete      `json:"Delete,omitempty"`
	Update      *Update      `json:"Update,omitempty"`
	Drop        *Drop        `json:"Drop,omitempty"`
	Select      *Select      `json:"Select,omitempty"`
}

// Kind returns the variant discriminant.
func (q *Query) Kind() QueryKind {
	switch {
	case q.Create != nil:
		return QueryCreate
	case q.CreateIndex != nil:
		return QueryCreateIndex
	case q.Insert != nil:
		return QueryInsert
	case q.Delete != nil:
		return QueryDelete
	case q.Update != nil:
		return QueryUpdate
	case q.Drop != nil:
		return QueryDrop
	default:
		return QuerySelect
	}
}

// Dependencies returns the table names the query needs to exist.
func (q *Query) Dependencies() []string {
	switch {
	case q.Create != nil, q.Drop != nil:
		return nil
	case q.CreateIndex != nil:
		return []string{q.CreateIndex.Table}
	case q.Insert != nil:
		return []string{q.Insert.Table}
	case q.Delete != nil:
		return []string{q.Delete.Table}
	case q.Update != nil:
		return []string{q.Update.Table}
	case q.Select != nil:
		return []string{q.Select.Table}
	}
	return nil
}

// Uses returns every table name the query touches.
func (q *Query) Uses() []string {
	if q.Create != nil {
		return []string{q.Create.Table.Name}
	}
	if q.Drop != nil {
		return []string{q.Drop.Table}
	}
	return q.Dependencies()
}

// String renders the query as SQL without a trailing semicolon.
func (q *Query) String() string {
	switch {
	case q.Create != nil:
		return q.Create.String()
	case q.CreateIndex != nil:
		return q.CreateIndex.String()
	case q.Insert != nil:
		return q.Insert.String()
	case q.Delete != nil:
		return q.Delete.String()
	case q.Update != nil:
		return q.Update.String()
	case q.Drop != nil:
		return q.Drop.String()
	default:
		return q.Select.String()
	}
}

// Shadow applies the query to the shadow catalog and returns the rows the
// engine is predicted to return. Mutating variants return nil rows.
func (q *Query) Shadow(tables *Catalog) [][]SimValue {
	switch {
	case q.Create != nil:
		return q.Create.Shadow(tables)
	case q.CreateIndex != nil:
		return q.CreateIndex.Shadow(tables)
	case q.Insert != nil:
		return q.Insert.Shadow(tables)
	case q.Delete != nil:
		return q.Delete.Shadow(tables)
	case q.Update != nil:
		return q.Update.Shadow(tables)
	case q.Drop != nil:
		return q.Drop.Shadow(tables)
	default:
		return q.Select.Shadow(tables)
	}
}

func (c *Create) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", c.Table.Name)
	for i, col := range c.Table.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteString(" ")
		b.WriteString(string(col.Type))
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")
	return b.String()
}

// Shadow adds the table unless one with the same name already exists.
func (c *Create) Shadow(tables *Catalog) [][]SimValue {
	if tables.Has(c.Table.Name) {
		return nil
	}
	tables.Add(c.Table.CloneSchema())
	return nil
}

func (c *CreateIndex) String() string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", c.IndexName, c.Table, strings.Join(c.Columns, ", "))
}

// Shadow is a no-op: indexes never change predicted rows.
func (c *CreateIndex) Shadow(_ *Catalog) [][]SimValue { return nil }

func (ins *Insert) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s VALUES ", ins.Table)
	for i, row := range ins.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.String())
		}
		b.WriteString(")")
	}
	return b.String()
}

// Shadow appends rows after arity normalization: short rows are padded with
// NULL, long rows truncated to the table's column count.
func (ins *Insert) Shadow(tables *Catalog) [][]SimValue {
	t := tables.Table(ins.Table)
	if t == nil {
		return nil
	}
	for _, row := range ins.Values {
		normalized := make([]SimValue, len(t.Columns))
		for i := range normalized {
			if i < len(row) {
				normalized[i] = row[i]
			} else {
				normalized[i] = NullValue()
			}
		}
		t.Rows = append(t.Rows, normalized)
	}
	return nil
}

func (d *Delete) String() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", d.Table, d.Predicate)
}

// Shadow retains the rows where the predicate does not evaluate true.
func (d *Delete) Shadow(tables *Catalog) [][]SimValue {
	t := tables.Table(d.Table)
	if t == nil {
		return nil
	}
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if !d.Predicate.Eval(t, row).AsBool() {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	return nil
}

func (u *Update) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET ", u.Table)
	for i, a := range u.Set {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = %s", a.Column, a.Value)
	}
	fmt.Fprintf(&b, " WHERE %s", u.Predicate)
	return b.String()
}

// Shadow assigns literals to every matching row.
func (u *Update) Shadow(tables *Catalog) [][]SimValue {
	t := tables.Table(u.Table)
	if t == nil {
		return nil
	}
	for _, row := range t.Rows {
		if !u.Predicate.Eval(t, row).AsBool() {
			continue
		}
		for _, a := range u.Set {
			if idx := t.ColumnIndex(a.Column); idx >= 0 {
				row[idx] = a.Value
			}
		}
	}
	return nil
}

func (d *Drop) String() string { return fmt.Sprintf("DROP TABLE %s", d.Table) }

// Shadow removes the table; absence is tolerated to match the generator.
func (d *Drop) Shadow(tables *Catalog) [][]SimValue {
	tables.Remove(d.Table)
	return nil
}

func (s *Select) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct == DistinctnessDistinct {
		b.WriteString("DISTINCT ")
	}
	for i, rc := range s.ResultColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		if rc.Star {
			b.WriteString("*")
		} else {
			b.WriteString(rc.Expr.String())
		}
	}
	fmt.Fprintf(&b, " FROM %s WHERE %s", s.Table, s.Predicate)
	if s.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *s.Limit)
	}
	return b.String()
}

// Shadow filters by the predicate, projects the result columns, applies
// DISTINCT by value-tuple equality, and truncates to the limit.
func (s *Select) Shadow(tables *Catalog) [][]SimValue {
	t := tables.Table(s.Table)
	if t == nil {
		return nil
	}
	var out [][]SimValue
	for _, row := range t.Rows {
		if !s.Predicate.Eval(t, row).AsBool() {
			continue
		}
		var projected []SimValue
		for _, rc := range s.ResultColumns {
			if rc.Star {
				projected = append(projected, row...)
			} else {
				projected = append(projected, rc.Expr.Eval(t, row).AsValue())
			}
		}
		out = append(out, projected)
	}
	if s.Distinct == DistinctnessDistinct {
		out = dedupeRows(out)
	}
	if s.Limit != nil && len(out) > *s.Limit {
		out = out[:*s.Limit]
	}
	return out
}

func dedupeRows(rows [][]SimValue) [][]SimValue {
	var out [][]SimValue
	for _, row := range rows {
		dup := false
		for _, seen := range out {
			if RowsEqual(seen, row) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, row)
		}
	}
	return out
}

// SortRows orders rows by lexicographic value comparison; callers use it to
// compare unordered result sets.
func SortRows(rows [][]SimValue) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for k := 0; k < n; k++ {
			if cmp := a[k].Compare(b[k]); cmp != 0 {
				return cmp < 0
			}
		}
		return len(a) < len(b)
	})
}
