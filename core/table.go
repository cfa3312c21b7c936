package core

import "strings"

// ColumnType is the declared type of a column; the four names double as the
// rendered SQL type and the value affinity.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
	TypeBlob    ColumnType = "BLOB"
)

// Column describes one column of a simulated table.
type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	NotNull    bool       `json:"not_null,omitempty"`
	PrimaryKey bool       `json:"primary_key,omitempty"`
}

// Table is the shadow representation of one table: its schema plus the rows
// the shadow model predicts it holds. Rows are not serialized; the catalog is
// rebuilt by replaying the plan.
type Table struct {
	Name    string     `json:"name"`
	Columns []Column   `json:"columns"`
	Rows    [][]SimValue `json:"-"`
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// CloneSchema copies the table without rows.
func (t *Table) CloneSchema() *Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	return &Table{Name: t.Name, Columns: cols}
}

// Catalog is the shadow table catalog of a simulation.
type Catalog struct {
	Tables []*Table
}

// Table returns the named table, or nil.
func (c *Catalog) Table(name string) *Table {
	for _, t := range c.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// Has reports whether a table with the given name exists.
func (c *Catalog) Has(name string) bool { return c.Table(name) != nil }

// Add appends the table to the catalog.
func (c *Catalog) Add(t *Table) { c.Tables = append(c.Tables, t) }

// Remove deletes the named table and reports whether it was present.
func (c *Catalog) Remove(name string) bool {
	for i, t := range c.Tables {
		if strings.EqualFold(t.Name, name) {
			c.Tables = append(c.Tables[:i], c.Tables[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every table; the interpreter uses it to replay the shadow from
// an empty catalog.
func (c *Catalog) Clear() { c.Tables = nil }

// Count returns how many tables carry the given name. Anything other than
// zero or one indicates a shadow bug.
func (c *Catalog) Count(name string) int {
	n := 0
	for _, t := range c.Tables {
		if strings.EqualFold(t.Name, name) {
			n++
		}
	}
	return n
}
