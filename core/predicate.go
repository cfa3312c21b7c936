package core

import (
	"fmt"
	"strings"
)

// Ternary is the three-valued logic domain of SQL predicates.
type Ternary int

const (
	TernFalse Ternary = iota
	TernTrue
	TernNull
)

// AsBool collapses the ternary for filtering: NULL filters like false.
func (t Ternary) AsBool() bool { return t == TernTrue }

// AsValue converts a ternary to the value a projected boolean expression
// yields: 1, 0, or NULL.
func (t Ternary) AsValue() SimValue {
	switch t {
	case TernTrue:
		return IntegerValue(1)
	case TernFalse:
		return IntegerValue(0)
	default:
		return NullValue()
	}
}

// CompareOp is a binary comparison between a column and a literal.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
)

// Comparison is the column-versus-literal leaf of the predicate AST.
type Comparison struct {
	Column string    `json:"column"`
	Op     CompareOp `json:"op"`
	Value  SimValue  `json:"value"`
}

// Predicate is a small expression AST over one table's columns. Exactly one
// field is set; the externally tagged JSON layout matches the canonical plan
// format.
type Predicate struct {
	True    bool         `json:"True,omitempty"`
	Compare *Comparison  `json:"Compare,omitempty"`
	And     []Predicate  `json:"And,omitempty"`
	Or      []Predicate  `json:"Or,omitempty"`
	Not     *Predicate   `json:"Not,omitempty"`
}

// TruePredicate is the literal TRUE.
func TruePredicate() Predicate { return Predicate{True: true} }

// ComparePredicate builds a comparison leaf.
func ComparePredicate(column string, op CompareOp, value SimValue) Predicate {
	return Predicate{Compare: &Comparison{Column: column, Op: op, Value: value}}
}

// AndPredicate conjoins sub-predicates.
func AndPredicate(ps ...Predicate) Predicate { return Predicate{And: ps} }

// OrPredicate disjoins sub-predicates.
func OrPredicate(ps ...Predicate) Predicate { return Predicate{Or: ps} }

// NotPredicate negates a predicate.
func NotPredicate(p Predicate) Predicate { return Predicate{Not: &p} }

// Eval evaluates the predicate against one row of the given table using
// three-valued logic. Comparing anything with NULL yields NULL; mismatched
// non-numeric kinds compare by the storage-class order.
func (p Predicate) Eval(t *Table, row []SimValue) Ternary {
	switch {
	case p.True:
		return TernTrue
	case p.Compare != nil:
		idx := t.ColumnIndex(p.Compare.Column)
		if idx < 0 || idx >= len(row) {
			return TernNull
		}
		lhs := row[idx]
		rhs := p.Compare.Value
		if lhs.IsNull() || rhs.IsNull() {
			return TernNull
		}
		cmp := lhs.Compare(rhs)
		var ok bool
		switch p.Compare.Op {
		case OpEq:
			ok = cmp == 0
		case OpNe:
			ok = cmp != 0
		case OpGt:
			ok = cmp > 0
		case OpGe:
			ok = cmp >= 0
		case OpLt:
			ok = cmp < 0
		case OpLe:
			ok = cmp <= 0
		}
		if ok {
			return TernTrue
		}
		return TernFalse
	case len(p.And) > 0:
		out := TernTrue
		for _, sub := range p.And {
			switch sub.Eval(t, row) {
			case TernFalse:
				return TernFalse
			case TernNull:
				out = TernNull
			}
		}
		return out
	case len(p.Or) > 0:
		out := TernFalse
		for _, sub := range p.Or {
			switch sub.Eval(t, row) {
			case TernTrue:
				return TernTrue
			case TernNull:
				out = TernNull
			}
		}
		return out
	case p.Not != nil:
		switch p.Not.Eval(t, row) {
		case TernTrue:
			return TernFalse
		case TernFalse:
			return TernTrue
		default:
			return TernNull
		}
	}
	return TernNull
}

// String renders the predicate as SQL.
func (p Predicate) String() string {
	switch {
	case p.True:
		return "TRUE"
	case p.Compare != nil:
		return fmt.Sprintf("%s %s %s", p.Compare.Column, p.Compare.Op, p.Compare.Value)
	case len(p.And) > 0:
		return "(" + joinPredicates(p.And, " AND ") + ")"
	case len(p.Or) > 0:
		return "(" + joinPredicates(p.Or, " OR ") + ")"
	case p.Not != nil:
		return "NOT (" + p.Not.String() + ")"
	}
	return "NULL"
}

func joinPredicates(ps []Predicate, sep string) string {
	parts := make([]string, len(ps))
	for i, sub := range ps {
		parts[i] = sub.String()
	}
	return strings.Join(parts, sep)
}
