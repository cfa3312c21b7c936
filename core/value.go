// Package core holds the data model shared by the generator, the shadow
// model, and the interpreter: SQL scalar values, tables, predicates, and the
// query representation with its shadow semantics.
package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the SimValue union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

// SimValue is a SQL scalar value. The zero value is NULL.
//
// Ordering between kinds follows SQLite storage-class order:
// NULL < numeric < TEXT < BLOB, with integers and reals compared together.
type SimValue struct {
	Kind ValueKind
	Int  int64
	Real float64
	Text string
	Blob []byte
}

func NullValue() SimValue            { return SimValue{Kind: KindNull} }
func IntegerValue(v int64) SimValue  { return SimValue{Kind: KindInteger, Int: v} }
func RealValue(v float64) SimValue   { return SimValue{Kind: KindReal, Real: v} }
func TextValue(v string) SimValue    { return SimValue{Kind: KindText, Text: v} }
func BlobValue(v []byte) SimValue    { return SimValue{Kind: KindBlob, Blob: v} }

// IsNull reports whether the value is SQL NULL.
func (v SimValue) IsNull() bool { return v.Kind == KindNull }

func (v SimValue) isNumeric() bool { return v.Kind == KindInteger || v.Kind == KindReal }

func (v SimValue) asReal() float64 {
	if v.Kind == KindInteger {
		return float64(v.Int)
	}
	return v.Real
}

// Compare imposes the total order used by DISTINCT and row comparison.
// NULLs compare equal to each other and before everything else.
func (v SimValue) Compare(o SimValue) int {
	if v.Kind == KindNull || o.Kind == KindNull {
		switch {
		case v.Kind == o.Kind:
			return 0
		case v.Kind == KindNull:
			return -1
		default:
			return 1
		}
	}
	if v.isNumeric() && o.isNumeric() {
		if v.Kind == KindInteger && o.Kind == KindInteger {
			switch {
			case v.Int < o.Int:
				return -1
			case v.Int > o.Int:
				return 1
			default:
				return 0
			}
		}
		a, b := v.asReal(), o.asReal()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	if v.rank() != o.rank() {
		if v.rank() < o.rank() {
			return -1
		}
		return 1
	}
	switch v.Kind {
	case KindText:
		return strings.Compare(v.Text, o.Text)
	default:
		return strings.Compare(string(v.Blob), string(o.Blob))
	}
}

func (v SimValue) rank() int {
	switch v.Kind {
	case KindNull:
		return 0
	case KindInteger, KindReal:
		return 1
	case KindText:
		return 2
	default:
		return 3
	}
}

// Equal is value equality under Compare; NULL equals NULL here, which is the
// semantics DISTINCT and shadow row lookup need.
func (v SimValue) Equal(o SimValue) bool { return v.Compare(o) == 0 }

// String renders the value as a SQL literal.
func (v SimValue) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		s := strconv.FormatFloat(v.Real, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case KindText:
		return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
	default:
		return "X'" + strings.ToUpper(hex.EncodeToString(v.Blob)) + "'"
	}
}

// MarshalJSON uses the externally tagged layout of the canonical plan format:
// "Null", {"Integer": 1}, {"Real": 0.5}, {"Text": "x"}, {"Blob": "ff00"}.
func (v SimValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return json.Marshal("Null")
	case KindInteger:
		return json.Marshal(map[string]int64{"Integer": v.Int})
	case KindReal:
		return json.Marshal(map[string]float64{"Real": v.Real})
	case KindText:
		return json.Marshal(map[string]string{"Text": v.Text})
	default:
		return json.Marshal(map[string]string{"Blob": hex.EncodeToString(v.Blob)})
	}
}

func (v *SimValue) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "Null" {
			return fmt.Errorf("unknown value tag %q", tag)
		}
		*v = NullValue()
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("malformed value: %w", err)
	}
	for key, raw := range m {
		switch key {
		case "Integer":
			var n int64
			if err := json.Unmarshal(raw, &n); err != nil {
				return err
			}
			*v = IntegerValue(n)
		case "Real":
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return err
			}
			*v = RealValue(f)
		case "Text":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			*v = TextValue(s)
		case "Blob":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			b, err := hex.DecodeString(s)
			if err != nil {
				return fmt.Errorf("malformed blob literal: %w", err)
			}
			*v = BlobValue(b)
		default:
			return fmt.Errorf("unknown value tag %q", key)
		}
		return nil
	}
	return fmt.Errorf("empty value object")
}

// RowsEqual compares two rows position by position.
func RowsEqual(a, b []SimValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
