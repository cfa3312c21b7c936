package generation

import (
	"fmt"

	"sqlsim/core"
	"sqlsim/sim"
)

// AssertionKind is the typed, reconstructible body of an assertion. Kinds
// are plain structs built from property fields at expansion time, so a
// deserialized plan rehydrates them for free.
type AssertionKind interface {
	Check(stack []sim.ResultSet, env *sim.SimulatorEnv) (bool, error)
}

// Assertion pairs a message with its check. Assumptions reuse the same
// shape; the interpreter decides whether a false outcome skips or fails.
type Assertion struct {
	Message string
	Kind    AssertionKind
}

// Check evaluates the assertion against the results stack and environment.
func (a *Assertion) Check(stack []sim.ResultSet, env *sim.SimulatorEnv) (bool, error) {
	return a.Kind.Check(stack, env)
}

func lastResult(stack []sim.ResultSet) (sim.ResultSet, error) {
	if len(stack) == 0 {
		return sim.ResultSet{}, fmt.Errorf("results stack is empty")
	}
	return stack[len(stack)-1], nil
}

// TableInCatalog gates a property on its target table existing in the
// shadow catalog.
type TableInCatalog struct {
	Table string
}

func (k TableInCatalog) Check(_ []sim.ResultSet, env *sim.SimulatorEnv) (bool, error) {
	return env.Tables.Has(k.Table), nil
}

// TableNotInCatalog gates on the table being absent.
type TableNotInCatalog struct {
	Table string
}

func (k TableNotInCatalog) Check(_ []sim.ResultSet, env *sim.SimulatorEnv) (bool, error) {
	return !env.Tables.Has(k.Table), nil
}

// RowInLastResult holds when the last result succeeded and contains the
// captured row. Result order is unspecified, so membership is what we check.
type RowInLastResult struct {
	Row []core.SimValue
}

func (k RowInLastResult) Check(stack []sim.ResultSet, _ *sim.SimulatorEnv) (bool, error) {
	last, err := lastResult(stack)
	if err != nil {
		return false, err
	}
	if last.IsErr() {
		return false, fmt.Errorf("query failed: %w", last.Err)
	}
	for _, row := range last.Rows {
		if core.RowsEqual(row, k.Row) {
			return true, nil
		}
	}
	return false, nil
}

// CreateFailedOrNoop accepts the engine either rejecting a duplicate CREATE
// TABLE or treating it as a no-op, per the engine contract.
type CreateFailedOrNoop struct {
	Table string
}

func (k CreateFailedOrNoop) Check(stack []sim.ResultSet, env *sim.SimulatorEnv) (bool, error) {
	last, err := lastResult(stack)
	if err != nil {
		return false, err
	}
	if last.IsErr() {
		return true, nil
	}
	return env.Tables.Count(k.Table) == 1, nil
}

// SchemaListsOnce holds when the shadow catalog lists the table exactly once.
type SchemaListsOnce struct {
	Table string
}

func (k SchemaListsOnce) Check(_ []sim.ResultSet, env *sim.SimulatorEnv) (bool, error) {
	return env.Tables.Count(k.Table) == 1, nil
}

// LimitRespected holds when the last result succeeded, its row count obeys
// the captured LIMIT, and matches the shadow's truncation for the same
// select replayed against the current catalog.
type LimitRespected struct {
	Select *core.Select
	Limit  int
}

func (k LimitRespected) Check(stack []sim.ResultSet, env *sim.SimulatorEnv) (bool, error) {
	last, err := lastResult(stack)
	if err != nil {
		return false, err
	}
	if last.IsErr() {
		return false, fmt.Errorf("query failed: %w", last.Err)
	}
	if len(last.Rows) > k.Limit {
		return false, nil
	}
	predicted := k.Select.Shadow(env.Tables)
	return len(last.Rows) == len(predicted), nil
}

// EmptyLastResult holds when the last result succeeded with zero rows.
type EmptyLastResult struct{}

func (k EmptyLastResult) Check(stack []sim.ResultSet, _ *sim.SimulatorEnv) (bool, error) {
	last, err := lastResult(stack)
	if err != nil {
		return false, err
	}
	if last.IsErr() {
		return false, fmt.Errorf("query failed: %w", last.Err)
	}
	return len(last.Rows) == 0, nil
}

// NoSuchTableLastResult holds when the last result is an engine error whose
// message indicates schema absence.
type NoSuchTableLastResult struct{}

func (k NoSuchTableLastResult) Check(stack []sim.ResultSet, _ *sim.SimulatorEnv) (bool, error) {
	last, err := lastResult(stack)
	if err != nil {
		return false, err
	}
	return sim.IsNoSuchTable(last.Err), nil
}

// PredicateCountAgrees compares the two selects of the optimizer property:
// the count of truthy projected predicate values in the next-to-last result
// must equal the row count of the last result.
type PredicateCountAgrees struct{}

func (k PredicateCountAgrees) Check(stack []sim.ResultSet, _ *sim.SimulatorEnv) (bool, error) {
	if len(stack) < 2 {
		return false, fmt.Errorf("results stack holds %d result sets, need 2", len(stack))
	}
	projected := stack[len(stack)-2]
	filtered := stack[len(stack)-1]
	if projected.IsErr() {
		return false, fmt.Errorf("projected select failed: %w", projected.Err)
	}
	if filtered.IsErr() {
		return false, fmt.Errorf("filtered select failed: %w", filtered.Err)
	}
	truthy := 0
	for _, row := range projected.Rows {
		if len(row) == 1 && row[0].Equal(core.IntegerValue(1)) {
			truthy++
		}
	}
	return truthy == len(filtered.Rows), nil
}
