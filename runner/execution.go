// Package runner drives a generated interaction plan against live database
// connections: it steps the two-pointer cursor, maintains the results stack,
// evaluates assumptions and assertions, and executes faults.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"sqlsim/core"
	"sqlsim/generation"
	"sqlsim/sim"
)

// maxBusyRetries bounds how often one query is retried on a busy engine
// before the busy condition is surfaced as the query's error.
const maxBusyRetries = 1000

// InteractionPlanState is the interpreter's cursor: the per-item results
// stack, the index of the current top-level item, and the index into its
// expanded interactions.
type InteractionPlanState struct {
	Stack              []sim.ResultSet
	InteractionPointer int
	SecondaryPointer   int
}

// Runner interprets one plan against one environment.
type Runner struct {
	Env   *sim.SimulatorEnv
	Plan  *generation.InteractionPlan
	State InteractionPlanState

	steps int
}

// New builds a runner positioned at the start of the plan.
func New(env *sim.SimulatorEnv, plan *generation.InteractionPlan) *Runner {
	return &Runner{Env: env, Plan: plan}
}

// Run replays the shadow from an empty catalog while stepping the whole
// plan. It stops at the first failed assertion. The caller may cancel
// between steps; no step is torn down halfway.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	r.Env.Tables.Clear()

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		done, err := r.Step()
		if err != nil {
			runErr = err
			break
		}
		if done {
			break
		}
	}

	report := &Report{
		Seed:         r.Env.Opts.Seed,
		Interactions: len(r.Plan.Plan),
		Steps:        r.steps,
		Stats:        r.Plan.Stats(),
		Elapsed:      time.Since(started),
	}
	if runErr != nil {
		report.Failure = runErr.Error()
	}
	return report, runErr
}

// Step advances the interpreter by one interaction. It returns true when
// the plan is exhausted.
func (r *Runner) Step() (bool, error) {
	st := &r.State
	if st.InteractionPointer >= len(r.Plan.Plan) {
		return true, nil
	}
	item := &r.Plan.Plan[st.InteractionPointer]
	interactions := item.Interactions()

	if st.SecondaryPointer >= len(interactions) {
		r.advanceItem()
		return st.InteractionPointer >= len(r.Plan.Plan), nil
	}

	interaction := interactions[st.SecondaryPointer]
	connIndex := r.Env.Rng.Intn(len(r.Env.Connections))
	r.steps++

	switch {
	case interaction.Query != nil:
		conn, err := r.connection(connIndex)
		if err != nil {
			return false, fmt.Errorf("failed to obtain connection %d: %w", connIndex, err)
		}
		result := ExecuteQuery(interaction.Query, conn, r.Env.IO, r.Env.Log)
		interaction.Query.Shadow(r.Env.Tables)
		st.Stack = append(st.Stack, result)

	case interaction.Assumption != nil:
		ok, err := interaction.Assumption.Check(st.Stack, r.Env)
		if err != nil || !ok {
			r.Env.Log.Debug("assumption not met, skipping item",
				zap.String("assumption", interaction.Assumption.Message),
				zap.String("item", item.Name()),
				zap.Error(err))
			r.advanceItem()
			return st.InteractionPointer >= len(r.Plan.Plan), nil
		}

	case interaction.Assertion != nil:
		ok, err := interaction.Assertion.Check(st.Stack, r.Env)
		if err != nil {
			return false, fmt.Errorf("assertion %q: %w", interaction.Assertion.Message, err)
		}
		if !ok {
			return false, fmt.Errorf("assertion failed: %s", interaction.Assertion.Message)
		}

	case interaction.Fault != nil:
		if err := r.ExecuteFault(*interaction.Fault, connIndex); err != nil {
			// Fault preconditions (e.g. disconnecting a dead connection)
			// are engine-style outcomes, not run failures.
			r.Env.Log.Debug("fault precondition not met",
				zap.Stringer("fault", interaction.Fault),
				zap.Int("connection", connIndex),
				zap.Error(err))
		}
	}

	st.SecondaryPointer++
	return false, nil
}

// advanceItem moves to the next top-level item; the per-property results
// stack is cleared at the item boundary, including on assumption failure.
func (r *Runner) advanceItem() {
	r.State.Stack = r.State.Stack[:0]
	r.State.InteractionPointer++
	r.State.SecondaryPointer = 0
}

// connection returns the slot's live connection, redialing a disconnected
// slot first.
func (r *Runner) connection(connIndex int) (sim.Connection, error) {
	slot := &r.Env.Connections[connIndex]
	if !slot.IsConnected() {
		conn, err := r.Env.DB.Connect()
		if err != nil {
			return nil, err
		}
		slot.Attach(conn)
	}
	return slot.Conn(), nil
}

// ExecuteQuery submits the stringified query on the connection, pumping the
// IO runner whenever the stream yields, retrying busy reports, and
// collecting rows. Engine errors come back inside the ResultSet.
func ExecuteQuery(q *core.Query, conn sim.Connection, io sim.IO, log *zap.Logger) sim.ResultSet {
	queryStr := q.String()
	busy := 0

	var stream sim.RowStream
	for {
		var err error
		stream, err = conn.Query(queryStr)
		if err == nil {
			break
		}
		if sim.IsBusy(err) && busy < maxBusyRetries {
			busy++
			continue
		}
		log.Debug("query failed", zap.String("sql", truncateSQL(queryStr)), zap.Error(err))
		return sim.ResultSet{Err: err}
	}
	defer func() { _ = stream.Close() }()

	var rows [][]core.SimValue
	for {
		step, err := stream.Step()
		if err != nil {
			log.Debug("row stream failed", zap.String("sql", truncateSQL(queryStr)), zap.Error(err))
			return sim.ResultSet{Err: err}
		}
		switch step {
		case sim.StepRow:
			row := stream.Row()
			copied := make([]core.SimValue, len(row))
			copy(copied, row)
			rows = append(rows, copied)
		case sim.StepIO:
			if err := io.RunOnce(); err != nil {
				return sim.ResultSet{Err: err}
			}
		case sim.StepBusy:
			busy++
			if busy > maxBusyRetries {
				return sim.ResultSet{Err: fmt.Errorf("engine stayed busy after %d retries", maxBusyRetries)}
			}
		case sim.StepInterrupt:
			// Interrupts are transient; keep stepping.
		case sim.StepDone:
			return sim.ResultSet{Rows: rows}
		}
	}
}

// ExecuteFault applies the fault to the environment. Disconnect targets one
// slot; ReopenDatabase tears down every connection, reopens the database
// from its path, and reconnects. A reopen failure is a bug in the engine
// under test and panics.
func (r *Runner) ExecuteFault(fault generation.Fault, connIndex int) error {
	switch fault {
	case generation.FaultDisconnect:
		slot := &r.Env.Connections[connIndex]
		if !slot.IsConnected() {
			return fmt.Errorf("connection %d already disconnected", connIndex)
		}
		r.Env.Log.Debug("disconnecting", zap.Int("connection", connIndex))
		return slot.Disconnect()

	case generation.FaultReopenDatabase:
		r.Env.Log.Debug("reopening database", zap.String("db_path", r.Env.DBPath))
		if err := r.Env.Reopen(); err != nil {
			panic(fmt.Sprintf("error reopening simulator database %q: %v", r.Env.DBPath, err))
		}
		return nil
	}
	return fmt.Errorf("unknown fault %q", fault)
}

func truncateSQL(s string) string {
	const limit = 4096
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
