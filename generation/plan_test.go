package generation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlsim/core"
	"sqlsim/sim"
)

func genOptions(seed int64, interactions int) sim.Options {
	opts := sim.DefaultOptions()
	opts.Seed = seed
	opts.MaxInteractions = interactions
	return opts
}

func generate(t *testing.T, opts sim.Options) *InteractionPlan {
	t.Helper()
	env := sim.NewGenerationEnv(opts, nil)
	return ArbitraryPlan(env)
}

func TestPlanFirstItemIsCreate(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		env := sim.NewGenerationEnv(genOptions(seed, 10), nil)
		plan := ArbitraryPlan(env)

		require.NotEmpty(t, plan.Plan)
		first := plan.Plan[0]
		require.NotNil(t, first.Query, "seed %d: first item must be a plain query", seed)
		assert.Equal(t, core.QueryCreate, first.Query.Kind(), "seed %d", seed)
		assert.NotEmpty(t, env.Tables.Tables, "seed %d: catalog must hold the created table", seed)
	}
}

func TestPlanLengthIsBounded(t *testing.T) {
	plan := generate(t, genOptions(3, 42))
	assert.Len(t, plan.Plan, 42)
}

func TestPlanStatsCountNestedQueries(t *testing.T) {
	plan := generate(t, genOptions(5, 60))

	var want InteractionStats
	for idx := range plan.Plan {
		for _, interaction := range plan.Plan[idx].Interactions() {
			if interaction.Query == nil {
				continue
			}
			switch interaction.Query.Kind() {
			case core.QuerySelect:
				want.ReadCount++
			case core.QueryInsert:
				want.WriteCount++
			case core.QueryDelete:
				want.DeleteCount++
			case core.QueryUpdate:
				want.UpdateCount++
			case core.QueryCreate:
				want.CreateCount++
			case core.QueryCreateIndex:
				want.CreateIndexCount++
			case core.QueryDrop:
				want.DropCount++
			}
		}
	}
	assert.Equal(t, want, plan.Stats())
}

func TestGeneratorDeterminism(t *testing.T) {
	opts := genOptions(1234, 80)

	first := generate(t, opts)
	second := generate(t, opts)

	assert.Equal(t, first.String(), second.String())

	a, err := first.Serialize()
	require.NoError(t, err)
	b, err := second.Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestGeneratorSeedsDiffer(t *testing.T) {
	a := generate(t, genOptions(1, 50))
	b := generate(t, genOptions(2, 50))
	assert.NotEqual(t, a.String(), b.String())
}

func TestPlanRendering(t *testing.T) {
	limit := 5
	fault := FaultDisconnect
	plan := &InteractionPlan{Plan: []Interactions{
		{Query: &core.Query{Create: &core.Create{Table: core.Table{
			Name:    "t",
			Columns: []core.Column{{Name: "a", Type: core.TypeInteger}},
		}}}},
		{Property: &Property{SelectLimit: &SelectLimit{Select: core.Query{Select: &core.Select{
			Table:         "t",
			ResultColumns: []core.ResultColumn{core.StarColumn()},
			Predicate:     core.TruePredicate(),
			Distinct:      core.DistinctnessAll,
			Limit:         &limit,
		}}}}},
		{Fault: &fault},
	}}

	text := plan.String()
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	assert.Equal(t, "CREATE TABLE t (a INTEGER);", lines[0])
	assert.Equal(t, "-- begin testing 'SelectLimit'", lines[1])
	assert.Equal(t, "\t-- ASSUME table t exists;", lines[2])
	assert.Equal(t, "\tSELECT * FROM t WHERE TRUE LIMIT 5;", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "\t-- ASSERT "))
	assert.Equal(t, "-- end testing 'SelectLimit'", lines[5])
	assert.Equal(t, "-- FAULT 'DISCONNECT'", lines[6])
}

func TestPlanJSONShape(t *testing.T) {
	fault := FaultReopenDatabase
	plan := &InteractionPlan{Plan: []Interactions{
		{Query: &core.Query{Drop: &core.Drop{Table: "t"}}},
		{Fault: &fault},
	}}
	data, err := plan.Serialize()
	require.NoError(t, err)

	var raw struct {
		Plan []map[string]json.RawMessage `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Plan, 2)
	assert.Contains(t, raw.Plan[0], "Query")
	assert.Equal(t, `"ReopenDatabase"`, string(raw.Plan[1]["Fault"]))
}

func writePlanPair(t *testing.T, plan *InteractionPlan) string {
	t.Helper()
	base := filepath.Join(t.TempDir(), "case")
	require.NoError(t, plan.WriteFiles(base))
	return base
}

func TestPlanDiffUnmodifiedRoundTrip(t *testing.T) {
	plan := generate(t, genOptions(99, 30))
	base := writePlanPair(t, plan)

	pruned, err := ComputeViaDiff(base + ".plan")
	require.NoError(t, err)

	require.Len(t, pruned, len(plan.Plan))
	for idx := range plan.Plan {
		expanded := plan.Plan[idx].Interactions()
		require.Len(t, pruned[idx], len(expanded), "item %d", idx)
		for k := range expanded {
			assert.Equal(t, expanded[k].String(), pruned[idx][k].String())
		}
	}
}

func TestPlanDiffDeletedLinesPrunePlan(t *testing.T) {
	// Ten single-query items; deleting lines 4-5 must leave eight
	// interactions in the original order.
	plan := &InteractionPlan{}
	for i := 0; i < 10; i++ {
		plan.Plan = append(plan.Plan, Interactions{Query: &core.Query{Insert: &core.Insert{
			Table:  "t",
			Values: [][]core.SimValue{{core.IntegerValue(int64(i))}},
		}}})
	}
	base := writePlanPair(t, plan)

	text, err := os.ReadFile(base + ".plan")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	require.Len(t, lines, 10)
	edited := append([]string{}, lines[:3]...)
	edited = append(edited, lines[5:]...)
	require.NoError(t, os.WriteFile(base+".plan", []byte(strings.Join(edited, "\n")+"\n"), 0o644))

	pruned, err := ComputeViaDiff(base + ".plan")
	require.NoError(t, err)

	require.Len(t, pruned, 8)
	wantValues := []int64{0, 1, 2, 5, 6, 7, 8, 9}
	for idx, interactions := range pruned {
		require.Len(t, interactions, 1)
		q := interactions[0].Query
		require.NotNil(t, q)
		assert.True(t, q.Insert.Values[0][0].Equal(core.IntegerValue(wantValues[idx])))
	}
}

func TestPlanDiffDeletingInsideProperty(t *testing.T) {
	plan := generate(t, genOptions(41, 25))

	// Find a property item and delete one of its query lines.
	propIdx := -1
	for idx := range plan.Plan {
		if plan.Plan[idx].Property != nil {
			propIdx = idx
			break
		}
	}
	require.GreaterOrEqual(t, propIdx, 0, "expected at least one property in the plan")

	base := writePlanPair(t, plan)
	text, err := os.ReadFile(base + ".plan")
	require.NoError(t, err)

	target := plan.Plan[propIdx].Interactions()
	queryAt := -1
	for k, interaction := range target {
		if interaction.Query != nil {
			queryAt = k
			break
		}
	}
	require.GreaterOrEqual(t, queryAt, 0)
	needle := "\t" + target[queryAt].String() + ";\n"
	edited := strings.Replace(string(text), needle, "", 1)
	require.NotEqual(t, string(text), edited, "expected to delete one line")
	require.NoError(t, os.WriteFile(base+".plan", []byte(edited), 0o644))

	pruned, err := ComputeViaDiff(base + ".plan")
	require.NoError(t, err)

	// Every surviving item must be a subsequence of the original expansion.
	total := 0
	for _, interactions := range pruned {
		total += len(interactions)
	}
	origTotal := 0
	for idx := range plan.Plan {
		origTotal += len(plan.Plan[idx].Interactions())
	}
	assert.Equal(t, origTotal-1, total)
}

func TestPlanDiffTruncatesOnExhaustedText(t *testing.T) {
	plan := &InteractionPlan{}
	for i := 0; i < 6; i++ {
		plan.Plan = append(plan.Plan, Interactions{Query: &core.Query{Insert: &core.Insert{
			Table:  "t",
			Values: [][]core.SimValue{{core.IntegerValue(int64(i))}},
		}}})
	}
	base := writePlanPair(t, plan)

	text, err := os.ReadFile(base + ".plan")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	require.NoError(t, os.WriteFile(base+".plan", []byte(strings.Join(lines[:2], "\n")+"\n"), 0o644))

	pruned, err := ComputeViaDiff(base + ".plan")
	require.NoError(t, err)
	assert.Len(t, pruned, 2)
}

func TestPlanJSONRoundTripPreservesInteractions(t *testing.T) {
	plan := generate(t, genOptions(77, 40))
	base := writePlanPair(t, plan)

	loaded, err := LoadPlan(base + ".json")
	require.NoError(t, err)
	require.Len(t, loaded.Plan, len(plan.Plan))

	for idx := range plan.Plan {
		want := plan.Plan[idx].Interactions()
		got := loaded.Plan[idx].Interactions()
		require.Len(t, got, len(want), "item %d", idx)
		for k := range want {
			assert.Equal(t, want[k].String(), got[k].String(), "item %d interaction %d", idx, k)
		}
	}
	assert.Equal(t, plan.Stats(), loaded.Stats())
}

func TestInteractionsDependenciesAndUses(t *testing.T) {
	item := Interactions{Property: insertValuesSelectFixture()}
	deps := item.Dependencies()
	assert.Contains(t, deps, "pairs")
	assert.Contains(t, item.Uses(), "pairs")

	fault := FaultDisconnect
	faultItem := Interactions{Fault: &fault}
	assert.Empty(t, faultItem.Dependencies())
	assert.Empty(t, faultItem.Uses())
}

func TestInteractionStatsString(t *testing.T) {
	s := InteractionStats{ReadCount: 1, WriteCount: 2, DropCount: 3}
	assert.Equal(t, "Read: 1, Write: 2, Delete: 0, Update: 0, Create: 0, CreateIndex: 0, Drop: 3", s.String())
}

func TestRandomInteractionsRespectsDisabledReopen(t *testing.T) {
	opts := genOptions(8, 100)
	opts.DisableReopenDatabase = true
	env := sim.NewGenerationEnv(opts, nil)
	plan := ArbitraryPlan(env)

	for idx := range plan.Plan {
		if plan.Plan[idx].Fault != nil {
			assert.Equal(t, FaultDisconnect, *plan.Plan[idx].Fault)
		}
	}
}

func TestGeneratedPlansContainNoDrops(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		plan := generate(t, genOptions(seed, 100))
		assert.Equal(t, 0, plan.Stats().DropCount, "seed %d", seed)
	}
}
