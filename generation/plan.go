package generation

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"sqlsim/core"
	"sqlsim/sim"
)

// Fault is an externally induced disturbance. The JSON names are part of
// the plan format.
type Fault string

const (
	FaultDisconnect     Fault = "Disconnect"
	FaultReopenDatabase Fault = "ReopenDatabase"
)

// String renders the fault the way the textual plan shows it.
func (f Fault) String() string {
	switch f {
	case FaultDisconnect:
		return "DISCONNECT"
	case FaultReopenDatabase:
		return "REOPEN_DATABASE"
	}
	return string(f)
}

// Interaction is one atomic step inside a plan item; exactly one field is
// non-nil. The interpreter dispatches on the variant once and calls
// kind-specific code, so mismatched calls cannot happen at runtime.
type Interaction struct {
	Query      *core.Query
	Assumption *Assertion
	Assertion  *Assertion
	Fault      *Fault
}

// String renders the interaction the way it appears inside a plan line,
// without the comment prefix or trailing semicolon.
func (i Interaction) String() string {
	switch {
	case i.Query != nil:
		return i.Query.String()
	case i.Assumption != nil:
		return "ASSUME " + i.Assumption.Message
	case i.Assertion != nil:
		return "ASSERT " + i.Assertion.Message
	case i.Fault != nil:
		return fmt.Sprintf("FAULT '%s'", i.Fault)
	}
	return ""
}

// Interactions is one top-level plan item; exactly one field is non-nil.
type Interactions struct {
	Property *Property   `json:"Property,omitempty"`
	Query    *core.Query `json:"Query,omitempty"`
	Fault    *Fault      `json:"Fault,omitempty"`
}

// Name returns the property name, or "" for plain queries and faults.
func (i *Interactions) Name() string {
	if i.Property != nil {
		return i.Property.Name()
	}
	return ""
}

// Interactions expands the item into its ordered interaction list.
func (i *Interactions) Interactions() []Interaction {
	switch {
	case i.Property != nil:
		return i.Property.Interactions()
	case i.Query != nil:
		return []Interaction{{Query: i.Query}}
	case i.Fault != nil:
		return []Interaction{{Fault: i.Fault}}
	}
	return nil
}

// Shadow applies the item's queries to the shadow catalog, each exactly
// once, in expansion order.
func (i *Interactions) Shadow(env *sim.SimulatorEnv) {
	for _, interaction := range i.Interactions() {
		if interaction.Query != nil {
			interaction.Query.Shadow(env.Tables)
		}
	}
}

// Dependencies returns the set of tables the item needs to exist.
func (i *Interactions) Dependencies() map[string]struct{} {
	deps := make(map[string]struct{})
	for _, interaction := range i.Interactions() {
		if interaction.Query == nil {
			continue
		}
		for _, name := range interaction.Query.Dependencies() {
			deps[name] = struct{}{}
		}
	}
	return deps
}

// Uses returns every table name the item touches, in expansion order.
func (i *Interactions) Uses() []string {
	var uses []string
	for _, interaction := range i.Interactions() {
		if interaction.Query != nil {
			uses = append(uses, interaction.Query.Uses()...)
		}
	}
	return uses
}

// InteractionStats counts per-kind query occurrences across top-level
// queries and the queries nested inside properties.
type InteractionStats struct {
	ReadCount        int
	WriteCount       int
	DeleteCount      int
	UpdateCount      int
	CreateCount      int
	CreateIndexCount int
	DropCount        int
}

func (s InteractionStats) String() string {
	return fmt.Sprintf("Read: %d, Write: %d, Delete: %d, Update: %d, Create: %d, CreateIndex: %d, Drop: %d",
		s.ReadCount, s.WriteCount, s.DeleteCount, s.UpdateCount, s.CreateCount, s.CreateIndexCount, s.DropCount)
}

func (s *InteractionStats) count(q *core.Query) {
	switch q.Kind() {
	case core.QuerySelect:
		s.ReadCount++
	case core.QueryInsert:
		s.WriteCount++
	case core.QueryDelete:
		s.DeleteCount++
	case core.QueryUpdate:
		s.UpdateCount++
	case core.QueryCreate:
		s.CreateCount++
	case core.QueryCreateIndex:
		s.CreateIndexCount++
	case core.QueryDrop:
		s.DropCount++
	}
}

// InteractionPlan is the ordered list of top-level items produced by the
// generator and consumed by the interpreter.
type InteractionPlan struct {
	Plan []Interactions `json:"plan"`
}

// Stats sums the per-kind indicators over every query in the plan.
func (p *InteractionPlan) Stats() InteractionStats {
	var stats InteractionStats
	for idx := range p.Plan {
		for _, interaction := range p.Plan[idx].Interactions() {
			if interaction.Query != nil {
				stats.count(interaction.Query)
			}
		}
	}
	return stats
}

// String is the human-readable plan rendering. Deleting lines from it and
// running the diff prunes the plan.
func (p *InteractionPlan) String() string {
	var b strings.Builder
	for idx := range p.Plan {
		item := &p.Plan[idx]
		switch {
		case item.Property != nil:
			name := item.Property.Name()
			fmt.Fprintf(&b, "-- begin testing '%s'\n", name)
			for _, interaction := range item.Interactions() {
				b.WriteString("\t")
				switch {
				case interaction.Query != nil:
					fmt.Fprintf(&b, "%s;\n", interaction.Query)
				case interaction.Assumption != nil:
					fmt.Fprintf(&b, "-- ASSUME %s;\n", interaction.Assumption.Message)
				case interaction.Assertion != nil:
					fmt.Fprintf(&b, "-- ASSERT %s;\n", interaction.Assertion.Message)
				case interaction.Fault != nil:
					fmt.Fprintf(&b, "-- FAULT '%s';\n", interaction.Fault)
				}
			}
			fmt.Fprintf(&b, "-- end testing '%s'\n", name)
		case item.Fault != nil:
			fmt.Fprintf(&b, "-- FAULT '%s'\n", item.Fault)
		case item.Query != nil:
			fmt.Fprintf(&b, "%s;\n", item.Query)
		}
	}
	return b.String()
}

// Serialize renders the canonical JSON form.
func (p *InteractionPlan) Serialize() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// LoadPlan reads the canonical JSON form back.
func LoadPlan(path string) (*InteractionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan InteractionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &plan, nil
}

// WriteFiles writes the textual and canonical forms side by side:
// <base>.plan and <base>.json.
func (p *InteractionPlan) WriteFiles(base string) error {
	if err := os.WriteFile(base+".plan", []byte(p.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write plan text: %w", err)
	}
	data, err := p.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan json: %w", err)
	}
	return nil
}

// ArbitraryPlan generates a bounded-length plan. The first item is always a
// Create so at least one table exists; every generated item is shadowed so
// later generation sees the predicted schema.
func ArbitraryPlan(env *sim.SimulatorEnv) *InteractionPlan {
	plan := &InteractionPlan{}

	create := RandomCreate(env.Rng, env.Tables)
	env.Tables.Add(create.Table.CloneSchema())
	plan.Plan = append(plan.Plan, Interactions{Query: &core.Query{Create: create}})

	for len(plan.Plan) < env.Opts.MaxInteractions {
		env.Log.Debug("generating interaction",
			zap.Int("have", len(plan.Plan)),
			zap.Int("want", env.Opts.MaxInteractions))
		item := RandomInteractions(env.Rng, env, plan.Stats())
		item.Shadow(env)
		plan.Plan = append(plan.Plan, item)
	}

	env.Log.Info("generated plan",
		zap.Int("interactions", len(plan.Plan)),
		zap.String("stats", plan.Stats().String()))
	return plan
}

// RandomInteractions draws the next top-level item, biased by the remaining
// per-kind budgets.
func RandomInteractions(rng *rand.Rand, env *sim.SimulatorEnv, stats InteractionStats) Interactions {
	r := RemainingOf(env.Opts, stats)

	randomCreate := func(rng *rand.Rand) Interactions {
		return Interactions{Query: &core.Query{Create: RandomCreate(rng, env.Tables)}}
	}
	// Producers that need a table fall back to creating one.
	withTable := func(produce func(rng *rand.Rand) *core.Query) func(rng *rand.Rand) Interactions {
		return func(rng *rand.Rand) Interactions {
			if q := produce(rng); q != nil {
				return Interactions{Query: q}
			}
			return randomCreate(rng)
		}
	}

	return frequency([]producer[Interactions]{
		{
			weight: minFloat(r.Read, r.Write) + r.Create,
			produce: func(rng *rand.Rand) Interactions {
				prop := RandomProperty(rng, env, stats)
				return Interactions{Property: &prop}
			},
		},
		{weight: r.Read, produce: withTable(func(rng *rand.Rand) *core.Query {
			if sel := RandomSelect(rng, env.Tables); sel != nil {
				return &core.Query{Select: sel}
			}
			return nil
		})},
		{weight: r.Write, produce: withTable(func(rng *rand.Rand) *core.Query {
			if ins := RandomInsert(rng, env.Tables, env.Opts.MinRowsPerInsert, env.Opts.MaxRowsPerInsert); ins != nil {
				return &core.Query{Insert: ins}
			}
			return nil
		})},
		{weight: r.Create, produce: randomCreate},
		{weight: r.CreateIndex, produce: withTable(func(rng *rand.Rand) *core.Query {
			if ci := RandomCreateIndex(rng, env.Tables); ci != nil {
				return &core.Query{CreateIndex: ci}
			}
			return nil
		})},
		{weight: r.Delete, produce: withTable(func(rng *rand.Rand) *core.Query {
			if del := RandomDelete(rng, env.Tables); del != nil {
				return &core.Query{Delete: del}
			}
			return nil
		})},
		{weight: r.Update, produce: withTable(func(rng *rand.Rand) *core.Query {
			if upd := RandomUpdate(rng, env.Tables); upd != nil {
				return &core.Query{Update: upd}
			}
			return nil
		})},
		{weight: 0.0, produce: withTable(func(rng *rand.Rand) *core.Query {
			if drop := RandomDrop(rng, env.Tables); drop != nil {
				return &core.Query{Drop: drop}
			}
			return nil
		})},
		{
			weight: maxFloat(1.0, minFloat(minFloat(r.Read, r.Write), r.Create)),
			produce: func(rng *rand.Rand) Interactions {
				faults := []Fault{FaultDisconnect}
				if !env.Opts.DisableReopenDatabase {
					faults = append(faults, FaultReopenDatabase)
				}
				fault := faults[rng.Intn(len(faults))]
				return Interactions{Fault: &fault}
			},
		},
	}, rng)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ComputeViaDiff reconstructs a pruned, expanded plan from a hand-edited
// textual plan file, using the sibling .json file as the baseline. Users
// delete lines from the text; no SQL parsing is needed because every
// surviving line must still anchor-match its serialized interaction.
func ComputeViaDiff(planPath string) ([][]Interaction, error) {
	text, err := os.ReadFile(planPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan text: %w", err)
	}
	jsonPath := strings.TrimSuffix(planPath, filepath.Ext(planPath)) + ".json"
	basePlan, err := LoadPlan(jsonPath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(text), "\n")
	plan := make([][]Interaction, len(basePlan.Plan))
	for idx := range basePlan.Plan {
		plan[idx] = basePlan.Plan[idx].Interactions()
	}

	i, j := 0, 0
	for i < len(lines) && j < len(plan) {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "-- begin") || strings.HasPrefix(line, "-- end") {
			i++
			continue
		}

		k := 0
		for k < len(plan[j]) {
			if i >= len(lines) {
				plan = plan[:j+1]
				plan[j] = plan[j][:k]
				break
			}
			if lineMatches(lines[i], plan[j][k]) {
				i++
				k++
			} else {
				plan[j] = append(plan[j][:k], plan[j][k+1:]...)
			}
		}

		if len(plan[j]) == 0 {
			plan = append(plan[:j], plan[j+1:]...)
		} else {
			j++
		}
	}
	return plan[:j], nil
}

// lineMatches anchors the interaction at the start of the trimmed line (with
// any comment prefix stripped), so interactions sharing a substring cannot
// overmatch.
func lineMatches(line string, interaction Interaction) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "--") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "--"))
	}
	target := interaction.String()
	if !strings.HasPrefix(trimmed, target) {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, target))
	return rest == "" || rest == ";"
}
