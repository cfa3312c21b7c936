// Package sqlcheck validates rendered queries against a real SQL grammar, so
// a generator bug cannot silently turn into unparseable plans.
package sqlcheck

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"sqlsim/generation"
)

// Checker wraps a TiDB SQL parser. Not safe for concurrent use.
type Checker struct {
	parser *parser.Parser
}

func New() *Checker {
	return &Checker{parser: parser.New()}
}

// Check parses one statement and returns the grammar error, if any.
func (c *Checker) Check(sql string) error {
	if _, _, err := c.parser.Parse(sql, "", ""); err != nil {
		return fmt.Errorf("invalid SQL %q: %w", truncate(sql), err)
	}
	return nil
}

// CheckPlan validates every query in the plan, including the queries nested
// inside properties.
func (c *Checker) CheckPlan(plan *generation.InteractionPlan) error {
	for idx := range plan.Plan {
		for _, interaction := range plan.Plan[idx].Interactions() {
			if interaction.Query == nil {
				continue
			}
			if err := c.Check(interaction.Query.String()); err != nil {
				return fmt.Errorf("plan item %d: %w", idx, err)
			}
		}
	}
	return nil
}

func truncate(s string) string {
	const limit = 120
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
