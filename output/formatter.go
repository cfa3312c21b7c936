// Package output renders simulation results for people and for tooling.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"sqlsim/runner"
)

type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
)

// Formatter renders a run report in one output format.
type Formatter interface {
	FormatReport(*runner.Report) (string, error)
}

// NewFormatter resolves a format name; the empty name means human.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatHuman:
		return humanFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", name)
	}
}

type jsonFormatter struct{}

func (jsonFormatter) FormatReport(report *runner.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(data) + "\n", nil
}
