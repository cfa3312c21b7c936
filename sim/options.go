// Package sim holds the mutable simulation state and the abstractions over
// the engine under test: options, the environment, connections, and I/O.
package sim

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Backend names a registered database/sql driver the simulator can target.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMySQL  Backend = "mysql"
)

// Options configures one simulation run. The per-kind percentages are
// targets over MaxInteractions; `remaining` budgets in the generator are
// derived from them.
type Options struct {
	Seed                  int64   `toml:"seed"`
	MaxInteractions       int     `toml:"max_interactions"`
	MaxConnections        int     `toml:"max_connections"`
	Backend               Backend `toml:"backend"`
	DSN                   string  `toml:"dsn"`
	DisableReopenDatabase bool    `toml:"disable_reopen_database"`
	CheckSQL              bool    `toml:"check_sql"`

	ReadPercent        float64 `toml:"read_percent"`
	WritePercent       float64 `toml:"write_percent"`
	CreatePercent      float64 `toml:"create_percent"`
	CreateIndexPercent float64 `toml:"create_index_percent"`
	DeletePercent      float64 `toml:"delete_percent"`
	UpdatePercent      float64 `toml:"update_percent"`
	DropPercent        float64 `toml:"drop_percent"`

	MinRowsPerInsert int `toml:"min_rows_per_insert"`
	MaxRowsPerInsert int `toml:"max_rows_per_insert"`
}

// DefaultOptions mirrors the ratios the original simulator ships with.
func DefaultOptions() Options {
	return Options{
		Seed:               1,
		MaxInteractions:    100,
		MaxConnections:     2,
		Backend:            BackendSQLite,
		ReadPercent:        35,
		WritePercent:       35,
		CreatePercent:      10,
		CreateIndexPercent: 5,
		DeletePercent:      10,
		UpdatePercent:      5,
		DropPercent:        0,
		MinRowsPerInsert:   1,
		MaxRowsPerInsert:   5,
	}
}

// LoadOptions reads a TOML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return opts, fmt.Errorf("failed to read options file: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate rejects configurations the generator cannot honor.
func (o Options) Validate() error {
	if o.MaxInteractions <= 0 {
		return fmt.Errorf("max_interactions must be positive, got %d", o.MaxInteractions)
	}
	if o.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", o.MaxConnections)
	}
	switch o.Backend {
	case BackendSQLite:
	case BackendMySQL:
		if o.DSN == "" {
			return fmt.Errorf("mysql backend requires a dsn")
		}
	default:
		return fmt.Errorf("unsupported backend: %s", o.Backend)
	}
	for _, pct := range []struct {
		name  string
		value float64
	}{
		{"read_percent", o.ReadPercent},
		{"write_percent", o.WritePercent},
		{"create_percent", o.CreatePercent},
		{"create_index_percent", o.CreateIndexPercent},
		{"delete_percent", o.DeletePercent},
		{"update_percent", o.UpdatePercent},
		{"drop_percent", o.DropPercent},
	} {
		if pct.value < 0 || pct.value > 100 {
			return fmt.Errorf("%s must be in [0, 100], got %v", pct.name, pct.value)
		}
	}
	if o.MinRowsPerInsert <= 0 || o.MaxRowsPerInsert < o.MinRowsPerInsert {
		return fmt.Errorf("invalid insert row bounds [%d, %d]", o.MinRowsPerInsert, o.MaxRowsPerInsert)
	}
	return nil
}
