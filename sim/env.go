package sim

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sqlsim/core"
)

// ResultSet is the outcome of one executed query: either rows or the engine
// error. Engine errors are data, not control flow; properties decide whether
// an error was expected.
type ResultSet struct {
	Rows [][]core.SimValue
	Err  error
}

// IsErr reports whether the query failed.
func (r ResultSet) IsErr() bool { return r.Err != nil }

// SimConnection is one slot of the environment's connection vector. The zero
// value is the Disconnected state.
type SimConnection struct {
	conn Connection
}

// IsConnected reports whether the slot holds a live connection.
func (s *SimConnection) IsConnected() bool { return s.conn != nil && s.conn.IsConnected() }

// Conn returns the live connection, or nil when disconnected.
func (s *SimConnection) Conn() Connection { return s.conn }

// Attach puts a live connection into the slot.
func (s *SimConnection) Attach(c Connection) { s.conn = c }

// Disconnect closes the held connection and empties the slot.
func (s *SimConnection) Disconnect() error {
	if s.conn == nil {
		return fmt.Errorf("connection already disconnected")
	}
	err := s.conn.Disconnect()
	s.conn = nil
	return err
}

// SimulatorEnv is the mutable state of one simulation run. It is exclusively
// owned by the simulator loop; nothing here locks.
type SimulatorEnv struct {
	Rng         *rand.Rand
	Opts        Options
	Tables      *core.Catalog
	Connections []SimConnection
	DB          *Database
	DBPath      string
	IO          IO
	Log         *zap.Logger
}

// NewGenerationEnv builds an environment for plan generation only: seeded
// RNG, options, and an empty shadow catalog, with no live database.
func NewGenerationEnv(opts Options, log *zap.Logger) *SimulatorEnv {
	if log == nil {
		log = zap.NewNop()
	}
	return &SimulatorEnv{
		Rng:    rand.New(rand.NewSource(opts.Seed)),
		Opts:   opts,
		Tables: &core.Catalog{},
		IO:     NewSyncIO(),
		Log:    log,
	}
}

// NewEnv builds a full environment: it opens the database under test and
// dials MaxConnections sessions.
func NewEnv(opts Options, log *zap.Logger) (*SimulatorEnv, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	env := NewGenerationEnv(opts, log)

	driver, dsn, dbPath, err := backendTarget(opts)
	if err != nil {
		return nil, err
	}
	env.DBPath = dbPath

	db, err := OpenDatabase(env.IO, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database under test: %w", err)
	}
	env.DB = db

	env.Connections = make([]SimConnection, opts.MaxConnections)
	for i := range env.Connections {
		conn, err := db.Connect()
		if err != nil {
			_ = env.Close()
			return nil, fmt.Errorf("failed to connect session %d: %w", i, err)
		}
		env.Connections[i].Attach(conn)
	}

	env.Log.Info("environment ready",
		zap.Int64("seed", opts.Seed),
		zap.String("backend", string(opts.Backend)),
		zap.String("db_path", dbPath),
		zap.Int("connections", opts.MaxConnections))
	return env, nil
}

func backendTarget(opts Options) (driver, dsn, dbPath string, err error) {
	switch opts.Backend {
	case BackendSQLite:
		path := filepath.Join(os.TempDir(), fmt.Sprintf("sqlsim-%s.db", uuid.NewString()))
		return "sqlite", SQLiteDSN(path, true, false), path, nil
	case BackendMySQL:
		return "mysql", opts.DSN, opts.DSN, nil
	default:
		return "", "", "", fmt.Errorf("unsupported backend: %s", opts.Backend)
	}
}

// Reopen drops every connection without checkpointing, reopens the database
// from its path, and dials the same number of fresh sessions. A failure to
// reopen indicates a real bug in the engine under test, so callers panic.
func (e *SimulatorEnv) Reopen() error {
	numConns := len(e.Connections)
	for i := range e.Connections {
		if e.Connections[i].IsConnected() {
			_ = e.Connections[i].Disconnect()
		}
		e.Connections[i] = SimConnection{}
	}
	if err := e.DB.Close(); err != nil {
		e.Log.Warn("closing database before reopen failed", zap.Error(err))
	}

	var dsn string
	switch e.Opts.Backend {
	case BackendSQLite:
		dsn = SQLiteDSN(e.DBPath, false, false)
	default:
		dsn = e.DBPath
	}
	db, err := OpenDatabase(e.IO, e.DB.Driver(), dsn)
	if err != nil {
		return fmt.Errorf("failed to reopen database %q: %w", e.DBPath, err)
	}
	e.DB = db

	for i := 0; i < numConns; i++ {
		conn, err := db.Connect()
		if err != nil {
			return fmt.Errorf("failed to reconnect session %d after reopen: %w", i, err)
		}
		e.Connections[i].Attach(conn)
	}
	return nil
}

// Close releases every connection, the database handle, and (for the sqlite
// backend) the database file.
func (e *SimulatorEnv) Close() error {
	for i := range e.Connections {
		if e.Connections[i].IsConnected() {
			_ = e.Connections[i].Disconnect()
		}
	}
	var err error
	if e.DB != nil {
		err = e.DB.Close()
	}
	if e.Opts.Backend == BackendSQLite && e.DBPath != "" {
		_ = os.Remove(e.DBPath)
		_ = os.Remove(e.DBPath + "-wal")
		_ = os.Remove(e.DBPath + "-shm")
	}
	return err
}
