package sim

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"sqlsim/core"
)

// StepResult is one tick of a row stream.
type StepResult int

const (
	StepRow StepResult = iota
	StepIO
	StepInterrupt
	StepDone
	StepBusy
)

// RowStream is an incremental cursor over a query's results. Step may report
// StepIO to ask the caller to pump the engine's I/O, or StepBusy to ask for a
// retry.
type RowStream interface {
	Step() (StepResult, error)
	Row() []core.SimValue
	Close() error
}

// Connection is one logical session with the engine under test.
type Connection interface {
	Query(sql string) (RowStream, error)
	Disconnect() error
	IsConnected() bool
}

// Database is a handle to the open database; it is replaced wholesale on a
// reopen fault.
type Database struct {
	driver string
	dsn    string
	pool   *sql.DB
}

// SQLiteDSN builds the sqlite connection string for a database file.
func SQLiteDSN(path string, createIfMissing, readOnly bool) string {
	mode := "rwc"
	if !createIfMissing {
		mode = "rw"
	}
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("file:%s?mode=%s&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path, mode)
}

// OpenDatabase opens the engine under test via its database/sql driver and
// verifies the handle with a ping.
func OpenDatabase(io IO, driver, dsn string) (*Database, error) {
	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	if pingErr := pool.Ping(); pingErr != nil {
		if closeErr := pool.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w; additionally failed to close handle: %w", pingErr, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}
	_ = io.RunOnce()
	return &Database{driver: driver, dsn: dsn, pool: pool}, nil
}

// WrapDB adapts an already-open *sql.DB; tests use it with sqlmock.
func WrapDB(db *sql.DB, driver, dsn string) *Database {
	return &Database{driver: driver, dsn: dsn, pool: db}
}

// Connect opens one session against the database.
func (d *Database) Connect() (Connection, error) {
	conn, err := d.pool.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &sqlConn{conn: conn}, nil
}

// Close tears the handle down without any checkpoint-on-close behavior.
func (d *Database) Close() error {
	if d.pool == nil {
		return nil
	}
	return d.pool.Close()
}

// DSN returns the connection string the handle was opened with.
func (d *Database) DSN() string { return d.dsn }

// Driver returns the database/sql driver name.
func (d *Database) Driver() string { return d.driver }

type sqlConn struct {
	conn   *sql.Conn
	closed bool
}

func (c *sqlConn) Query(query string) (RowStream, error) {
	if c.closed {
		return nil, fmt.Errorf("connection is closed")
	}
	rows, err := c.conn.QueryContext(context.Background(), query)
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return &sqlRowStream{rows: rows, types: types}, nil
}

func (c *sqlConn) Disconnect() error {
	if c.closed {
		return fmt.Errorf("connection already disconnected")
	}
	c.closed = true
	return c.conn.Close()
}

func (c *sqlConn) IsConnected() bool { return !c.closed }

type sqlRowStream struct {
	rows    *sql.Rows
	types   []*sql.ColumnType
	current []core.SimValue
	done    bool
}

func (s *sqlRowStream) Step() (StepResult, error) {
	if s.done {
		return StepDone, nil
	}
	if s.rows.Next() {
		row, err := scanRow(s.rows, s.types)
		if err != nil {
			s.done = true
			return StepDone, err
		}
		s.current = row
		return StepRow, nil
	}
	if err := s.rows.Err(); err != nil {
		if IsBusy(err) {
			// Not marked done: every further Step reports the busy
			// condition again until the caller gives up.
			return StepBusy, nil
		}
		s.done = true
		return StepDone, err
	}
	s.done = true
	return StepDone, nil
}

func (s *sqlRowStream) Row() []core.SimValue { return s.current }

func (s *sqlRowStream) Close() error { return s.rows.Close() }

func scanRow(rows *sql.Rows, types []*sql.ColumnType) ([]core.SimValue, error) {
	raw := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make([]core.SimValue, len(raw))
	for i, v := range raw {
		out[i] = toSimValue(v, types[i])
	}
	return out, nil
}

func toSimValue(v any, t *sql.ColumnType) core.SimValue {
	switch x := v.(type) {
	case nil:
		return core.NullValue()
	case int64:
		return core.IntegerValue(x)
	case float64:
		return core.RealValue(x)
	case bool:
		if x {
			return core.IntegerValue(1)
		}
		return core.IntegerValue(0)
	case string:
		return core.TextValue(x)
	case []byte:
		return bytesToSimValue(x, t.DatabaseTypeName())
	default:
		return core.TextValue(fmt.Sprint(x))
	}
}

// bytesToSimValue recovers the scalar kind for drivers that hand every
// column back as raw bytes (the MySQL text protocol does).
func bytesToSimValue(raw []byte, typeName string) core.SimValue {
	switch strings.ToUpper(typeName) {
	case "BLOB", "BINARY", "VARBINARY", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB":
		b := make([]byte, len(raw))
		copy(b, raw)
		return core.BlobValue(b)
	case "INT", "INTEGER", "BIGINT", "MEDIUMINT", "SMALLINT", "TINYINT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return core.IntegerValue(n)
		}
	case "REAL", "DOUBLE", "FLOAT", "DECIMAL":
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return core.RealValue(f)
		}
	}
	return core.TextValue(string(raw))
}

// IsBusy reports whether an engine error is a transient lock/busy condition
// worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "try restarting transaction")
}

// IsNoSuchTable reports whether an engine error indicates schema absence.
// sqlite says "no such table", MySQL says the table "doesn't exist".
func IsNoSuchTable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "doesn't exist") ||
		strings.Contains(msg, "unknown table")
}

// IsAlreadyExists reports whether an engine error indicates a duplicate
// schema object.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
