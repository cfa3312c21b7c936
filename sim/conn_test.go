package sim

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlsim/core"
)

func mockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return WrapDB(db, "sqlmock", "sqlmock://test"), mock
}

func TestConnectionQueryCollectsRows(t *testing.T) {
	db, mock := mockDatabase(t)
	mock.ExpectQuery("SELECT * FROM t WHERE TRUE").WillReturnRows(
		sqlmock.NewRows([]string{"a", "b"}).
			AddRow(int64(1), "x").
			AddRow(int64(2), nil),
	)

	conn, err := db.Connect()
	require.NoError(t, err)
	require.True(t, conn.IsConnected())

	stream, err := conn.Query("SELECT * FROM t WHERE TRUE")
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var rows [][]core.SimValue
	for {
		step, err := stream.Step()
		require.NoError(t, err)
		if step == StepDone {
			break
		}
		require.Equal(t, StepRow, step)
		row := stream.Row()
		copied := make([]core.SimValue, len(row))
		copy(copied, row)
		rows = append(rows, copied)
	}

	require.Len(t, rows, 2)
	assert.True(t, rows[0][0].Equal(core.IntegerValue(1)))
	assert.True(t, rows[0][1].Equal(core.TextValue("x")))
	assert.True(t, rows[1][1].IsNull())
}

func TestConnectionQueryErrorSurfaces(t *testing.T) {
	db, mock := mockDatabase(t)
	mock.ExpectQuery("SELECT * FROM missing WHERE TRUE").
		WillReturnError(errors.New("no such table: missing"))

	conn, err := db.Connect()
	require.NoError(t, err)

	_, err = conn.Query("SELECT * FROM missing WHERE TRUE")
	require.Error(t, err)
	assert.True(t, IsNoSuchTable(err))
}

func TestConnectionDisconnect(t *testing.T) {
	db, _ := mockDatabase(t)
	conn, err := db.Connect()
	require.NoError(t, err)

	require.NoError(t, conn.Disconnect())
	assert.False(t, conn.IsConnected())
	assert.Error(t, conn.Disconnect(), "double disconnect must fail")

	_, err = conn.Query("SELECT 1")
	assert.Error(t, err)
}

func TestSimConnectionSlot(t *testing.T) {
	db, _ := mockDatabase(t)
	conn, err := db.Connect()
	require.NoError(t, err)

	var slot SimConnection
	assert.False(t, slot.IsConnected())
	assert.Error(t, slot.Disconnect())

	slot.Attach(conn)
	assert.True(t, slot.IsConnected())
	require.NoError(t, slot.Disconnect())
	assert.False(t, slot.IsConnected())
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsBusy(errors.New("Error 1205: Lock wait timeout exceeded; try restarting transaction")))
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("syntax error")))

	assert.True(t, IsNoSuchTable(errors.New("SQL logic error: no such table: orders (1)")))
	assert.True(t, IsNoSuchTable(errors.New("Error 1146 (42S02): Table 'testdb.orders' doesn't exist")))
	assert.False(t, IsNoSuchTable(nil))

	assert.True(t, IsAlreadyExists(errors.New("table users already exists")))
	assert.False(t, IsAlreadyExists(errors.New("no such table: users")))
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("/tmp/x.db", true, false)
	assert.Contains(t, dsn, "file:/tmp/x.db")
	assert.Contains(t, dsn, "mode=rwc")
	assert.Contains(t, dsn, "journal_mode(WAL)")

	assert.Contains(t, SQLiteDSN("/tmp/x.db", false, false), "mode=rw")
	assert.Contains(t, SQLiteDSN("/tmp/x.db", false, true), "mode=ro")
}

func TestBytesToSimValueRecoversKinds(t *testing.T) {
	assert.True(t, bytesToSimValue([]byte("42"), "BIGINT").Equal(core.IntegerValue(42)))
	assert.True(t, bytesToSimValue([]byte("-499.5"), "DOUBLE").Equal(core.RealValue(-499.5)))
	assert.True(t, bytesToSimValue([]byte("hello"), "TEXT").Equal(core.TextValue("hello")))
	assert.Equal(t, core.KindBlob, bytesToSimValue([]byte{0xff}, "BLOB").Kind)
	// Unparseable numerics degrade to text rather than lying.
	assert.Equal(t, core.KindText, bytesToSimValue([]byte("abc"), "INT").Kind)
}

func TestSyncIOCountsTicks(t *testing.T) {
	io := NewSyncIO()
	require.NoError(t, io.RunOnce())
	require.NoError(t, io.RunOnce())
	assert.Equal(t, 2, io.Ticks())
}
