package warehouse

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/config"
	"github.com/wonny/nsefeed/pkg/database"
	"github.com/wonny/nsefeed/pkg/logger"
)

func sample(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.StringColumn("SYMBOL", []string{"SBIN", "TCS"}),
		table.NumberColumn("%CHNG", []float64{1.5, -0.25}),
		table.DateColumn("DATE1", []time.Time{
			time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC),
			time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC),
		}),
	)
	require.NoError(t, err)
	return tbl
}

// fakeTx records what the sink sends; methods it does not override panic
type fakeTx struct {
	pgx.Tx

	execs      []string
	args       [][]any
	copyTable  pgx.Identifier
	copyCols   []string
	copied     [][]any
	committed  bool
	rolledBack bool
	failCopy   bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, sql)
	tx.args = append(tx.args, args)
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) CopyFrom(ctx context.Context, name pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if tx.failCopy {
		return 0, fmt.Errorf("copy refused")
	}
	tx.copyTable, tx.copyCols = name, cols
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		tx.copied = append(tx.copied, values)
	}
	return int64(len(tx.copied)), src.Err()
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeDB struct{ tx *fakeTx }

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.tx, nil
}

func TestTableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bhavcopy_eq", "nse_bhavcopy_eq"},
		{"Stock Watch", "nse_stock_watch"},
		{"hist/SBIN", "nse_hist_sbin"},
		{"m&m", "nse_m_m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TableName(tt.in), tt.in)
	}
}

func TestCreateStatement(t *testing.T) {
	got := CreateStatement("nse_bhavcopy_eq", sample(t))
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "nse_bhavcopy_eq" ("snapshot" text NOT NULL, "SYMBOL" text, "%CHNG" double precision, "DATE1" timestamp)`,
		got)
}

func TestRows(t *testing.T) {
	rows := Rows("2020-06-17", sample(t))
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"2020-06-17", "TCS", -0.25, time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC)}, rows[1])
}

func TestWriteTable(t *testing.T) {
	tx := &fakeTx{}
	sink := New(&fakeDB{tx: tx}, logger.NewNop())

	n, err := sink.WriteTable(context.Background(), "bhavcopy_eq", "2020-06-17", sample(t))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0], "CREATE TABLE IF NOT EXISTS")
	assert.Equal(t, `DELETE FROM "nse_bhavcopy_eq" WHERE "snapshot" = $1`, tx.execs[1])
	assert.Equal(t, []any{"2020-06-17"}, tx.args[1])
	assert.Equal(t, pgx.Identifier{"nse_bhavcopy_eq"}, tx.copyTable)
	assert.Equal(t, []string{"snapshot", "SYMBOL", "%CHNG", "DATE1"}, tx.copyCols)
	assert.True(t, tx.committed)
}

func TestWriteTableRollsBackOnFailure(t *testing.T) {
	tx := &fakeTx{failCopy: true}
	sink := New(&fakeDB{tx: tx}, logger.NewNop())

	_, err := sink.WriteTable(context.Background(), "bhavcopy_eq", "2020-06-17", sample(t))
	assert.Error(t, err)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestWriteEmptyTableIsNoop(t *testing.T) {
	tx := &fakeTx{}
	sink := New(&fakeDB{tx: tx}, logger.NewNop())

	n, err := sink.WriteTable(context.Background(), "pre_open", "2020-06-17", &table.Table{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, tx.execs)
}

func TestWriteTablePostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, &config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err)
	defer db.Close()

	name := fmt.Sprintf("test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{TableName(name)}.Sanitize())
	})

	sink := New(db.Pool, logger.NewNop())
	for i := 0; i < 2; i++ {
		n, err := sink.WriteTable(ctx, name, "2020-06-17", sample(t))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}

	var count int
	err = db.Pool.QueryRow(ctx, "SELECT count(*) FROM "+pgx.Identifier{TableName(name)}.Sanitize()).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "rewriting a snapshot replaces its rows")
}
