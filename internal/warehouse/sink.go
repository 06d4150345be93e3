// Package warehouse exports normalized tables to PostgreSQL.
//
// Every resource gets one table, nse_<name>, created from the column kinds of
// the first table written to it. Rows carry a snapshot label (usually the
// trading date); writing a snapshot again replaces its rows.
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/nsefeed/internal/table"
	"github.com/wonny/nsefeed/pkg/logger"
)

const snapshotColumn = "snapshot"

// Beginner opens transactions; *pgxpool.Pool satisfies it
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Sink writes tables into the warehouse
// ⭐ SSOT: the only writer of nse_* tables
type Sink struct {
	db     Beginner
	logger *logger.Logger
}

// New creates a sink on db
func New(db Beginner, log *logger.Logger) *Sink {
	return &Sink{db: db, logger: log.Component("warehouse")}
}

// WriteTable replaces the rows of snapshot in nse_<name> with t
func (s *Sink) WriteTable(ctx context.Context, name, snapshot string, t *table.Table) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, nil
	}

	target := TableName(name)
	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, CreateStatement(target, t)); err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		pgx.Identifier{target}.Sanitize(), pgx.Identifier{snapshotColumn}.Sanitize())
	if _, err := tx.Exec(ctx, del, snapshot); err != nil {
		return 0, fmt.Errorf("clear snapshot %s of %s: %w", snapshot, target, err)
	}

	columns := append([]string{snapshotColumn}, t.ColumnNames()...)
	n, err := tx.CopyFrom(ctx, pgx.Identifier{target}, columns, pgx.CopyFromRows(Rows(snapshot, t)))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", target, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"table":    target,
		"snapshot": snapshot,
		"rows":     n,
		"duration": time.Since(start),
	}).Info("table exported")
	return n, nil
}

// TableName maps a resource name to its warehouse table: lower case, anything
// outside [a-z0-9_] becomes "_", prefixed with nse_
func TableName(name string) string {
	var b strings.Builder
	b.WriteString("nse_")
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CreateStatement is the CREATE TABLE IF NOT EXISTS for t. Column names are
// quoted identifiers, so "%CHNG" or "meta.symbol" survive unchanged.
func CreateStatement(target string, t *table.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	defs = append(defs, pgx.Identifier{snapshotColumn}.Sanitize()+" text NOT NULL")
	for _, c := range t.Columns {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+sqlType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{target}.Sanitize(), strings.Join(defs, ", "))
}

// Rows renders t row by row, snapshot first
func Rows(snapshot string, t *table.Table) [][]any {
	rows := make([][]any, t.Len())
	for i := range rows {
		row := make([]any, 0, len(t.Columns)+1)
		row = append(row, snapshot)
		for j := range t.Columns {
			row = append(row, t.Columns[j].Value(i))
		}
		rows[i] = row
	}
	return rows
}

func sqlType(k table.Kind) string {
	switch k {
	case table.KindNumber:
		return "double precision"
	case table.KindDate:
		return "timestamp"
	default:
		return "text"
	}
}
