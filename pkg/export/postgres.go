package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nicktill/energyview/pkg/table"
)

// Postgres marks results of PostgresSink.Write.
const Postgres Format = "postgres"

// rowIndexColumn holds the frame row position in exported tables.
const rowIndexColumn = "row_index"

// PostgresSink writes frames to Postgres tables, one table per frame name.
// Every frame column is stored as text; missing cells are NULL.
type PostgresSink struct {
	db *sql.DB
}

// OpenPostgres connects with the pgx driver and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// NewPostgresSink wraps an open database.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Close closes the database.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// createStatement and insertStatement build the SQL for a frame header.
func createStatement(ident string, header []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (%s integer NOT NULL", ident, pgx.Identifier{rowIndexColumn}.Sanitize())
	for _, h := range header {
		fmt.Fprintf(&b, ", %s text", pgx.Identifier{h}.Sanitize())
	}
	b.WriteString(")")
	return b.String()
}

func insertStatement(ident string, header []string) string {
	cols := make([]string, 0, len(header)+1)
	params := make([]string, 0, len(header)+1)
	cols = append(cols, pgx.Identifier{rowIndexColumn}.Sanitize())
	params = append(params, "$1")
	for i, h := range header {
		cols = append(cols, pgx.Identifier{h}.Sanitize())
		params = append(params, fmt.Sprintf("$%d", i+2))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ident, strings.Join(cols, ", "), strings.Join(params, ", "))
}

// Write replaces the contents of table name with f inside one transaction.
func (s *PostgresSink) Write(ctx context.Context, name string, f table.Frame) (*Result, error) {
	header := f.Header()
	ident := pgx.Identifier{name}.Sanitize()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createStatement(ident, header)); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+ident); err != nil {
		return nil, fmt.Errorf("failed to clear table %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(ident, header))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(header)+1)
	for i := 0; i < f.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		args[0] = i
		for j, c := range f.Row(i) {
			if c == "" {
				args[j+1] = nil
			} else {
				args[j+1] = c
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return newResult(name, f, Postgres), nil
}
