// Package sqlite persists query results into SQLite tables.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Open opens (or creates) the database at path. ":memory:" is accepted.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// Write replaces the table name with the rows of t. Column affinities
// follow the schema; object columns are stored as JSON text. Everything
// happens in one transaction, so a failed write leaves the previous
// contents in place.
func Write(ctx context.Context, db *sql.DB, name string, t *table.Table, columns []spec.Column) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("table %s: no columns", name)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(name)); err != nil {
		return 0, fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, createStatement(name, columns)); err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(name, columns))
	if err != nil {
		return 0, fmt.Errorf("prepare insert %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for i, row := range t.Rows {
		for j, c := range columns {
			v, err := sqlValue(row[c.Name], c.Type)
			if err != nil {
				return 0, fmt.Errorf("row %d column %s: %w", i, c.Name, err)
			}
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	log.Debug().
		Str("component", "sqlite-sink").
		Str("table", name).
		Int("rows", t.Len()).
		Msg("Wrote table")

	return t.Len(), nil
}

func createStatement(name string, columns []spec.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quote(c.Name) + " " + affinity(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", "))
}

func insertStatement(name string, columns []spec.Column) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quote(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(name), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func affinity(t spec.ColumnType) string {
	switch t {
	case spec.ColumnInt, spec.ColumnBoolean:
		return "INTEGER"
	case spec.ColumnFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqlValue(v any, t spec.ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if t == spec.ColumnObject {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

// quote returns a SQLite identifier literal.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
