package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		started        TIMESTAMP NOT NULL,
		finished       TIMESTAMP NOT NULL,
		command        TEXT NOT NULL,
		master         TEXT NOT NULL,
		time_window    TEXT,
		existing       INTEGER DEFAULT 0,
		invalid        INTEGER DEFAULT 0,
		removed        INTEGER DEFAULT 0,
		retained       INTEGER DEFAULT 0,
		added          INTEGER DEFAULT 0,
		duplicates     INTEGER DEFAULT 0,
		key_duplicates INTEGER DEFAULT 0,
		total          INTEGER DEFAULT 0,
		fallback       BOOLEAN DEFAULT FALSE,
		status         TEXT NOT NULL,
		message        TEXT
	)`

// DB is the SQL run log. A postgres:// DSN uses PostgreSQL, anything else is
// taken as a SQLite database file.
type DB struct {
	*sql.DB
	driver string
}

func Open(dsn string) (*DB, error) {
	driver := "sqlite3"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	} else {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}

		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

func (db *DB) Record(ctx context.Context, run Run) error {
	query := db.rebind(`
		INSERT INTO runs (id, started, finished, command, master, time_window,
		                  existing, invalid, removed, retained, added, duplicates, key_duplicates, total,
		                  fallback, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	s := run.Summary
	_, err := db.ExecContext(ctx, query,
		run.ID.String(), run.Started.UTC(), run.Finished.UTC(), run.Command, run.Master, run.Window,
		s.Existing, s.Invalid, s.Removed, s.Retained, s.Added, s.Duplicates, s.KeyDuplicates, s.Total,
		run.Fallback, run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run %v: %w", run.ID, err)
	}

	return nil
}

// Recent returns the most recent runs, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := db.rebind(`
		SELECT id, started, finished, command, master, time_window,
		       existing, invalid, removed, retained, added, duplicates, key_duplicates, total,
		       fallback, status, message
		FROM runs
		ORDER BY started DESC
		LIMIT ?`)

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var id string
		var window, message sql.NullString

		s := &run.Summary
		if err := rows.Scan(&id, &run.Started, &run.Finished, &run.Command, &run.Master, &window,
			&s.Existing, &s.Invalid, &s.Removed, &s.Retained, &s.Added, &s.Duplicates, &s.KeyDuplicates, &s.Total,
			&run.Fallback, &run.Status, &message); err != nil {
			return nil, err
		}

		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}

		run.Window = window.String
		run.Error = message.String
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
		} else {
			b.WriteRune(c)
		}
	}

	return b.String()
}
