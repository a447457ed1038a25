package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Event kinds recorded in the journal.
const (
	EventTransition = "transition"
	EventOverride   = "override"
	EventWarning    = "warning"
)

// Event is one journal entry about a worktree.
type Event struct {
	ID          string
	OperationID string
	Key         string
	Kind        string
	FromState   string
	ToState     string
	Detail      string
	CreatedAt   time.Time
}

// Journal is the sqlite-backed lifecycle audit trail.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens or creates the journal database at dbPath.
func OpenJournal(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id           TEXT PRIMARY KEY,
		operation_id TEXT NOT NULL,
		key          TEXT NOT NULL,
		kind         TEXT NOT NULL,
		from_state   TEXT,
		to_state     TEXT,
		detail       TEXT,
		created_at   DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_key ON events(key, created_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends ev, filling in its ID and timestamp when unset.
func (j *Journal) Record(ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO events (id, operation_id, key, kind, from_state, to_state, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.Exec(query,
		ev.ID,
		ev.OperationID,
		ev.Key,
		ev.Kind,
		ev.FromState,
		ev.ToState,
		ev.Detail,
		ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// List returns events newest first. An empty key lists every worktree.
func (j *Journal) List(key string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if key != "" {
		rows, err = j.db.Query(`
			SELECT id, operation_id, key, kind, from_state, to_state, detail, created_at
			FROM events WHERE key = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		`, key, limit)
	} else {
		rows, err = j.db.Query(`
			SELECT id, operation_id, key, kind, from_state, to_state, detail, created_at
			FROM events
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		var from, to, detail sql.NullString
		if err := rows.Scan(&ev.ID, &ev.OperationID, &ev.Key, &ev.Kind, &from, &to, &detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.FromState = from.String
		ev.ToState = to.String
		ev.Detail = detail.String
		events = append(events, &ev)
	}
	return events, rows.Err()
}
