package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

// DefaultLimit is the number of events Recent returns for a non-positive limit.
const DefaultLimit = 50

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    ts TEXT NOT NULL,
    kind TEXT NOT NULL,
    alarm_key TEXT NOT NULL,
    point_address INTEGER NOT NULL,
    point_name TEXT NOT NULL,
    alarm_type TEXT NOT NULL,
    priority TEXT NOT NULL,
    from_stage TEXT NOT NULL,
    to_stage TEXT NOT NULL,
    temperature INTEGER NOT NULL,
    threshold INTEGER NOT NULL,
    field TEXT NOT NULL,
    old_value TEXT NOT NULL,
    new_value TEXT NOT NULL,
    message TEXT NOT NULL
);`

const insertSQL = `
INSERT INTO events(id, ts, kind, alarm_key, point_address, point_name, alarm_type, priority,
    from_stage, to_stage, temperature, threshold, field, old_value, new_value, message)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRecentSQL = `
SELECT id, ts, kind, alarm_key, point_address, point_name, alarm_type, priority,
    from_stage, to_stage, temperature, threshold, field, old_value, new_value, message
FROM events
ORDER BY seq DESC
LIMIT ?`

// errStoreClosed is returned when the store is used after Close.
var errStoreClosed = errors.New("event store is closed")

// Entry is a stored event with its identifier.
type Entry struct {
	// ID is the event UUID.
	ID string
	// Event is the stored event.
	Event alarm.Event
}

// Store is a SQLite-backed alarm event sink.
type Store struct {
	// db is the database handle; a single connection serializes writes.
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts an event.
func (s *Store) Record(ctx context.Context, e alarm.Event) error {
	if s.db == nil {
		return errStoreClosed
	}

	typ, priority, from, to := "", "", "", ""
	if e.Key != "" {
		typ, priority = e.Type.String(), e.Priority.String()
		from, to = e.From.String(), e.To.String()
	}

	_, err := s.db.ExecContext(ctx, insertSQL,
		uuid.NewString(),
		e.Time.Format(time.RFC3339Nano),
		e.Kind.String(),
		e.Key.String(),
		e.PointAddress,
		e.PointName,
		typ,
		priority,
		from,
		to,
		e.Temperature,
		e.Threshold,
		e.Field,
		e.OldValue,
		e.NewValue,
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Recent returns the latest events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, errStoreClosed
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result []Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return result, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}

// scanEntry decodes one row.
func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry                                 Entry
		ts, kind, key, typ, priority, from, to string
	)

	e := &entry.Event

	err := rows.Scan(&entry.ID, &ts, &kind, &key, &e.PointAddress, &e.PointName, &typ, &priority,
		&from, &to, &e.Temperature, &e.Threshold, &e.Field, &e.OldValue, &e.NewValue, &e.Message)
	if err != nil {
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}

	if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return Entry{}, fmt.Errorf("parse event time %q: %w", ts, err)
	}

	if e.Kind, err = alarm.ParseEventKind(kind); err != nil {
		return Entry{}, fmt.Errorf("parse event kind: %w", err)
	}

	e.Key = alarm.Key(key)
	if key == "" {
		return entry, nil
	}

	// Rows written by this package always carry valid names; decoding errors
	// leave the zero value.
	e.Type, _ = alarm.ParseType(typ)
	e.Priority, _ = alarm.ParsePriority(priority)
	e.From, _ = alarm.ParseStage(from)
	e.To, _ = alarm.ParseStage(to)

	return entry, nil
}
