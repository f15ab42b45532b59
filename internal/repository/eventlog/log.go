package eventlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

// Header lists the column names of a row.
//
//nolint:gochecknoglobals // Column layout.
var Header = []string{
	"timestamp", "kind", "key", "point", "point_name", "type", "priority",
	"from", "to", "temperature", "threshold", "field", "old", "new", "message",
}

// Log is a CSV alarm event sink over rotating files.
type Log struct {
	// mu serializes rows.
	mu sync.Mutex
	// files rotates the underlying file.
	files *rotatelogs.RotateLogs
	// writer encodes rows.
	writer *csv.Writer
}

// Open creates a log writing to files named by the strftime pattern,
// e.g. "events-%Y-%m-%d.csv".
func Open(pattern string, maxAge, rotation time.Duration) (*Log, error) {
	files, err := rotatelogs.New(
		pattern,
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", pattern, err)
	}

	return &Log{
		files:  files,
		writer: csv.NewWriter(files),
	}, nil
}

// Record appends one row and flushes it.
func (l *Log) Record(_ context.Context, e alarm.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Write(Row(e)); err != nil {
		return fmt.Errorf("write event row: %w", err)
	}

	l.writer.Flush()

	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("flush event row: %w", err)
	}

	return nil
}

// CurrentFile returns the file currently written to.
func (l *Log) CurrentFile() string {
	return l.files.CurrentFileName()
}

// Close flushes and closes the current file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writer.Flush()

	return l.files.Close()
}

// Row converts an event to CSV columns in Header order.
func Row(e alarm.Event) []string {
	typ, priority, from, to := "", "", "", ""
	if e.Key != "" {
		typ, priority = e.Type.String(), e.Priority.String()
		from, to = e.From.String(), e.To.String()
	}

	return []string{
		e.Timestamp(),
		e.Kind.String(),
		e.Key.String(),
		strconv.Itoa(e.PointAddress),
		e.PointName,
		typ,
		priority,
		from,
		to,
		strconv.Itoa(e.Temperature),
		strconv.Itoa(e.Threshold),
		e.Field,
		e.OldValue,
		e.NewValue,
		e.Message,
	}
}
