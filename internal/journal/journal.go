// Package journal keeps a SQLite record of confirmed detections and gate
// transitions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/vision"
)

// Store provides SQLite-backed persistence for sorter events.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens (creating if needed) the journal at path and migrates it.
// Use ":memory:" for a throwaway journal.
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One writer; also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debugw("journal open", "path", path, "schema", SchemaVersion)
	return &Store{db: db, logger: logger}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RecordDetection appends a confirmed detection.
func (s *Store) RecordDetection(ctx context.Context, ev logic.DetectionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO detections (label, observed_at) VALUES (?, ?)`,
		string(ev.Label), formatTime(ev.Timestamp))
	if err != nil {
		return fmt.Errorf("record detection: %w", err)
	}
	return nil
}

// RecordTransition appends a gate transition.
func (s *Store) RecordTransition(ctx context.Context, tr logic.Transition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (label, command, from_state, to_state, at) VALUES (?, ?, ?, ?, ?)`,
		string(tr.Label), string(tr.Command), string(tr.From), string(tr.To), formatTime(tr.Timestamp))
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// RecentTransitions returns up to limit transitions, newest first.
func (s *Store) RecentTransitions(ctx context.Context, limit int) ([]logic.Transition, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, command, from_state, to_state, at FROM transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transitions: query: %w", err)
	}
	defer rows.Close()

	var out []logic.Transition
	for rows.Next() {
		var label, command, from, to, at string
		if err := rows.Scan(&label, &command, &from, &to, &at); err != nil {
			return nil, fmt.Errorf("recent transitions: scan: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("recent transitions: parse time %q: %w", at, err)
		}
		out = append(out, logic.Transition{
			Timestamp: ts,
			Label:     vision.Bucket(label),
			From:      logic.ActuatorState(from),
			To:        logic.ActuatorState(to),
			Command:   logic.Command(command),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent transitions: rows: %w", err)
	}
	return out, nil
}

// DetectionCounts returns the number of confirmed detections per label.
func (s *Store) DetectionCounts(ctx context.Context) (map[vision.Bucket]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM detections GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("detection counts: query: %w", err)
	}
	defer rows.Close()

	counts := make(map[vision.Bucket]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("detection counts: scan: %w", err)
		}
		counts[vision.Bucket(label)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detection counts: rows: %w", err)
	}
	return counts, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
