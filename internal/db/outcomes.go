package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heraldhq/herald/internal/dispatch"
)

// Outcome table. One row per task life; a replayed task that completes
// again overwrites its row.
const OutcomeSchema = `
CREATE SCHEMA IF NOT EXISTS herald;
CREATE TABLE IF NOT EXISTS herald.outcomes (
	task_id      TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	channel      TEXT NOT NULL,
	destination  TEXT NOT NULL,
	state        TEXT NOT NULL,
	attempts     INT  NOT NULL,
	last_error   TEXT,
	completed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_event_id_idx ON herald.outcomes(event_id);
`

// PGOutcomeStore persists terminal delivery outcomes.
type PGOutcomeStore struct {
	pool *pgxpool.Pool
}

func NewPGOutcomeStore(pool *pgxpool.Pool) *PGOutcomeStore {
	return &PGOutcomeStore{pool: pool}
}

// EnsureSchema creates the outcome table if it does not exist.
func (s *PGOutcomeStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, OutcomeSchema)
	return err
}

func (s *PGOutcomeStore) Record(ctx context.Context, o dispatch.Outcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO herald.outcomes
			(task_id, event_id, event_type, channel, destination, state, attempts, last_error, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (task_id) DO UPDATE SET
			state=EXCLUDED.state, attempts=EXCLUDED.attempts,
			last_error=EXCLUDED.last_error, completed_at=EXCLUDED.completed_at`,
		o.TaskID, o.EventID, o.EventType, o.Channel, o.Destination,
		o.State, o.Attempts, o.LastError, o.CompletedAt,
	)
	return err
}

// Recent returns the latest outcomes, newest first.
func (s *PGOutcomeStore) Recent(ctx context.Context, limit int) ([]dispatch.Outcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, event_id, event_type, channel, destination, state, attempts, COALESCE(last_error,''), completed_at
		FROM herald.outcomes ORDER BY completed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Outcome
	for rows.Next() {
		var o dispatch.Outcome
		if err := rows.Scan(&o.TaskID, &o.EventID, &o.EventType, &o.Channel,
			&o.Destination, &o.State, &o.Attempts, &o.LastError, &o.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
