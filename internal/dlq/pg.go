package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres table for dead letters. The full envelope is kept as JSONB so a
// replay needs no joins; the extracted columns exist for filtering.
const Schema = `
CREATE SCHEMA IF NOT EXISTS herald;
CREATE TABLE IF NOT EXISTS herald.dead_letters (
	task_id     TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	channel     TEXT NOT NULL,
	destination TEXT NOT NULL,
	state       TEXT NOT NULL,
	attempts    INT  NOT NULL,
	reason      TEXT NOT NULL,
	last_error  TEXT,
	letter      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	replayed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS dead_letters_event_type_idx ON herald.dead_letters(event_type);
CREATE INDEX IF NOT EXISTS dead_letters_channel_idx ON herald.dead_letters(channel);
`

// PGStore persists dead letters in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the dead-letter table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PGStore) Add(ctx context.Context, l Letter) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal letter: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO herald.dead_letters
			(task_id, event_id, event_type, channel, destination, state, attempts, reason, last_error, letter)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (task_id) DO UPDATE SET
			state=EXCLUDED.state, attempts=EXCLUDED.attempts, reason=EXCLUDED.reason,
			last_error=EXCLUDED.last_error, letter=EXCLUDED.letter,
			created_at=now(), replayed_at=NULL`,
		l.Task.ID, l.Task.Event.ID, l.Task.Event.EventType, l.Task.Channel,
		l.Task.Destination, l.State, l.Attempts, l.Reason, l.LastError, body,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, taskID string) (Letter, error) {
	var body []byte
	var replayed *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT letter, replayed_at FROM herald.dead_letters WHERE task_id=$1`,
		taskID).Scan(&body, &replayed)
	if errors.Is(err, pgx.ErrNoRows) {
		return Letter{}, fmt.Errorf("%w: %s", ErrLetterNotFound, taskID)
	}
	if err != nil {
		return Letter{}, err
	}
	return decodeLetter(body, replayed)
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]Letter, error) {
	query, args := buildListQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Letter
	for rows.Next() {
		var body []byte
		var replayed *time.Time
		if err := rows.Scan(&body, &replayed); err != nil {
			return nil, err
		}
		l, err := decodeLetter(body, replayed)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) MarkReplayed(ctx context.Context, taskID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE herald.dead_letters SET replayed_at=$2 WHERE task_id=$1`,
		taskID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrLetterNotFound, taskID)
	}
	return nil
}

func buildListQuery(f Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT letter, replayed_at FROM herald.dead_letters`)
	var conds []string
	var args []any
	add := func(col, val string) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if f.Channel != "" {
		add("channel", f.Channel)
	}
	if f.EventType != "" {
		add("event_type", f.EventType)
	}
	if f.State != "" {
		add("state", f.State)
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	return b.String(), args
}

func decodeLetter(body []byte, replayed *time.Time) (Letter, error) {
	var l Letter
	if err := json.Unmarshal(body, &l); err != nil {
		return Letter{}, fmt.Errorf("decode letter: %w", err)
	}
	if replayed != nil {
		l.ReplayedAt = replayed.UTC().Format(time.RFC3339Nano)
	}
	return l, nil
}
