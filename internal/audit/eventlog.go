// Package audit keeps an append-only log of lifecycle transitions:
// who did what to which entity, with a small JSON payload. Admins can
// read it back newest-first.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mind-engage/examhall/internal/config"
)

const (
	EventExamCreated         = "exam.created"
	EventExamDeleted         = "exam.deleted"
	EventSubmissionStarted   = "submission.started"
	EventSubmissionSubmitted = "submission.submitted"
	EventSubmissionGraded    = "submission.graded"
)

type Event struct {
	Offset    int64     `json:"offset"`
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	Actor     string    `json:"actor"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder is the write side used by the services. Recording is
// best-effort: a failed append is logged, never propagated.
type Recorder interface {
	Record(ctx context.Context, typ, key, actor string, data any)
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(dbh *sql.DB) *EventRepo { return &EventRepo{db: dbh} }

func (r *EventRepo) Record(ctx context.Context, typ, key, actor string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		typ, key, actor, string(payload), time.Now().Unix())
	if err != nil {
		config.WithContext(ctx).WithError(err).Warn("audit append failed")
	}
}

// List returns events newest-first, capped at limit.
func (r *EventRepo) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", typ, key, actor, data, created_at FROM event_log
		 ORDER BY "offset" DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e  Event
			ts int64
		)
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.Actor, &e.Data, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Nop discards events; handy in tests.
type Nop struct{}

func (Nop) Record(context.Context, string, string, string, any) {}
