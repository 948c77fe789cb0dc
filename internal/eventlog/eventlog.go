// Package eventlog appends attempt lifecycle events to the event_log table.
// Append-only, best-effort: a failed append is logged by callers and never
// blocks the exam flow.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Type string

const (
	TypeAttemptCreated   Type = "AttemptCreated"
	TypeAttemptPaused    Type = "AttemptPaused"
	TypeSessionResumed   Type = "SessionResumed"
	TypeSessionForced    Type = "SessionForceResumed"
	TypeAttemptSubmitted Type = "AttemptSubmitted"
	TypeAttemptTimedOut  Type = "AttemptTimedOut"
)

// Sink is what the lifecycle manager writes to. Repo is the SQL
// implementation; Nop drops everything (tests, memory mode).
type Sink interface {
	Append(ctx context.Context, typ Type, key string, data any) error
}

type Repo struct {
	db     *sql.DB
	siteID string
}

func NewRepo(db *sql.DB, siteID string) *Repo {
	if siteID == "" {
		siteID = "local"
	}
	return &Repo{db: db, siteID: siteID}
}

func (r *Repo) Append(ctx context.Context, typ Type, key string, data any) error {
	payload := "{}"
	if data != nil {
		buf, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(buf)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, string(typ), key, payload, time.Now().Unix())
	return err
}

type Nop struct{}

func (Nop) Append(context.Context, Type, string, any) error { return nil }
