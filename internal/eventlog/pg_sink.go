package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// Execer is the slice of pgxpool.Pool the sink needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS core_events (
	id             BIGSERIAL PRIMARY KEY,
	event_type     TEXT        NOT NULL,
	appointment_id TEXT,
	actor_id       TEXT,
	payload        JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertEventSQL = `
INSERT INTO core_events (event_type, appointment_id, actor_id, payload, created_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)`

type PgSink struct {
	db  Execer
	log *logrus.Logger
	now func() time.Time
}

func NewPgSink(db Execer, log *logrus.Logger) *PgSink {
	return &PgSink{db: db, log: log, now: time.Now}
}

// EnsureSchema creates the events table when it does not exist yet.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure core_events table: %w", err)
	}
	return nil
}

func (s *PgSink) Record(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		s.log.WithError(err).WithField("event_type", ev.Type).Warn("failed to marshal event payload")
		data = nil
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	if _, err := s.db.Exec(ctx, insertEventSQL, ev.Type, ev.AppointmentID, ev.ActorID, data, createdAt); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event_type":     ev.Type,
			"appointment_id": ev.AppointmentID,
		}).Warn("failed to insert core event")
	}
}
