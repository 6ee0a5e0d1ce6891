package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketflow/internal/identity"
	"ticketflow/internal/oracle"
	"ticketflow/internal/ticket"
	"ticketflow/pkg/platform/sentinel"
)

// ValidationResult is the triple handed to the store once a message has a
// verified subject and a terminal oracle verdict.
type ValidationResult struct {
	Event    ticket.Event
	Identity identity.Identity
	Verdict  oracle.Verdict
}

// AnomalyError marks persistence failures that retrying will not fix, such as
// a constraint violation after the upsert logic ran as designed. The pipeline
// logs these for operator attention and advances past the message.
type AnomalyError struct {
	Err error
}

func (e *AnomalyError) Error() string {
	return "persistence anomaly: " + e.Err.Error()
}

func (e *AnomalyError) Unwrap() error {
	return e.Err
}

// ResultStore persists validation outcomes. Each Save runs in one transaction
// on a short-lived pool lease: the subject upsert and the validation record
// insert are visible together or not at all.
//
// A redelivered message writes a second validation record on purpose; the
// table is an append-only trail of attempts and the subject upsert absorbs
// the duplication (one row per subject, last_seen_at advances).
type ResultStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

const upsertSubjectQuery = `
	INSERT INTO users (firebase_uid, name, first_seen_at, last_seen_at)
	VALUES ($1, $2, NOW(), NOW())
	ON CONFLICT (firebase_uid)
	DO UPDATE SET
		name = COALESCE(EXCLUDED.name, users.name),
		last_seen_at = NOW()
`

const insertValidationQuery = `
	INSERT INTO ticket_validations (
		ticket_number,
		validated_by_uid,
		validation_status,
		validation_details,
		ticket_name,
		event_name,
		validated_at
	) VALUES ($1, $2, $3, $4, $5, $6, NOW())
`

// Save upserts the subject and appends the validation record atomically.
func (s *ResultStore) Save(ctx context.Context, res ValidationResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op; this keeps the lease
	// released on every exit path.
	defer tx.Rollback(ctx)

	name := res.Event.Name
	if name == "" {
		name = res.Identity.DisplayName()
	}
	if _, err := tx.Exec(ctx, upsertSubjectQuery, res.Identity.SubjectID, nullIfEmpty(name)); err != nil {
		return classify(fmt.Errorf("upsert subject %s: %w", res.Identity.SubjectID, err))
	}

	var eventName *string
	if res.Verdict.Status == oracle.StatusValidated && res.Verdict.Data != nil {
		eventName = &res.Verdict.Data.Event
	}
	_, err = tx.Exec(ctx, insertValidationQuery,
		res.Event.TicketNumber,
		res.Identity.SubjectID,
		string(res.Verdict.Status),
		res.Verdict.Details,
		nullIfEmpty(res.Event.TicketName),
		eventName,
	)
	if err != nil {
		return classify(fmt.Errorf("insert validation record for ticket %s: %w", res.Event.TicketNumber, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit validation result: %w", err)
	}
	return nil
}

// classify wraps integrity violations as anomalies; everything else stays a
// plain (retriable) error.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return &AnomalyError{Err: err}
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SubjectRecord is the persisted view of a verified subject.
type SubjectRecord struct {
	SubjectID   string
	DisplayName string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// FindSubject loads a subject row, mainly for tests and operator tooling.
// An unknown subject reports sentinel.ErrNotFound.
func (s *ResultStore) FindSubject(ctx context.Context, subjectID string) (*SubjectRecord, error) {
	var rec SubjectRecord
	var name *string
	err := s.pool.QueryRow(ctx,
		`SELECT firebase_uid, name, first_seen_at, last_seen_at FROM users WHERE firebase_uid = $1`,
		subjectID,
	).Scan(&rec.SubjectID, &name, &rec.FirstSeenAt, &rec.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find subject %s: %w", subjectID, err)
	}
	if name != nil {
		rec.DisplayName = *name
	}
	return &rec, nil
}

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS users (
		firebase_uid  TEXT PRIMARY KEY,
		name          TEXT,
		first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS ticket_validations (
		validation_id      BIGSERIAL PRIMARY KEY,
		ticket_number      TEXT NOT NULL,
		validated_by_uid   TEXT NOT NULL REFERENCES users (firebase_uid),
		validation_status  TEXT NOT NULL,
		validation_details TEXT,
		ticket_name        TEXT,
		event_name         TEXT,
		validated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_ticket_validations_ticket
		ON ticket_validations (ticket_number, validated_at);
`

// EnsureSchema creates the tables this store writes to.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
