// Package jobs is the optional durable job queue: when JOB_BROKER_URL
// is configured, POST /ingest requests are persisted to PostgreSQL
// instead of running inline, so pending work survives a restart. The
// queue also accepts heal jobs, which the worker runs as a healing
// pass. A job still in the running state when the process stops is not
// claimed again: Dequeue only picks pending jobs.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Kind identifies what a job asks the orchestrator to do.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindHeal   Kind = "heal"
)

// Status is a job's place in its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one queued unit of work.
type Job struct {
	ID          uuid.UUID
	Kind        Kind
	Target      string
	Status      Status
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// Schema is the jobs table's bun mapping.
type Schema struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Kind        string     `bun:"kind,notnull"`
	Target      string     `bun:"target,notnull"`
	Status      string     `bun:"status,notnull,default:'pending'"`
	Attempts    int        `bun:"attempts,notnull,default:0"`
	LastError   *string    `bun:"last_error,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	ProcessedAt *time.Time `bun:"processed_at,nullzero"`
}

// Queue is the durable job store's public surface.
type Queue struct {
	db *bun.DB
}

// Open connects to PostgreSQL and returns a ready Queue. Callers are
// expected to call (*Queue).Close when done.
func Open(databaseURL string, maxConnections int) (*Queue, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(databaseURL)))
	sqldb.SetMaxOpenConns(maxConnections)
	sqldb.SetMaxIdleConns(maxConnections / 2)
	sqldb.SetConnMaxLifetime(time.Hour)

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("jobs: open: %w", err)
	}

	return &Queue{db: db}, nil
}

// New wraps an already-connected bun.DB, for tests and callers that
// manage the connection pool themselves.
func New(db *bun.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue persists a new pending job.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, target string) (Job, error) {
	schema := &Schema{
		ID:     uuid.New().String(),
		Kind:   string(kind),
		Target: target,
		Status: string(StatusPending),
	}

	_, err := q.db.NewInsert().Model(schema).Exec(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("jobs: enqueue: %w", err)
	}

	return schemaToJob(*schema), nil
}

// Dequeue atomically claims the oldest pending job, if any, marking it
// running. Returns ok=false when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (job Job, ok bool, err error) {
	var schema Schema
	txErr := q.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		selErr := tx.NewSelect().
			Model(&schema).
			Where("status = ?", string(StatusPending)).
			Order("created_at ASC").
			Limit(1).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if selErr != nil {
			if errors.Is(selErr, sql.ErrNoRows) {
				return nil
			}
			return selErr
		}
		ok = true

		now := time.Now().UTC()
		_, updErr := tx.NewUpdate().
			Model((*Schema)(nil)).
			Where("id = ?", schema.ID).
			Set("status = ?", string(StatusRunning)).
			Set("attempts = attempts + 1").
			Set("updated_at = ?", now).
			Exec(ctx)
		return updErr
	})
	if txErr != nil {
		return Job{}, false, fmt.Errorf("jobs: dequeue: %w", txErr)
	}
	if !ok {
		return Job{}, false, nil
	}

	schema.Status = string(StatusRunning)
	return schemaToJob(schema), true, nil
}

// MarkDone records successful completion.
func (q *Queue) MarkDone(ctx context.Context, id uuid.UUID) error {
	return q.setTerminal(ctx, id, StatusDone, nil)
}

// MarkFailed records a failed attempt along with the error that caused it.
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := cause.Error()
	return q.setTerminal(ctx, id, StatusFailed, &msg)
}

func (q *Queue) setTerminal(ctx context.Context, id uuid.UUID, status Status, lastError *string) error {
	now := time.Now().UTC()
	result, err := q.db.NewUpdate().
		Model((*Schema)(nil)).
		Where("id = ?", id.String()).
		Set("status = ?", string(status)).
		Set("last_error = ?", lastError).
		Set("processed_at = ?", now).
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobs: mark %s: %w", status, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobs: mark %s: %w", status, err)
	}
	if rows == 0 {
		return fmt.Errorf("jobs: mark %s: job %s not found", status, id)
	}
	return nil
}

func schemaToJob(s Schema) Job {
	id, _ := uuid.Parse(s.ID)
	return Job{
		ID:          id,
		Kind:        Kind(s.Kind),
		Target:      s.Target,
		Status:      Status(s.Status),
		Attempts:    s.Attempts,
		LastError:   s.LastError,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		ProcessedAt: s.ProcessedAt,
	}
}
