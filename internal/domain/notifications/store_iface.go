package notifications

import (
	"context"
	"time"

	"employeehub/internal/domain/training"
	"employeehub/internal/platform/db"
)

type StoreAPI interface {
	WasSentSince(ctx context.Context, trainingRecordID, email, notificationType string, since time.Time) (bool, error)
	InsertLog(ctx context.Context, entry LogEntry) error
	AdminEmails(ctx context.Context) ([]string, error)
	ListLog(ctx context.Context, filter LogFilter) ([]LogEntry, int, error)
	ClearLog(ctx context.Context, hook func(q db.Querier, deleted int64) error) (int64, error)
}

// PendingSource yields the organisation-wide training rows that need a
// notification. *training.Service satisfies it.
type PendingSource interface {
	Pending(ctx context.Context) ([]training.StatusRow, error)
}

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Locker serialises dispatch runs across instances.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context), error)
}

// JobRunner records a run in job_runs around fn.
type JobRunner interface {
	RunNow(ctx context.Context, jobType, actorID string, fn func(context.Context) (any, error)) (any, error)
}
