package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/repository"
)

// TxRunner runs fn inside one storage transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// TaskStore is the durable keyed store for tasks.
type TaskStore interface {
	GetByID(ctx context.Context, taskID string) (*domain.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (*domain.Task, error)
	Create(ctx context.Context, tx pgx.Tx, task *domain.Task) (*domain.Task, error)
	// Update writes task if its Version still matches the stored one, then
	// advances Version and UpdatedAt on task. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, tx pgx.Tx, task *domain.Task) error
	List(ctx context.Context, filters repository.TaskListFilters) ([]*domain.Task, int, error)
	GetMemberStats(ctx context.Context, memberID string) (*repository.MemberStats, error)
}

// HistoryStore is the append-only audit store.
type HistoryStore interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.AuditRecord) error
	// ListByTaskID returns records newest first along with the total count.
	ListByTaskID(ctx context.Context, taskID string, limit, offset int) ([]*domain.AuditRecord, int, error)
}

// CommentStore persists comments by task.
type CommentStore interface {
	Create(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error
	ListByTaskID(ctx context.Context, taskID string, limit, offset int) ([]*domain.Comment, int, error)
}

// OutboxStore receives notification events inside the mutation transaction.
type OutboxStore interface {
	Enqueue(ctx context.Context, tx pgx.Tx, kind domain.EventKind, payload []byte) (string, error)
}
