package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskflow/internal/domain"
)

// HistoryRepository handles database operations for task history records.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Create appends a history record within the transaction.
func (r *HistoryRepository) Create(
	ctx context.Context,
	tx pgx.Tx,
	record *domain.AuditRecord,
) error {
	changes, err := domain.EncodeChange(record.Change)
	if err != nil {
		return err
	}

	query, args, err := psql.
		Insert("task_history").
		Columns("task_id", "action", "changes", "actor_id").
		Values(record.TaskID, record.Action, changes, record.ActorID).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create task history: %w", err)
	}

	return nil
}

// ListByTaskID retrieves a page of history for a task, newest first, with the total count.
func (r *HistoryRepository) ListByTaskID(
	ctx context.Context,
	taskID string,
	limit, offset int,
) ([]*domain.AuditRecord, int, error) {
	query, args, err := psql.
		Select("id", "task_id", "action", "changes", "actor_id", "created_at").
		From("task_history").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("seq DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query task history: %w", err)
	}
	defer rows.Close()

	records := []*domain.AuditRecord{}
	for rows.Next() {
		var record domain.AuditRecord
		var changes []byte
		err := rows.Scan(
			&record.ID,
			&record.TaskID,
			&record.Action,
			&changes,
			&record.ActorID,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task history: %w", err)
		}

		record.Change, err = domain.DecodeChange(record.Action, changes)
		if err != nil {
			return nil, 0, fmt.Errorf("history record %s: %w", record.ID, err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}

	countQuery, countArgs, err := psql.
		Select("COUNT(*)").
		From("task_history").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count task history: %w", err)
	}

	return records, total, nil
}
