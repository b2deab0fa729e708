package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskflow/internal/domain"
)

// CommentRepository handles database operations for comments.
type CommentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

// Create inserts a comment within the transaction and fills ID and CreatedAt.
func (r *CommentRepository) Create(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error {
	query, args, err := psql.
		Insert("comments").
		Columns("task_id", "author_id", "content").
		Values(comment.TaskID, comment.AuthorID, comment.Content).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}

	return nil
}

// ListByTaskID retrieves a page of comments for a task, oldest first, with the total count.
func (r *CommentRepository) ListByTaskID(
	ctx context.Context,
	taskID string,
	limit, offset int,
) ([]*domain.Comment, int, error) {
	query, args, err := psql.
		Select("id", "task_id", "author_id", "content", "created_at").
		From("comments").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query comments: %w", err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Comment, error) {
		var c domain.Comment
		err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt)
		return &c, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan comments: %w", err)
	}

	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE task_id = $1`, taskID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	return comments, total, nil
}
