package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskflow/internal/domain"
)

var outboxColumns = []string{
	"id", "kind", "payload", "status", "attempts", "last_error",
	"next_attempt_at", "created_at", "published_at",
}

// OutboxRepository stores notification events until the relay delivers them.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue writes a pending event within the mutation's transaction.
func (r *OutboxRepository) Enqueue(
	ctx context.Context,
	tx pgx.Tx,
	kind domain.EventKind,
	payload []byte,
) (string, error) {
	query, args, err := psql.
		Insert("notification_outbox").
		Columns("kind", "payload").
		Values(kind, payload).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var id string
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("enqueue outbox event: %w", err)
	}

	return id, nil
}

// ClaimDue locks up to limit pending events whose next attempt is due.
// Rows locked by another relay are skipped.
func (r *OutboxRepository) ClaimDue(ctx context.Context, tx pgx.Tx, limit int) ([]*domain.OutboxEvent, error) {
	query, args, err := psql.
		Select(outboxColumns...).
		From("notification_outbox").
		Where(sq.Eq{"status": domain.OutboxPending}).
		Where("next_attempt_at <= NOW()").
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ClaimDue query: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due outbox events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.OutboxEvent, error) {
		var e domain.OutboxEvent
		err := row.Scan(
			&e.ID,
			&e.Kind,
			&e.Payload,
			&e.Status,
			&e.Attempts,
			&e.LastError,
			&e.NextAttemptAt,
			&e.CreatedAt,
			&e.PublishedAt,
		)
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished records a successful delivery.
func (r *OutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, id string) error {
	query, args, err := psql.
		Update("notification_outbox").
		Set("status", domain.OutboxPublished).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", "").
		Set("published_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkPublished query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox event %s published: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed delivery and when to try again. Dead events
// are never picked up again.
func (r *OutboxRepository) MarkFailed(
	ctx context.Context,
	tx pgx.Tx,
	id string,
	lastErr string,
	nextAttemptAt time.Time,
	dead bool,
) error {
	status := domain.OutboxPending
	if dead {
		status = domain.OutboxDead
	}

	query, args, err := psql.
		Update("notification_outbox").
		Set("status", status).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", lastErr).
		Set("next_attempt_at", nextAttemptAt.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkFailed query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox event %s failed: %w", id, err)
	}
	return nil
}
