// Package notify delivers outbox events to the notification service.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskflow/internal/domain"
)

// maxNotifyPayload is the largest payload Postgres accepts in NOTIFY.
const maxNotifyPayload = 8000

// ErrUndeliverable marks events that no amount of retrying will deliver.
var ErrUndeliverable = errors.New("undeliverable event")

// Publisher hands one event to the notification service.
type Publisher interface {
	Publish(ctx context.Context, kind domain.EventKind, payload []byte) error
}

// PGNotifyPublisher publishes events with pg_notify on one channel per event kind.
type PGNotifyPublisher struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewPGNotifyPublisher creates a publisher whose channels are named prefix + kind,
// with dots replaced by underscores (task.updated becomes taskflow_task_updated).
func NewPGNotifyPublisher(pool *pgxpool.Pool, prefix string) *PGNotifyPublisher {
	return &PGNotifyPublisher{pool: pool, prefix: prefix}
}

// Channel returns the LISTEN channel for kind.
func (p *PGNotifyPublisher) Channel(kind domain.EventKind) string {
	return strings.ReplaceAll(p.prefix+string(kind), ".", "_")
}

func (p *PGNotifyPublisher) Publish(ctx context.Context, kind domain.EventKind, payload []byte) error {
	if len(payload) >= maxNotifyPayload {
		return fmt.Errorf("%w: %s payload is %d bytes", ErrUndeliverable, kind, len(payload))
	}

	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, p.Channel(kind), string(payload)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", kind, err)
	}
	return nil
}

// LogPublisher writes events to the structured log. Used for local runs.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher. A nil logger means slog.Default().
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, kind domain.EventKind, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("%w: %s payload is not valid JSON", ErrUndeliverable, kind)
	}
	p.logger.InfoContext(ctx, "notification published",
		"kind", kind,
		"event", json.RawMessage(payload),
	)
	return nil
}
