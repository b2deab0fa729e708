package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/metrics"
	"github.com/sethvargo/go-retry"
)

// TxRunner runs fn inside one storage transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// OutboxStore is the relay's view of the outbox.
type OutboxStore interface {
	ClaimDue(ctx context.Context, tx pgx.Tx, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id string) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id string, lastErr string, nextAttemptAt time.Time, dead bool) error
}

// RelayConfig tunes polling and delivery.
type RelayConfig struct {
	Interval       time.Duration
	BatchSize      int
	PublishTimeout time.Duration
	// PublishRetries is how many extra in-process attempts one publish gets.
	PublishRetries uint64
	RetryBase      time.Duration
	// MaxAttempts is the number of failed deliveries after which an event is dead.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultRelayConfig returns the relay defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:       2 * time.Second,
		BatchSize:      50,
		PublishTimeout: 3 * time.Second,
		PublishRetries: 2,
		RetryBase:      50 * time.Millisecond,
		MaxAttempts:    10,
		BackoffBase:    time.Second,
		BackoffMax:     5 * time.Minute,
	}
}

// Relay moves committed outbox events to a Publisher. Delivery is at-least-once.
type Relay struct {
	txRunner  TxRunner
	store     OutboxStore
	publisher Publisher
	cfg       RelayConfig
	kick      chan struct{}
	now       func() time.Time
}

// NewRelay creates a Relay. Zero config fields take their defaults.
func NewRelay(txRunner TxRunner, store OutboxStore, publisher Publisher, cfg RelayConfig) *Relay {
	defaults := DefaultRelayConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaults.RetryBase
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaults.BackoffMax
	}

	return &Relay{
		txRunner:  txRunner,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		kick:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Kick wakes the relay without waiting for the next tick. It never blocks.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.Info("outbox relay started",
		"interval", r.cfg.Interval,
		"batch_size", r.cfg.BatchSize,
	)

	for {
		r.drain(ctx)

		select {
		case <-ctx.Done():
			slog.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		case <-r.kick:
		}
	}
}

// drain processes batches until one comes back short.
func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.RunOnce(ctx)
		if err != nil {
			slog.Error("outbox relay batch failed", "error", err)
			return
		}
		if n < r.cfg.BatchSize {
			return
		}
	}
}

// RunOnce claims one batch of due events and attempts each. It returns the
// number of events claimed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var claimed int
	err := r.txRunner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		events, err := r.store.ClaimDue(ctx, tx, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("claim outbox events: %w", err)
		}
		claimed = len(events)

		for _, event := range events {
			if err := r.deliver(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (r *Relay) deliver(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	start := time.Now()
	err := r.publish(ctx, event)
	metrics.OutboxPublishDuration.WithLabelValues(string(event.Kind)).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.OutboxPublishedTotal.WithLabelValues(string(event.Kind)).Inc()
		return r.store.MarkPublished(ctx, tx, event.ID)
	}

	attempts := event.Attempts + 1
	dead := attempts >= r.cfg.MaxAttempts || errors.Is(err, ErrUndeliverable)
	outcome := "retry"
	if dead {
		outcome = "dead"
	}
	metrics.OutboxFailuresTotal.WithLabelValues(string(event.Kind), outcome).Inc()

	slog.Warn("failed to publish notification",
		"event_id", event.ID,
		"kind", event.Kind,
		"attempts", attempts,
		"dead", dead,
		"error", err,
	)

	next := r.now().Add(r.backoff(attempts))
	return r.store.MarkFailed(ctx, tx, event.ID, err.Error(), next, dead)
}

// publish makes a few quick attempts, each under its own timeout.
func (r *Relay) publish(ctx context.Context, event *domain.OutboxEvent) error {
	backoff := retry.WithMaxRetries(r.cfg.PublishRetries,
		retry.WithJitter(r.cfg.RetryBase/2, retry.NewExponential(r.cfg.RetryBase)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
		defer cancel()

		err := r.publisher.Publish(attemptCtx, event.Kind, event.Payload)
		if err == nil || errors.Is(err, ErrUndeliverable) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// backoff returns the delay before the next relay pass may retry an event
// that has failed attempts times.
func (r *Relay) backoff(attempts int) time.Duration {
	d := r.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= r.cfg.BackoffMax {
			return r.cfg.BackoffMax
		}
	}
	return d
}
