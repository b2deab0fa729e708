package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
)

// HistoryStore is the in-memory audit store.
type HistoryStore struct {
	s *Store
}

func (r *HistoryStore) Create(_ context.Context, _ pgx.Tx, record *domain.AuditRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[record.TaskID]; !ok {
		return fmt.Errorf("create task history: %w", domain.ErrTaskNotFound)
	}

	record.ID = uuid.NewString()
	record.CreatedAt = r.s.now().UTC()
	stored := *record
	r.s.history[record.TaskID] = append(r.s.history[record.TaskID], &stored)
	return nil
}

// ListByTaskID returns records newest first.
func (r *HistoryStore) ListByTaskID(
	_ context.Context,
	taskID string,
	limit, offset int,
) ([]*domain.AuditRecord, int, error) {
	r.s.mu.RLock()
	records := slices.Clone(r.s.history[taskID])
	r.s.mu.RUnlock()

	slices.Reverse(records)
	page := paginate(records, limit, offset)
	for i, rec := range page {
		c := *rec
		page[i] = &c
	}
	return page, len(records), nil
}

// CommentStore is the in-memory comment store.
type CommentStore struct {
	s *Store
}

func (r *CommentStore) Create(_ context.Context, _ pgx.Tx, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[comment.TaskID]; !ok {
		return fmt.Errorf("create comment: %w", domain.ErrTaskNotFound)
	}

	comment.ID = uuid.NewString()
	comment.CreatedAt = r.s.now().UTC()
	stored := *comment
	r.s.comments[comment.TaskID] = append(r.s.comments[comment.TaskID], &stored)
	return nil
}

// ListByTaskID returns comments oldest first.
func (r *CommentStore) ListByTaskID(
	_ context.Context,
	taskID string,
	limit, offset int,
) ([]*domain.Comment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.comments[taskID]
	page := paginate(all, limit, offset)
	for i, c := range page {
		cp := *c
		page[i] = &cp
	}
	return page, len(all), nil
}

// OutboxStore is the in-memory notification outbox.
type OutboxStore struct {
	s *Store
}

func (r *OutboxStore) Enqueue(_ context.Context, _ pgx.Tx, kind domain.EventKind, payload []byte) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	event := &domain.OutboxEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       slices.Clone(payload),
		Status:        domain.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	r.s.outbox = append(r.s.outbox, event)
	return event.ID, nil
}

// ClaimDue returns up to limit pending events whose next attempt is due,
// oldest first. Callers hold the store transaction, so no row locking is needed.
func (r *OutboxStore) ClaimDue(_ context.Context, _ pgx.Tx, limit int) ([]*domain.OutboxEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := r.s.now()
	var due []*domain.OutboxEvent
	for _, e := range r.s.outbox {
		if len(due) >= limit {
			break
		}
		if e.Status == domain.OutboxPending && !e.NextAttemptAt.After(now) {
			due = append(due, cloneEvent(e))
		}
	}
	return due, nil
}

func (r *OutboxStore) MarkPublished(_ context.Context, _ pgx.Tx, id string) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		published := r.s.now().UTC()
		e.Status = domain.OutboxPublished
		e.Attempts++
		e.LastError = ""
		e.PublishedAt = &published
	})
}

func (r *OutboxStore) MarkFailed(
	_ context.Context,
	_ pgx.Tx,
	id string,
	lastErr string,
	nextAttemptAt time.Time,
	dead bool,
) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.Attempts++
		e.LastError = lastErr
		e.NextAttemptAt = nextAttemptAt.UTC()
		if dead {
			e.Status = domain.OutboxDead
		}
	})
}

// Events returns a copy of every outbox entry in insertion order.
func (r *OutboxStore) Events() []*domain.OutboxEvent {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	events := make([]*domain.OutboxEvent, 0, len(r.s.outbox))
	for _, e := range r.s.outbox {
		events = append(events, cloneEvent(e))
	}
	return events
}

func (r *OutboxStore) update(id string, fn func(e *domain.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID == id {
			fn(e)
			return nil
		}
	}
	return fmt.Errorf("outbox event %s: %w", id, domain.ErrNotFound)
}
