// Package memory provides a process-local implementation of the task,
// history, comment and outbox stores. It backs `serve --in-memory` and the
// service tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskflow/internal/domain"
)

// Store holds all state. Transactions are serialized and roll back by
// restoring a snapshot taken when they began.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	tasks    map[string]*domain.Task
	history  map[string][]*domain.AuditRecord
	comments map[string][]*domain.Comment
	outbox   []*domain.OutboxEvent

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		tasks:    make(map[string]*domain.Task),
		history:  make(map[string][]*domain.AuditRecord),
		comments: make(map[string][]*domain.Comment),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tasks returns the task store view.
func (s *Store) Tasks() *TaskStore { return &TaskStore{s: s} }

// History returns the audit store view.
func (s *Store) History() *HistoryStore { return &HistoryStore{s: s} }

// Comments returns the comment store view.
func (s *Store) Comments() *CommentStore { return &CommentStore{s: s} }

// Outbox returns the outbox store view.
func (s *Store) Outbox() *OutboxStore { return &OutboxStore{s: s} }

type snapshot struct {
	tasks    map[string]*domain.Task
	history  map[string][]*domain.AuditRecord
	comments map[string][]*domain.Comment
	outbox   []*domain.OutboxEvent
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		tasks:    make(map[string]*domain.Task, len(s.tasks)),
		history:  make(map[string][]*domain.AuditRecord, len(s.history)),
		comments: make(map[string][]*domain.Comment, len(s.comments)),
		outbox:   make([]*domain.OutboxEvent, 0, len(s.outbox)),
	}
	for id, t := range s.tasks {
		snap.tasks[id] = t.Clone()
	}
	// Records and comments are never modified after insert.
	maps.Copy(snap.history, s.history)
	for id, records := range snap.history {
		snap.history[id] = slices.Clone(records)
	}
	maps.Copy(snap.comments, s.comments)
	for id, list := range snap.comments {
		snap.comments[id] = slices.Clone(list)
	}
	for _, e := range s.outbox {
		snap.outbox = append(snap.outbox, cloneEvent(e))
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = snap.tasks
	s.history = snap.history
	s.comments = snap.comments
	s.outbox = snap.outbox
}

// InTx runs fn with exclusive write access. Any error rolls back every
// change fn made. The pgx.Tx handed to fn is always nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func cloneEvent(e *domain.OutboxEvent) *domain.OutboxEvent {
	c := *e
	c.Payload = slices.Clone(e.Payload)
	if e.PublishedAt != nil {
		p := *e.PublishedAt
		c.PublishedAt = &p
	}
	return &c
}

// paginate returns the [offset, offset+limit) window of items.
func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(items[offset:end])
}
