package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtlprog/taskflow/internal/domain"
	"github.com/mtlprog/taskflow/internal/repository/memory"
	"github.com/stretchr/testify/suite"
)

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	got      []string
}

func (p *fakePublisher) Publish(_ context.Context, kind domain.EventKind, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.failures > 0 {
		p.failures--
		return p.err
	}
	p.got = append(p.got, string(kind)+" "+string(payload))
	return nil
}

type RelayTestSuite struct {
	suite.Suite
	store     *memory.Store
	publisher *fakePublisher
	relay     *Relay
}

func (s *RelayTestSuite) SetupTest() {
	s.store = memory.New()
	s.publisher = &fakePublisher{err: errors.New("broker unavailable")}
	s.relay = s.newRelay(RelayConfig{})
}

func (s *RelayTestSuite) newRelay(cfg RelayConfig) *Relay {
	cfg.RetryBase = time.Millisecond
	return NewRelay(s.store, s.store.Outbox(), s.publisher, cfg)
}

func (s *RelayTestSuite) enqueue(kind domain.EventKind, payload string) string {
	id, err := s.store.Outbox().Enqueue(context.Background(), nil, kind, []byte(payload))
	s.Require().NoError(err)
	return id
}

func (s *RelayTestSuite) event(id string) *domain.OutboxEvent {
	for _, e := range s.store.Outbox().Events() {
		if e.ID == id {
			return e
		}
	}
	s.FailNow("event not found", id)
	return nil
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelayTestSuite))
}

func (s *RelayTestSuite) TestRunOnce_PublishesInOrder() {
	first := s.enqueue(domain.EventTaskAssigned, `{"n":1}`)
	second := s.enqueue(domain.EventTaskComment, `{"n":2}`)

	n, err := s.relay.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal([]string{`task.assigned {"n":1}`, `task.comment {"n":2}`}, s.publisher.got)

	for _, id := range []string{first, second} {
		e := s.event(id)
		s.Equal(domain.OutboxPublished, e.Status)
		s.Equal(1, e.Attempts)
		s.NotNil(e.PublishedAt)
	}

	n, err = s.relay.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(n, "published events are not claimed again")
}

func (s *RelayTestSuite) TestRunOnce_RetriesInProcess() {
	s.publisher.failures = 2
	id := s.enqueue(domain.EventTaskUpdated, `{}`)

	_, err := s.relay.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(3, s.publisher.calls)
	s.Equal(domain.OutboxPublished, s.event(id).Status)
}

func (s *RelayTestSuite) TestRunOnce_BacksOffAfterFailure() {
	s.publisher.failures = 100
	id := s.enqueue(domain.EventTaskUpdated, `{}`)

	_, err := s.relay.RunOnce(context.Background())
	s.Require().NoError(err, "publish failures do not fail the batch")

	e := s.event(id)
	s.Equal(domain.OutboxPending, e.Status)
	s.Equal(1, e.Attempts)
	s.Equal("broker unavailable", e.LastError)
	s.True(e.NextAttemptAt.After(time.Now()))

	n, err := s.relay.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(n, "event is not due yet")
}

func (s *RelayTestSuite) TestRunOnce_ParksDeadEvents() {
	s.publisher.failures = 100
	s.relay = s.newRelay(RelayConfig{MaxAttempts: 1})
	id := s.enqueue(domain.EventTaskUpdated, `{}`)

	_, err := s.relay.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(domain.OutboxDead, s.event(id).Status)
}

func (s *RelayTestSuite) TestRunOnce_UndeliverableIsNotRetried() {
	s.publisher.failures = 1
	s.publisher.err = ErrUndeliverable
	id := s.enqueue(domain.EventTaskUpdated, `{}`)

	_, err := s.relay.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, s.publisher.calls)
	s.Equal(domain.OutboxDead, s.event(id).Status)
}

func (s *RelayTestSuite) TestRun_DrainsOnKickAndStops() {
	s.relay = s.newRelay(RelayConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	id := s.enqueue(domain.EventTaskComment, `{}`)
	s.relay.Kick()
	s.relay.Kick()

	s.Eventually(func() bool {
		return s.event(id).Status == domain.OutboxPublished
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("relay did not stop")
	}
}

func (s *RelayTestSuite) TestBackoff() {
	r := s.newRelay(RelayConfig{BackoffBase: time.Second, BackoffMax: 10 * time.Second})
	s.Equal(time.Second, r.backoff(1))
	s.Equal(2*time.Second, r.backoff(2))
	s.Equal(8*time.Second, r.backoff(4))
	s.Equal(10*time.Second, r.backoff(5))
	s.Equal(10*time.Second, r.backoff(50))
}

func (s *RelayTestSuite) TestLogPublisher() {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	s.Require().NoError(p.Publish(context.Background(), domain.EventTaskAssigned, []byte(`{"recipients":["u1"]}`)))
	s.Contains(buf.String(), `"kind":"task.assigned"`)
	s.Contains(buf.String(), `"recipients":["u1"]`)

	err := p.Publish(context.Background(), domain.EventTaskAssigned, []byte(`{`))
	s.ErrorIs(err, ErrUndeliverable)
}

func (s *RelayTestSuite) TestPGNotifyPublisher_Limits() {
	p := NewPGNotifyPublisher(nil, "taskflow.")
	s.Equal("taskflow_task_updated", p.Channel(domain.EventTaskUpdated))

	err := p.Publish(context.Background(), domain.EventTaskUpdated, []byte(strings.Repeat("x", maxNotifyPayload)))
	s.ErrorIs(err, ErrUndeliverable)
}
