package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
)

// Publisher emits audit events to a Store, either synchronously or
// through a bounded async buffer. When the buffer is full events are
// dropped rather than blocking the request path.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking, persisting events from a
// background goroutine through a buffer of the given size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records the event. In sync mode the store error is returned; in
// async mode Emit never blocks and a full buffer drops the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event", "action", event.Action, "record_id", event.RecordID)
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, recordID id.RecordID) ([]audit.Event, error) {
	return p.store.ListByRecord(ctx, recordID)
}

// Close drains the async buffer and stops the background goroutine.
// Safe to call in sync mode and more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("append audit event", "action", event.Action, "error", err)
		}
	}
}
