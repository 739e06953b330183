// Package publisher delivers audit events to a store, synchronously by
// default or through a buffered channel when async mode is enabled.
package publisher

import (
	"context"
	"sync"

	audit "authgate/pkg/platform/audit"
)

// Store is the sink the publisher writes to.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	ListByOrganization(ctx context.Context, orgID string) ([]audit.Event, error)
}

// Publisher emits audit events. In async mode Emit never blocks the request
// path; events are drained by a single background worker and flushed on Close.
type Publisher struct {
	store Store

	async chan audit.Event
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async delivery with the given channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.async = make(chan audit.Event, size)
		}
	}
}

// NewPublisher constructs a Publisher over the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.async {
		// Delivery failures are swallowed: audit must never fail a request.
		_ = p.store.Append(context.Background(), event)
	}
}

// Emit publishes one event. In sync mode the store error is returned; in
// async mode Emit drops the event if the buffer is full rather than blocking.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.async != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return nil
		}
		select {
		case p.async <- event:
		default:
		}
		return nil
	}
	return p.store.Append(ctx, event)
}

// List returns events recorded for an organization.
func (p *Publisher) List(ctx context.Context, orgID string) ([]audit.Event, error) {
	return p.store.ListByOrganization(ctx, orgID)
}

// Close drains pending async events and stops the worker.
func (p *Publisher) Close() {
	if p.async == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.async)
	p.mu.Unlock()
	p.wg.Wait()
}
