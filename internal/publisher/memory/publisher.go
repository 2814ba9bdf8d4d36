// Package memory provides an in-memory run-event publisher for development
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/hoopsight/statcrawler/internal/ingest"
)

// Publisher records published events in memory.
type Publisher struct {
	mu     sync.Mutex
	events []ingest.RunEvent
}

// New creates a Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the event.
func (p *Publisher) Publish(_ context.Context, event ingest.RunEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []ingest.RunEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ingest.RunEvent(nil), p.events...)
}
