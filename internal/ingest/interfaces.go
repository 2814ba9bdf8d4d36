package ingest

import (
	"context"
	"time"
)

// Fetcher retrieves one page and reports the outcome as a tagged result.
// Implementations own politeness: robots consultation, rate limiting, retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// Sink durably writes a dataset to one destination. A sink failure must be
// reported through the error return only; sinks never panic the run.
type Sink interface {
	Name() string
	Write(ctx context.Context, ds Dataset) (SinkConfirmation, error)
}

// Publisher pushes run-completion events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event RunEvent) error
}

// Clock returns the current time (seam for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
