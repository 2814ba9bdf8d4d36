package ingest

import "fmt"

// PolicyFetchError reports a failed robots.txt retrieval. It is non-fatal:
// callers fall back to a conservative default policy instead of blocking
// ingestion.
type PolicyFetchError struct {
	Host string
	Err  error
}

func (e *PolicyFetchError) Error() string {
	return fmt.Sprintf("fetch robots policy for %s: %v", e.Host, e.Err)
}

func (e *PolicyFetchError) Unwrap() error { return e.Err }
