package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// PageResponse is one HTTP exchange as seen by the fetcher. Status is set for
// every completed exchange, including non-2xx responses.
type PageResponse struct {
	Status  int
	Body    []byte
	Headers http.Header
}

// PageClient performs a single GET. Transport-level failures are returned as
// errors; HTTP-level failures come back as a PageResponse with the status.
type PageClient interface {
	Get(ctx context.Context, url string, headers http.Header) (PageResponse, error)
}

// CollyClient implements PageClient using a Colly collector per request.
type CollyClient struct {
	base *colly.Collector
}

// NewCollyClient builds a CollyClient with the given request timeout.
// Robots enforcement is disabled here: the robots.Policy gate runs before any
// request reaches this client.
func NewCollyClient(timeout time.Duration) *CollyClient {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.WithTransport(newHTTPTransport())
	return &CollyClient{base: c}
}

// Get executes one GET and returns the exchange. Retries happen above this
// layer, so each call clones a fresh collector.
func (c *CollyClient) Get(ctx context.Context, url string, headers http.Header) (PageResponse, error) {
	collector := c.base.Clone()

	var (
		captured PageResponse
		hookErr  error
	)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		captured = responseFrom(r)
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly routes non-2xx statuses here; the response still carries
		// the status and body we need upstream.
		if r != nil && r.StatusCode > 0 {
			captured = responseFrom(r)
			return
		}
		hookErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return PageResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		if captured.Status > 0 {
			return captured, nil
		}
		if hookErr != nil {
			return PageResponse{}, fmt.Errorf("fetch %s: %w", url, hookErr)
		}
		if visitErr != nil {
			return PageResponse{}, fmt.Errorf("visit %s: %w", url, visitErr)
		}
		return PageResponse{}, fmt.Errorf("fetch %s: no response", url)
	}
}

func responseFrom(r *colly.Response) PageResponse {
	resp := PageResponse{
		Status: r.StatusCode,
		Body:   append([]byte(nil), r.Body...),
	}
	if r.Headers != nil {
		resp.Headers = r.Headers.Clone()
	}
	return resp
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
