package ops

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hoopsight/statcrawler/internal/metrics"
)

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("healthz body = %q, want ok", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Init()
	srv := httptest.NewServer(router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Fatal("metrics body is empty")
	}
}
