package fetch

import (
	"math/rand/v2"
	"net/http"
)

// DefaultUserAgents is the browser pool used when the config provides none.
// Rotation spreads load fingerprints; it does not bypass access controls.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// randomHeaders builds a realistic browser header set with a user agent drawn
// pseudo-randomly from the pool.
func randomHeaders(agents []string) http.Header {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	h := http.Header{}
	h.Set("User-Agent", agents[rand.IntN(len(agents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	h.Set("DNT", "1")
	return h
}
