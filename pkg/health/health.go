package health

import (
	"context"
	"time"
)

// Result represents the outcome of a probe
type Result struct {
	Healthy    bool
	StatusCode int
	Message    string
	CheckedAt  time.Time
	Duration   time.Duration
}

// Prober performs a single synthetic request against a URL. Implementations
// never retry; one call is one request.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// ProbeURL joins a route host and health path into a probe URL
func ProbeURL(scheme, host, path string) string {
	if scheme == "" {
		scheme = "https"
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return scheme + "://" + host + path
}
