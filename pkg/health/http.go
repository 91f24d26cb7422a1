package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"
)

// HTTPProber performs HTTP GET health probes
type HTTPProber struct {
	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 299)
	ExpectedStatusMax int

	// Headers are custom HTTP headers to include in the request
	Headers map[string]string

	client *resty.Client
}

// NewHTTPProber creates a prober whose requests are bounded by timeout
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 299,
		Headers:           make(map[string]string),
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0),
	}
}

// Probe issues one GET to url
func (p *HTTPProber) Probe(ctx context.Context, url string) Result {
	start := time.Now()

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeaders(p.Headers).
		Get(url)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	code := resp.StatusCode()
	healthy := code >= p.ExpectedStatusMin && code <= p.ExpectedStatusMax

	message := fmt.Sprintf("HTTP %d %s", code, http.StatusText(code))
	if !healthy {
		message = fmt.Sprintf("%s (expected %d-%d)", message, p.ExpectedStatusMin, p.ExpectedStatusMax)
	}

	return Result{
		Healthy:    healthy,
		StatusCode: code,
		Message:    message,
		CheckedAt:  start,
		Duration:   time.Since(start),
	}
}

// WithHeader adds a custom HTTP header
func (p *HTTPProber) WithHeader(key, value string) *HTTPProber {
	p.Headers[key] = value
	return p
}

// WithStatusRange sets the expected status code range
func (p *HTTPProber) WithStatusRange(min, max int) *HTTPProber {
	p.ExpectedStatusMin = min
	p.ExpectedStatusMax = max
	return p
}
