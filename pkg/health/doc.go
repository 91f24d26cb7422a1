/*
Package health provides the HTTP probe used to verify that a deployed model
is reachable through its public route.

# Architecture

	┌──────────────────────────────────────────────┐
	│               Prober interface               │
	│   Probe(ctx, url) Result                     │
	└──────────────────────┬───────────────────────┘
	                       │
	                       ▼
	┌──────────────────────────────────────────────┐
	│                 HTTPProber                   │
	│   resty client, timeout = run timeout        │
	│   retries disabled (one request per probe)   │
	│   healthy iff status in [min, max]           │
	└──────────────────────────────────────────────┘

The orchestrator resolves the route host, builds the URL with ProbeURL and
issues exactly one probe. There is no retry loop here: a failed probe after
a successful rollout is a deployment-blocking condition and is reported as
such by the caller.

# Usage

	prober := health.NewHTTPProber(10 * time.Minute)
	result := prober.Probe(ctx, health.ProbeURL("https", host, "/health"))
	if !result.Healthy {
		return fmt.Errorf("health check failed: %s", result.Message)
	}

# Status Codes

The default accepted range is 200-299. WithStatusRange narrows or widens it
for model servers that answer health checks with a different code.
*/
package health
