package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProber_HealthyEndpoint(t *testing.T) {
	// Create test HTTP server that returns 200 OK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	}))
	defer server.Close()

	prober := NewHTTPProber(5 * time.Second)
	result := prober.Probe(context.Background(), server.URL+"/health")

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.StatusCode)
	}
}

func TestHTTPProber_UnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	prober := NewHTTPProber(5 * time.Second)
	result := prober.Probe(context.Background(), server.URL+"/health")

	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPProber_SingleShot(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := NewHTTPProber(5 * time.Second)
	_ = prober.Probe(context.Background(), server.URL)

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected exactly one request, got %d", got)
	}
}

func TestHTTPProber_CustomStatusRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	prober := NewHTTPProber(5*time.Second).WithStatusRange(204, 204)
	result := prober.Probe(context.Background(), server.URL)

	if !result.Healthy {
		t.Errorf("Expected healthy for 204 status, got unhealthy: %s", result.Message)
	}
}

func TestHTTPProber_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "modelctl" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewHTTPProber(5*time.Second).WithHeader("X-Probe", "modelctl")
	result := prober.Probe(context.Background(), server.URL)

	if !result.Healthy {
		t.Errorf("Expected healthy with custom header, got unhealthy: %s", result.Message)
	}
}

func TestHTTPProber_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewHTTPProber(50 * time.Millisecond)
	result := prober.Probe(context.Background(), server.URL)

	if result.Healthy {
		t.Errorf("Expected unhealthy due to timeout, got healthy: %s", result.Message)
	}
}

func TestHTTPProber_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := NewHTTPProber(5 * time.Second)
	result := prober.Probe(ctx, server.URL)

	if result.Healthy {
		t.Errorf("Expected unhealthy due to cancelled context, got healthy: %s", result.Message)
	}
}

func TestProbeURL(t *testing.T) {
	tests := []struct {
		scheme, host, path string
		want               string
	}{
		{"https", "llama.apps.example.com", "/health", "https://llama.apps.example.com/health"},
		{"", "sd.apps.example.com", "health", "https://sd.apps.example.com/health"},
		{"http", "127.0.0.1:8080", "", "http://127.0.0.1:8080/"},
	}

	for _, tt := range tests {
		if got := ProbeURL(tt.scheme, tt.host, tt.path); got != tt.want {
			t.Errorf("ProbeURL(%q, %q, %q) = %q, want %q", tt.scheme, tt.host, tt.path, got, tt.want)
		}
	}
}
