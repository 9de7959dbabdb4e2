package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() service.ClassifyRequest {
	return service.ClassifyRequest{
		TransactionDate:        "2024-03-05",
		TransactionDescription: "NETFLIX.COM",
		TransactionAmount:      "15.99",
		Category:               service.ClassifyCategory{Name: "Streaming", Description: "Video subscriptions"},
		AIPrompt:               "streaming services",
	}
}

// classifyServer answers every request with the handler's status and body
// and counts calls.
func classifyServer(t *testing.T, handler func(calls int32) (int, string)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		status, body := handler(n)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestHTTPClassifier(t *testing.T, endpoint string) *HTTPClassifier {
	t.Helper()
	c, err := NewHTTPClassifier(Config{
		Endpoint:   endpoint,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHTTPClassifierSendsRequest(t *testing.T) {
	var received service.ClassifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"decision":"apply"}`))
	}))
	defer server.Close()

	c := newTestHTTPClassifier(t, server.URL)
	assert.Equal(t, service.DecisionApply, c.Classify(context.Background(), sampleRequest()))
	assert.Equal(t, sampleRequest(), received)
}

func TestHTTPClassifierDecisions(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      service.Decision
		wantCalls int32
	}{
		{name: "apply", status: http.StatusOK, body: `{"decision":"apply"}`, want: service.DecisionApply, wantCalls: 1},
		{name: "do not apply", status: http.StatusOK, body: `{"decision":"do not apply"}`, want: service.DecisionDoNotApply, wantCalls: 1},
		{name: "underscored do not apply", status: http.StatusOK, body: `{"decision":"do_not_apply"}`, want: service.DecisionDoNotApply, wantCalls: 1},
		{name: "unknown decision", status: http.StatusOK, body: `{"decision":"maybe"}`, want: service.DecisionUnavailable, wantCalls: 1},
		{name: "malformed body", status: http.StatusOK, body: `not json`, want: service.DecisionUnavailable, wantCalls: 1},
		{name: "client error is not retried", status: http.StatusBadRequest, body: `{"error":"bad"}`, want: service.DecisionUnavailable, wantCalls: 1},
		{name: "server error is retried", status: http.StatusInternalServerError, body: `{"decision":"do not apply"}`, want: service.DecisionUnavailable, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := classifyServer(t, func(int32) (int, string) { return tt.status, tt.body })
			c := newTestHTTPClassifier(t, server.URL)

			assert.Equal(t, tt.want, c.Classify(context.Background(), sampleRequest()))
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

func TestHTTPClassifierRecoversAfterTransientFailure(t *testing.T) {
	server, calls := classifyServer(t, func(n int32) (int, string) {
		if n == 1 {
			return http.StatusServiceUnavailable, ""
		}
		return http.StatusOK, `{"decision":"apply"}`
	})
	c := newTestHTTPClassifier(t, server.URL)

	assert.Equal(t, service.DecisionApply, c.Classify(context.Background(), sampleRequest()))
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestHTTPClassifierCachesDefinitiveDecisions(t *testing.T) {
	server, calls := classifyServer(t, func(int32) (int, string) {
		return http.StatusOK, `{"decision":"do not apply"}`
	})
	c := newTestHTTPClassifier(t, server.URL)
	ctx := context.Background()

	assert.Equal(t, service.DecisionDoNotApply, c.Classify(ctx, sampleRequest()))
	assert.Equal(t, service.DecisionDoNotApply, c.Classify(ctx, sampleRequest()))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	other := sampleRequest()
	other.TransactionAmount = "16.99"
	c.Classify(ctx, other)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestHTTPClassifierDoesNotCacheFailures(t *testing.T) {
	server, calls := classifyServer(t, func(int32) (int, string) {
		return http.StatusBadRequest, ""
	})
	c := newTestHTTPClassifier(t, server.URL)
	ctx := context.Background()

	c.Classify(ctx, sampleRequest())
	c.Classify(ctx, sampleRequest())
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestHTTPClassifierUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestHTTPClassifier(t, url)
	assert.Equal(t, service.DecisionUnavailable, c.Classify(context.Background(), sampleRequest()))
}

func TestHTTPClassifierHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestHTTPClassifier(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Equal(t, service.DecisionUnavailable, c.Classify(ctx, sampleRequest()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewHTTPClassifierRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPClassifier(Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestHTTPClassifierRateLimited(t *testing.T) {
	t.Run("without Retry-After uses the regular backoff", func(t *testing.T) {
		server, calls := classifyServer(t, func(n int32) (int, string) {
			if n == 1 {
				return http.StatusTooManyRequests, ""
			}
			return http.StatusOK, `{"decision":"apply"}`
		})
		c := newTestHTTPClassifier(t, server.URL)

		start := time.Now()
		assert.Equal(t, service.DecisionApply, c.Classify(context.Background(), sampleRequest()))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	})

	t.Run("Retry-After beyond the deadline gives up at once", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := newTestHTTPClassifier(t, server.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		start := time.Now()
		assert.Equal(t, service.DecisionUnavailable, c.Classify(ctx, sampleRequest()))
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Greater(t, c.rateLimiter.reserve(), 20*time.Second, "limiter paused for the requested time")
	})
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "missing", header: "", want: 0},
		{name: "seconds", header: "5", want: 5 * time.Second},
		{name: "zero seconds", header: "0", want: 0},
		{name: "negative seconds", header: "-3", want: 0},
		{name: "http date", header: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past http date", header: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{name: "garbage", header: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryAfter(tt.header, now))
		})
	}
}
