package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/service"
)

const (
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 64 << 10
	// maxBackoffSteps caps the retry delay at this multiple of RetryDelay.
	maxBackoffSteps = 8
)

// HTTPClassifier asks a remote endpoint whether a category applies to a
// transaction. Every failure collapses to service.DecisionUnavailable.
type HTTPClassifier struct {
	httpClient  *http.Client
	cache       *decisionCache
	rateLimiter *rateLimiter
	endpoint    string
	retryOpts   common.RetryOptions
}

// NewHTTPClassifier creates a classifier that posts to cfg.Endpoint.
func NewHTTPClassifier(cfg Config) (*HTTPClassifier, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("%w: llm endpoint is required for the http provider", common.ErrMissingConfig)
	}
	cfg = cfg.withDefaults()

	return &HTTPClassifier{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cache:       newDecisionCache(cfg.CacheTTL),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries + 1,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     maxBackoffSteps * cfg.RetryDelay,
		},
	}, nil
}

// Classify posts req to the endpoint. Definitive answers are cached per
// request so identical questions within a pass cost one call.
func (c *HTTPClassifier) Classify(ctx context.Context, req service.ClassifyRequest) service.Decision {
	if decision, ok := c.cache.get(req); ok {
		slog.Debug("Using cached decision", "category", req.Category.Name)
		return decision
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Warn("failed to encode classify request", "error", err)
		return service.DecisionUnavailable
	}

	var decision service.Decision
	err = common.WithRetry(ctx, func() error {
		if waitErr := c.rateLimiter.wait(ctx); waitErr != nil {
			return &common.RetryableError{Err: waitErr, Retryable: false}
		}
		var callErr error
		decision, callErr = c.post(ctx, body)
		return callErr
	}, c.retryOpts)
	if err != nil {
		slog.Warn("classification unavailable",
			"endpoint", c.endpoint,
			"category", req.Category.Name,
			"error", err)
		return service.DecisionUnavailable
	}

	c.cache.set(req, decision)
	return decision
}

func (c *HTTPClassifier) post(ctx context.Context, body []byte) (service.Decision, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: false}
		}
		return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		after := retryAfter(resp.Header.Get("Retry-After"), time.Now())
		if after > 0 {
			c.rateLimiter.pause(after)
		}
		return "", &common.RetryableError{Err: common.ErrRateLimit, Retryable: true, After: after}
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("%w: classify endpoint error (status %d)", common.ErrCollaboratorFailure, resp.StatusCode),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("%w: classify endpoint rejected request (status %d): %s", common.ErrCollaboratorFailure, resp.StatusCode, strings.TrimSpace(string(respBody))),
			Retryable: false,
		}
	}

	return parseDecision(respBody)
}

// parseDecision accepts only the two definitive answers.
func parseDecision(body []byte) (service.Decision, error) {
	var parsed service.ClassifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("failed to parse response: %w", err), Retryable: false}
	}

	switch normalized := service.Decision(strings.ToLower(strings.TrimSpace(string(parsed.Decision)))); normalized {
	case service.DecisionApply:
		return service.DecisionApply, nil
	case service.DecisionDoNotApply, "do_not_apply":
		return service.DecisionDoNotApply, nil
	default:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("%w: unexpected decision %q", common.ErrCollaboratorFailure, parsed.Decision),
			Retryable: false,
		}
	}
}

// retryAfter reads a Retry-After header given either in seconds or as an
// HTTP date. Missing, malformed or past values yield zero.
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
	}
	return 0
}

// Close drops idle keep-alive connections to the endpoint.
func (c *HTTPClassifier) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
