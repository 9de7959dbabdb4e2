package llm

import (
	"time"
)

// Supported classification providers.
const (
	ProviderHTTP      = "http"
	ProviderHeuristic = "heuristic"
)

// Defaults applied by NewClassifier when a field is left zero.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 250 * time.Millisecond
	DefaultCacheTTL   = 15 * time.Minute
	DefaultRateLimit  = 600
)

// Config holds configuration for the classification collaborator.
type Config struct {
	Provider   string
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	CacheTTL   time.Duration
	// RateLimit is the maximum number of requests per minute.
	RateLimit int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	return c
}
