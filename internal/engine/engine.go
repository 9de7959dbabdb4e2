// Package engine runs rule application and anomaly flagging passes over an
// owner's transactions.
package engine

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Mode selects how many matching rules contribute categories.
type Mode string

// Rule application modes.
const (
	ModeAllMatches Mode = "all"
	ModeFirstMatch Mode = "first"
)

// Scope selects which transactions a rule application pass considers.
type Scope string

// Rule application scopes.
const (
	ScopeAll           Scope = "all"
	ScopeUncategorized Scope = "uncategorized"
)

// Order selects the processing order of a flagging pass.
type Order string

// Flagging orders.
const (
	OrderCreated Order = "created"
	OrderDate    Order = "date"
	OrderInput   Order = "input"
)

// Engine orchestrates rule application and anomaly flagging.
type Engine struct {
	storage   service.Storage
	evaluator RuleEvaluator
	progress  ProgressFunc
	config    Config
}

// Config holds configuration options for the engine.
type Config struct {
	Mode     Mode
	Scope    Scope
	Order    Order
	Workers  int
	Throttle time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:    ModeAllMatches,
		Scope:   ScopeAll,
		Order:   OrderCreated,
		Workers: 4,
	}
}

// Validate rejects unknown enum values and normalizes the worker count.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAllMatches, ModeFirstMatch:
	default:
		return fmt.Errorf("%w: rules mode %q", common.ErrInvalidConfig, c.Mode)
	}
	switch c.Scope {
	case ScopeAll, ScopeUncategorized:
	default:
		return fmt.Errorf("%w: rules scope %q", common.ErrInvalidConfig, c.Scope)
	}
	switch c.Order {
	case OrderCreated, OrderDate, OrderInput:
	default:
		return fmt.Errorf("%w: flagger order %q", common.ErrInvalidConfig, c.Order)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Throttle < 0 {
		return fmt.Errorf("%w: negative flagger throttle", common.ErrInvalidConfig)
	}
	return nil
}

// New creates an engine with the default configuration.
func New(storage service.Storage, evaluator RuleEvaluator) *Engine {
	return &Engine{
		storage:   storage,
		evaluator: evaluator,
		config:    DefaultConfig(),
	}
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(storage service.Storage, evaluator RuleEvaluator, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		storage:   storage,
		evaluator: evaluator,
		config:    config,
	}, nil
}

// WithProgress registers a callback invoked as a pass advances.
func (e *Engine) WithProgress(fn ProgressFunc) *Engine {
	e.progress = fn
	return e
}

func (e *Engine) report(stage string, done, total int) {
	if e.progress != nil {
		e.progress(stage, done, total)
	}
}
