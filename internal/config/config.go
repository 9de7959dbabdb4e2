// Package config loads the ledger configuration from viper.
package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/engine"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/spf13/viper"
)

// Config is the typed view of every setting the ledger reads.
type Config struct {
	Database  DatabaseConfig
	Owner     string
	LLM       llm.Config
	Engine    engine.Config
	Server    ServerConfig
	Logging   LoggingConfig
	Snapshots SnapshotConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string
	CertDir      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          bool
}

// SnapshotConfig controls automatic snapshots before bulk passes.
type SnapshotConfig struct {
	Auto bool
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("owner", "")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_retries", llm.DefaultMaxRetries)
	v.SetDefault("llm.retry_delay", llm.DefaultRetryDelay)
	v.SetDefault("llm.cache_ttl", llm.DefaultCacheTTL)
	v.SetDefault("llm.rate_limit", llm.DefaultRateLimit)

	defaults := engine.DefaultConfig()
	v.SetDefault("rules.mode", string(defaults.Mode))
	v.SetDefault("rules.scope", string(defaults.Scope))
	v.SetDefault("rules.workers", defaults.Workers)
	v.SetDefault("flagger.order", string(defaults.Order))
	v.SetDefault("flagger.throttle", defaults.Throttle)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", DefaultCertDir())

	v.SetDefault("snapshots.auto", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads a Config from v after registering defaults. Enumerated settings
// are validated so a typo fails at startup rather than mid-pass.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Database: DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		Owner:    v.GetString("owner"),
		LLM: llm.Config{
			Provider:   v.GetString("llm.provider"),
			Endpoint:   v.GetString("llm.endpoint"),
			Timeout:    v.GetDuration("llm.timeout"),
			MaxRetries: v.GetInt("llm.max_retries"),
			RetryDelay: v.GetDuration("llm.retry_delay"),
			CacheTTL:   v.GetDuration("llm.cache_ttl"),
			RateLimit:  v.GetInt("llm.rate_limit"),
		},
		Engine: engine.Config{
			Mode:     engine.Mode(v.GetString("rules.mode")),
			Scope:    engine.Scope(v.GetString("rules.scope")),
			Workers:  v.GetInt("rules.workers"),
			Order:    engine.Order(v.GetString("flagger.order")),
			Throttle: v.GetDuration("flagger.throttle"),
		},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			TLS:          v.GetBool("server.tls"),
			CertDir:      ExpandPath(v.GetString("server.cert_dir")),
		},
		Snapshots: SnapshotConfig{Auto: v.GetBool("snapshots.auto")},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if cfg.Database.Path == "" {
		return Config{}, fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return Config{}, err
	}
	switch cfg.LLM.Provider {
	case "", llm.ProviderHTTP, llm.ProviderHeuristic:
	default:
		return Config{}, fmt.Errorf("%w: llm.provider %q", common.ErrInvalidConfig, cfg.LLM.Provider)
	}
	if cfg.LLM.Provider == llm.ProviderHTTP && cfg.LLM.Endpoint == "" {
		return Config{}, fmt.Errorf("%w: llm.endpoint is required for the http provider", common.ErrMissingConfig)
	}

	return cfg, nil
}
