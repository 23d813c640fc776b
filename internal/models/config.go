// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all gatekeeper components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, limits, breakers, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Everything is loaded once at process start and treated as immutable
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Rate limit store type constants
const (
	LimitStoreLocal = "local"
	LimitStoreRedis = "redis"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Admission     AdmissionConfig     `yaml:"admission" json:"admission"`         // Admission pipeline settings
	Limits        LimitsConfig        `yaml:"limits" json:"limits"`               // Rate limit windows per scope
	Validation    ValidationConfig    `yaml:"validation" json:"validation"`       // Declarative request validation rules
	Breakers      map[string]Breaker  `yaml:"breakers" json:"breakers"`           // Circuit breakers per downstream service
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Tenant record persistence
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

// AdmissionConfig controls the admission pipeline that runs before every handler.
type AdmissionConfig struct {
	// TenantHeader is the header carrying the tenant identifier. Requests to
	// non-public routes without it are rejected.
	TenantHeader string `yaml:"tenant_header" json:"tenant_header"`

	// PublicPaths are path prefixes exempt from the tenant-isolation check.
	PublicPaths []string `yaml:"public_paths" json:"public_paths"`

	// MinClientVersion, when set, rejects clients reporting an older
	// X-Client-Version with an upgrade-required decision.
	MinClientVersion string `yaml:"min_client_version" json:"min_client_version"`

	// Upstream is the backend URL admitted API requests are forwarded to.
	// Empty means the service runs standalone and admitted requests get a
	// 404, which is how integration environments probe pure admission
	// behavior.
	Upstream string `yaml:"upstream" json:"upstream"`
}

// ScopeLimit describes one fixed counting window.
type ScopeLimit struct {
	WindowMs    int64 `yaml:"window_ms" json:"window_ms"`
	MaxRequests int64 `yaml:"max_requests" json:"max_requests"`
}

// Window returns the window length as a duration.
func (s ScopeLimit) Window() time.Duration {
	return time.Duration(s.WindowMs) * time.Millisecond
}

// Enabled reports whether the limit is configured at all.
func (s ScopeLimit) Enabled() bool {
	return s.WindowMs > 0 && s.MaxRequests > 0
}

// EndpointLimit is a per-endpoint override keyed by method and route pattern.
type EndpointLimit struct {
	Path        string  `yaml:"path" json:"path"`
	Method      string  `yaml:"method" json:"method"`
	WindowMs    int64   `yaml:"window_ms" json:"window_ms"`
	MaxRequests int64   `yaml:"max_requests" json:"max_requests"`
	CostWeight  float64 `yaml:"cost_weight" json:"cost_weight"`
}

// LimitsConfig holds the rate limit windows for every scope plus the backing
// store selection.
type LimitsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Store selects the counter backend: "local" or "redis".
	Store string `yaml:"store" json:"store"`

	Global ScopeLimit            `yaml:"global" json:"global"`
	Tenant ScopeLimit            `yaml:"tenant" json:"tenant"`
	User   ScopeLimit            `yaml:"user" json:"user"`
	Tiers  map[string]ScopeLimit `yaml:"tiers" json:"tiers"`

	Endpoints []EndpointLimit `yaml:"endpoints" json:"endpoints"`

	// StoreTimeout bounds every distributed-store round trip. On expiry the
	// check degrades to the local counter for that single call.
	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`

	// CleanupInterval is how often idle local windows are swept.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`

	Redis RedisConfig `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// ValidationConfig carries the declarative request validation rules.
type ValidationConfig struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Rules   []RuleConfig `yaml:"rules" json:"rules"`
}

// RuleConfig declares the schema for one (method, path pattern) pair.
type RuleConfig struct {
	Method string        `yaml:"method" json:"method"`
	Path   string        `yaml:"path" json:"path"`
	Body   *SchemaConfig `yaml:"body,omitempty" json:"body,omitempty"`
	Query  *SchemaConfig `yaml:"query,omitempty" json:"query,omitempty"`
}

// SchemaConfig declares required fields and per-field constraints.
type SchemaConfig struct {
	Required   []string                    `yaml:"required" json:"required"`
	Properties map[string]ConstraintConfig `yaml:"properties" json:"properties"`
}

// ConstraintConfig is the YAML surface for a single field constraint. Type
// selects the variant; only the matching options are consulted.
type ConstraintConfig struct {
	Type      string   `yaml:"type" json:"type"` // string, number, array
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Enum      []string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Minimum   *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum   *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
}

// Breaker configures one named circuit breaker.
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: standard non-privileged HTTP port
// - Local counter store: no external dependency needed to boot
// - 250ms store timeout: a Redis round trip slower than that should not
//   become the request's latency bottleneck
// - Conservative per-scope windows that an operator is expected to tune
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Admission: AdmissionConfig{
			TenantHeader: "X-Tenant-ID",
			PublicPaths:  []string{"/health", "/api/v1/health"},
		},
		Limits: LimitsConfig{
			Enabled:         true,
			Store:           LimitStoreLocal,
			Global:          ScopeLimit{WindowMs: 60_000, MaxRequests: 10_000},
			Tenant:          ScopeLimit{WindowMs: 60_000, MaxRequests: 1_000},
			User:            ScopeLimit{WindowMs: 60_000, MaxRequests: 120},
			Tiers:           map[string]ScopeLimit{},
			StoreTimeout:    250 * time.Millisecond,
			CleanupInterval: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "gatekeeper:rl",
			},
		},
		Validation: ValidationConfig{
			Enabled: true,
		},
		Breakers: map[string]Breaker{
			"database": {
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				HalfOpenRequests: 2,
			},
			"ai-provider": {
				FailureThreshold: 3,
				ResetTimeout:     30 * time.Second,
				HalfOpenRequests: 2,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns: 25,
				MaxIdleConns: 5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("invalid limits config: %w", err)
	}

	for name, b := range c.Breakers {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("invalid breaker config %q: %w", name, err)
		}
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (lc *LimitsConfig) Validate() error {
	if !lc.Enabled {
		return nil
	}

	if lc.Store != LimitStoreLocal && lc.Store != LimitStoreRedis {
		return fmt.Errorf("invalid limit store: %s", lc.Store)
	}

	if lc.Store == LimitStoreRedis && lc.Redis.Addr == "" {
		return errors.New("redis address is required when limit store is redis")
	}

	if lc.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}

	for _, s := range []ScopeLimit{lc.Global, lc.Tenant, lc.User} {
		if s.WindowMs < 0 || s.MaxRequests < 0 {
			return errors.New("scope limits cannot be negative")
		}
	}

	for tier, s := range lc.Tiers {
		if !s.Enabled() {
			return fmt.Errorf("tier %q must set both window_ms and max_requests", tier)
		}
	}

	for _, ep := range lc.Endpoints {
		if ep.Path == "" {
			return errors.New("endpoint limit path cannot be empty")
		}
		if ep.WindowMs <= 0 || ep.MaxRequests <= 0 {
			return fmt.Errorf("endpoint limit %s must set both window_ms and max_requests", ep.Path)
		}
		if ep.CostWeight < 0 {
			return fmt.Errorf("endpoint limit %s cost_weight cannot be negative", ep.Path)
		}
	}

	return nil
}

func (b *Breaker) Validate() error {
	if b.FailureThreshold <= 0 {
		return errors.New("failure threshold must be positive")
	}
	if b.ResetTimeout <= 0 {
		return errors.New("reset timeout must be positive")
	}
	if b.HalfOpenRequests <= 0 {
		return errors.New("half open requests must be positive")
	}
	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		// Memory storage requires no additional configuration
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr", "file":
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}
