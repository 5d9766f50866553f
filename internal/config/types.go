package config

import "time"

// Config holds the process-level settings for the gateway: how it
// binds, how it logs, and where the live routing document (C1) lives.
// This is distinct from the routing document itself, which has its own
// validate-then-swap lifecycle in internal/configstore.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Routing RoutingConfig `yaml:"routing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server bind and timeout settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TrustProxyHeaders and TrustedProxyCIDRs govern how the access log
	// resolves a caller's IP: only trust X-Forwarded-For/X-Real-IP when
	// the immediate peer's address falls within one of these CIDRs.
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

// RoutingConfig points at the live routing document C1 loads, validates
// and hot-swaps - separate from this process config's own file.
type RoutingConfig struct {
	DocumentPath    string        `yaml:"document_path"`
	AdminPagePath   string        `yaml:"admin_page_path"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig holds the /metrics endpoint's own toggle, distinct from
// the main server bind address so operators can keep it off a public
// listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
