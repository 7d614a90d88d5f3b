// Package config provides layered configuration management for kestrel
package config

import (
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true
	default:
		return false
	}
}

// Config represents the merged kestrel configuration snapshot.
// A snapshot is built once at startup and never mutated afterwards,
// so it is shared freely without locking.
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app" toml:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" toml:"log"`

	// Actor runtime configuration
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime" toml:"runtime"`

	// Supervisor configuration
	Supervisor SupervisorConfig `yaml:"supervisor" json:"supervisor" toml:"supervisor"`

	// Discovery worker configuration
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery" toml:"discovery"`

	// Monitoring configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor" toml:"monitor"`

	// Custom configurations (for user-defined workers)
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty" toml:"custom,omitempty"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name" toml:"name"`

	// Application version (normally stamped by the build pipeline)
	Version string `yaml:"version" json:"version" toml:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment" toml:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug" toml:"debug"`

	// Application metadata
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty" toml:"metadata,omitempty"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level" toml:"level"`

	// Log format (json, console)
	Format string `yaml:"format" json:"format" toml:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" toml:"output"`
}

// RuntimeConfig contains actor runtime configuration
type RuntimeConfig struct {
	// Runtime name
	Name string `yaml:"name" json:"name" toml:"name"`

	// Maximum number of actors
	MaxActors int `yaml:"max_actors" json:"max_actors" toml:"max_actors"`

	// Default actor mailbox size
	MailboxSize int `yaml:"mailbox_size" json:"mailbox_size" toml:"mailbox_size"`

	// Per-message processing timeout, in seconds
	ProcessTimeoutS int `yaml:"process_timeout_s" json:"process_timeout_s" toml:"process_timeout_s"`

	// Total teardown budget for ShutdownAsync, in seconds
	ShutdownTimeoutS int `yaml:"shutdown_timeout_s" json:"shutdown_timeout_s" toml:"shutdown_timeout_s"`
}

// ProcessTimeout returns the per-message processing timeout
func (c RuntimeConfig) ProcessTimeout() time.Duration {
	return time.Duration(c.ProcessTimeoutS) * time.Second
}

// ShutdownTimeout returns the runtime teardown budget
func (c RuntimeConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// SupervisorConfig contains supervisor configuration
type SupervisorConfig struct {
	// Supervisor actor name
	Name string `yaml:"name" json:"name" toml:"name"`

	// Bound on the CreateChild ask, in seconds
	TimeoutS int `yaml:"timeout_s" json:"timeout_s" toml:"timeout_s"`

	// Maximum restarts per child before it is left stopped
	MaxRestarts int `yaml:"max_restarts" json:"max_restarts" toml:"max_restarts"`
}

// Timeout returns the bound on the CreateChild ask
func (c SupervisorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// DiscoveryConfig contains discovery worker configuration
type DiscoveryConfig struct {
	// Worker name, scoped to the supervisor
	WorkerName string `yaml:"worker_name" json:"worker_name" toml:"worker_name"`

	// Interval between registry refreshes, in seconds
	RefreshIntervalS int `yaml:"refresh_interval_s" json:"refresh_interval_s" toml:"refresh_interval_s"`

	// Age after which a peer entry is considered stale, in seconds
	StaleAfterS int `yaml:"stale_after_s" json:"stale_after_s" toml:"stale_after_s"`
}

// RefreshInterval returns the interval between registry refreshes
func (c DiscoveryConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalS) * time.Second
}

// StaleAfter returns the age after which a peer entry goes stale
func (c DiscoveryConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterS) * time.Second
}

// MonitorConfig contains monitoring configuration
type MonitorConfig struct {
	// Enable the monitoring HTTP server
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// HTTP server listen address
	Address string `yaml:"address" json:"address" toml:"address"`

	// Metrics endpoint path
	MetricsPath string `yaml:"metrics_path" json:"metrics_path" toml:"metrics_path"`

	// Health endpoint path
	HealthPath string `yaml:"health_path" json:"health_path" toml:"health_path"`
}

// DefaultConfig returns the bundled default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "kestrel",
			Version:     "0.0.0",
			Environment: EnvDevelopment,
			Debug:       false,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "console",
			Output: "stdout",
		},
		Runtime: RuntimeConfig{
			Name:             "kestrel",
			MaxActors:        10000,
			MailboxSize:      1000,
			ProcessTimeoutS:  30,
			ShutdownTimeoutS: 30,
		},
		Supervisor: SupervisorConfig{
			Name:        "supervisor",
			TimeoutS:    60,
			MaxRestarts: 3,
		},
		Discovery: DiscoveryConfig{
			WorkerName:       "discovery",
			RefreshIntervalS: 10,
			StaleAfterS:      60,
		},
		Monitor: MonitorConfig{
			Enabled:     false,
			Address:     "127.0.0.1:9090",
			MetricsPath: "/metrics",
			HealthPath:  "/healthz",
		},
		Custom: make(map[string]interface{}),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	if c.Runtime.MaxActors <= 0 {
		return ErrInvalidMaxActors
	}
	if c.Runtime.MailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}
	if c.Supervisor.TimeoutS <= 0 {
		return ErrInvalidTimeout
	}
	if c.Discovery.RefreshIntervalS <= 0 {
		return ErrInvalidRefreshInterval
	}
	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
