// Package config provides configuration loading and layering functionality
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format represents the configuration file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Snapshot is the result of a layered load: the typed configuration plus
// the raw merged key tree it was decoded from. Both are read-only after
// Load returns.
type Snapshot struct {
	// Config is the typed view of the merged configuration
	Config *Config

	// tree is the raw merged key->value tree (override keys win)
	tree map[string]interface{}
}

// Tree returns the raw merged key tree. Callers must treat it as read-only.
func (s *Snapshot) Tree() map[string]interface{} {
	return s.tree
}

// Value looks up a dotted path ("log.level") in the merged tree.
func (s *Snapshot) Value(path string) (interface{}, bool) {
	var cur interface{} = s.tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Loader performs the layered configuration load: bundled defaults, then
// an optional base file, then an optional deployment override file. Keys
// from later layers win on collision; keys unique to any layer pass
// through unchanged.
type Loader struct {
	// Path of the base configuration file. Empty means bundled defaults only.
	basePath string

	// Path of the deployment override file. Absence is not an error.
	overridePath string

	// Environment variable prefix
	envPrefix string

	// Bundled default configuration
	defaults *Config
}

// DefaultOverridePath is the well-known location of the deployment override.
const DefaultOverridePath = "kestrel.override.yaml"

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		overridePath: DefaultOverridePath,
		envPrefix:    "KESTREL",
		defaults:     DefaultConfig(),
	}
}

// SetBasePath sets the base configuration file path
func (l *Loader) SetBasePath(path string) *Loader {
	l.basePath = path
	return l
}

// SetOverridePath sets the deployment override file path
func (l *Loader) SetOverridePath(path string) *Loader {
	l.overridePath = path
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaults sets the bundled default configuration
func (l *Loader) SetDefaults(cfg *Config) *Loader {
	l.defaults = cfg
	return l
}

// Load builds the merged, validated configuration snapshot. It fails if
// the base configuration is missing or malformed; a missing override file
// is treated as an empty override.
func (l *Loader) Load() (*Snapshot, error) {
	defaults := l.defaults
	if defaults == nil {
		defaults = DefaultConfig()
	}

	tree, err := configToTree(defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}

	if l.basePath != "" {
		baseTree, err := loadTreeFromFile(l.basePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load base config %s: %w", l.basePath, err)
		}
		tree = mergeTrees(tree, baseTree)
	}

	if l.overridePath != "" {
		overrideTree, err := loadTreeFromFile(l.overridePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load override config %s: %w", l.overridePath, err)
			}
			// Missing override is an empty override.
		} else {
			tree = mergeTrees(tree, overrideTree)
		}
	}

	cfg, err := treeToConfig(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to decode merged config: %w", err)
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &Snapshot{Config: cfg, tree: tree}, nil
}

// FormatForFile determines the configuration format from a file extension
func FormatForFile(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// loadTreeFromFile reads and parses a configuration file into a key tree.
func loadTreeFromFile(path string) (map[string]interface{}, error) {
	format, err := FormatForFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parseTree(data, format)
}

// parseTree parses configuration data into a key tree based on format.
func parseTree(data []byte, format Format) (map[string]interface{}, error) {
	tree := make(map[string]interface{})

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return tree, nil
}

// mergeTrees merges override into base. For every key present in both,
// the override value wins; maps are merged recursively; keys unique to
// either side pass through unchanged. Neither input is mutated.
func mergeTrees(base, override map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		if baseMap, ok := merged[k].(map[string]interface{}); ok {
			if overrideMap, ok := v.(map[string]interface{}); ok {
				merged[k] = mergeTrees(baseMap, overrideMap)
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

// configToTree converts a typed configuration into a key tree.
func configToTree(cfg *Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	tree := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// treeToConfig decodes a merged key tree into the typed configuration.
func treeToConfig(tree map[string]interface{}) (*Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides on top of the
// merged configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_APP_NAME"); val != "" {
		cfg.App.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_APP_ENVIRONMENT"); val != "" {
		cfg.App.Environment = Environment(val)
	}
	if val := os.Getenv(l.envPrefix + "_APP_DEBUG"); val != "" {
		cfg.App.Debug = strings.ToLower(val) == "true"
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Log.Level = LogLevel(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv(l.envPrefix + "_SUPERVISOR_TIMEOUT_S"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.Supervisor.TimeoutS = secs
		}
	}
	if val := os.Getenv(l.envPrefix + "_DISCOVERY_WORKER_NAME"); val != "" {
		cfg.Discovery.WorkerName = val
	}
	if val := os.Getenv(l.envPrefix + "_MONITOR_ENABLED"); val != "" {
		cfg.Monitor.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv(l.envPrefix + "_MONITOR_ADDRESS"); val != "" {
		cfg.Monitor.Address = val
	}
}
