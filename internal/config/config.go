// Package config loads and validates cix configuration from .cix/config.yaml.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete cix configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Indexing   IndexingConfig   `json:"indexing" mapstructure:"indexing"`
	Impact     ImpactConfig     `json:"impact" mapstructure:"impact"`
	Classifier ClassifierConfig `json:"classifier" mapstructure:"classifier"`
	Git        GitConfig        `json:"git" mapstructure:"git"`
	Scip       ScipConfig       `json:"scip" mapstructure:"scip"`
	Watcher    WatcherConfig    `json:"watcher" mapstructure:"watcher"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// IndexingConfig controls which files are indexed and how
type IndexingConfig struct {
	// Languages limits indexing to the listed language identifiers.
	// Empty means every supported language.
	Languages []string `json:"languages" mapstructure:"languages"`
	// Ignore lists directory names skipped during directory walks
	Ignore []string `json:"ignore" mapstructure:"ignore"`
	// MaxFileSizeBytes skips files larger than this
	MaxFileSizeBytes int `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	// Workers bounds the parallel parse phase of directory indexing
	Workers int `json:"workers" mapstructure:"workers"`
}

// ImpactConfig bounds diff impact traversal
type ImpactConfig struct {
	// MaxDepth bounds reachable-callers traversal (hard cap 4)
	MaxDepth int `json:"maxDepth" mapstructure:"maxDepth"`
	// MaxImpactSet caps the total impact set size per analysis
	MaxImpactSet int `json:"maxImpactSet" mapstructure:"maxImpactSet"`
	// MaxCallersPerLevel caps fan-out at each BFS level
	MaxCallersPerLevel int `json:"maxCallersPerLevel" mapstructure:"maxCallersPerLevel"`
}

// ClassifierConfig configures the optional model-based change classifier
type ClassifierConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Command is executed with the diff on stdin; it must print a JSON
	// classification on stdout
	Command   string   `json:"command" mapstructure:"command"`
	Args      []string `json:"args" mapstructure:"args"`
	TimeoutMs int      `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// GitConfig configures the revision provider
type GitConfig struct {
	TimeoutMs int `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// ScipConfig configures the optional SCIP index symbol source
type ScipConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	IndexPath string `json:"indexPath" mapstructure:"indexPath"`
}

// WatcherConfig configures the polling file watcher
type WatcherConfig struct {
	PollIntervalMs int `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	DebounceMs     int `json:"debounceMs" mapstructure:"debounceMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Indexing: IndexingConfig{
			Languages:        []string{},
			Ignore:           []string{"node_modules", "vendor", "target", "build", "__pycache__"},
			MaxFileSizeBytes: 1000000,
			Workers:          4,
		},
		Impact: ImpactConfig{
			MaxDepth:           3,
			MaxImpactSet:       200,
			MaxCallersPerLevel: 20,
		},
		Classifier: ClassifierConfig{
			Enabled:   false,
			TimeoutMs: 30000,
		},
		Git: GitConfig{
			TimeoutMs: 5000,
		},
		Scip: ScipConfig{
			Enabled:   false,
			IndexPath: ".cix/index.scip",
		},
		Watcher: WatcherConfig{
			PollIntervalMs: 2000,
			DebounceMs:     500,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .cix/config.yaml, falling back to
// defaults when no config file exists. CIX_* environment variables override
// file values.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("repoRoot", repoRoot)
	v.SetDefault("indexing.ignore", defaults.Indexing.Ignore)
	v.SetDefault("indexing.maxFileSizeBytes", defaults.Indexing.MaxFileSizeBytes)
	v.SetDefault("indexing.workers", defaults.Indexing.Workers)
	v.SetDefault("impact.maxDepth", defaults.Impact.MaxDepth)
	v.SetDefault("impact.maxImpactSet", defaults.Impact.MaxImpactSet)
	v.SetDefault("impact.maxCallersPerLevel", defaults.Impact.MaxCallersPerLevel)
	v.SetDefault("classifier.enabled", defaults.Classifier.Enabled)
	v.SetDefault("classifier.timeoutMs", defaults.Classifier.TimeoutMs)
	v.SetDefault("git.timeoutMs", defaults.Git.TimeoutMs)
	v.SetDefault("scip.enabled", defaults.Scip.Enabled)
	v.SetDefault("scip.indexPath", defaults.Scip.IndexPath)
	v.SetDefault("watcher.pollIntervalMs", defaults.Watcher.PollIntervalMs)
	v.SetDefault("watcher.debounceMs", defaults.Watcher.DebounceMs)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(repoRoot, ".cix"))

	v.SetEnvPrefix("CIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Missing config file is fine — run on defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.RepoRoot == "" {
		cfg.RepoRoot = repoRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to .cix/config.json for inspection
func (c *Config) Save(repoRoot string) error {
	configPath := filepath.Join(repoRoot, ".cix", "config.json")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Validate checks and normalizes the configuration
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Impact.MaxDepth <= 0 {
		c.Impact.MaxDepth = 3
	}
	if c.Impact.MaxDepth > 4 {
		// Deep traversal over dense graphs gets expensive fast
		c.Impact.MaxDepth = 4
	}
	if c.Impact.MaxImpactSet <= 0 {
		c.Impact.MaxImpactSet = 200
	}
	if c.Impact.MaxCallersPerLevel <= 0 {
		c.Impact.MaxCallersPerLevel = 20
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Classifier.Enabled && c.Classifier.Command == "" {
		return &ConfigError{Field: "classifier.command", Message: "classifier enabled but no command configured"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
