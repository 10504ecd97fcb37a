// Package config loads and validates process configuration from file,
// environment, and defaults via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Trace   TraceConfig   `mapstructure:"trace"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS float64       `mapstructure:"rate_limit_rps"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// EngineConfig configures the reasoning core's document sources and the
// per-trial fan-out.
type EngineConfig struct {
	OntologyPath string `mapstructure:"ontology_path"`
	RulesDir     string `mapstructure:"rules_dir"`
	Parallelism  int    `mapstructure:"parallelism"`
}

// TraceConfig selects and configures the audit sinks.
type TraceConfig struct {
	// Sink is a comma-separated list of: log, jsonl, sqlite. Multiple sinks
	// fan out, each trace goes to every listed sink.
	Sink       string `mapstructure:"sink"`
	JSONLPath  string `mapstructure:"jsonl_path"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Sinks returns the configured sink kinds in declaration order.
func (t TraceConfig) Sinks() []string {
	parts := strings.Split(t.Sink, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and holds the process configuration.
type Manager struct {
	config *Config
}

// NewManager loads configuration from config.yaml (if present), environment
// variables with the TRIAL_ELIG prefix, and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trial-eligibility-engine/")

	viper.SetEnvPrefix("TRIAL_ELIG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit_rps", 25.0)
	viper.SetDefault("server.rate_burst", 50)

	viper.SetDefault("engine.ontology_path", "data/ontology/patient_ontology.yaml")
	viper.SetDefault("engine.rules_dir", "data/trial_rules")
	viper.SetDefault("engine.parallelism", 1)

	viper.SetDefault("trace.sink", "log")
	viper.SetDefault("trace.jsonl_path", "logs/eligibility_trace.jsonl")
	viper.SetDefault("trace.sqlite_path", "data/traces.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate checks the configuration for operator errors. Document loading
// failures surface here at configuration time, never on the per-patient
// evaluation path.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Engine.OntologyPath == "" {
		return fmt.Errorf("engine ontology path is required")
	}
	if config.Engine.RulesDir == "" {
		return fmt.Errorf("engine rules directory is required")
	}
	if config.Engine.Parallelism < 0 {
		return fmt.Errorf("engine parallelism must be non-negative")
	}

	sinks := config.Trace.Sinks()
	if len(sinks) == 0 {
		return fmt.Errorf("at least one trace sink is required")
	}
	for _, sink := range sinks {
		switch sink {
		case "log", "jsonl", "sqlite":
		default:
			return fmt.Errorf("invalid trace sink: %s", sink)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
