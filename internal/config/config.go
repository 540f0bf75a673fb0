// Package config loads steward configuration from YAML files, .env files
// and environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Autonomy gate settings
	Autonomy AutonomyConfig `yaml:"autonomy" mapstructure:"autonomy"`

	// Learning settings
	Learning LearningConfig `yaml:"learning" mapstructure:"learning"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Shared context settings
	SharedContext SharedContextConfig `yaml:"shared_context" mapstructure:"shared_context"`

	// Memory consolidation settings
	Consolidation ConsolidationConfig `yaml:"consolidation" mapstructure:"consolidation"`

	// Executor settings
	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`
}

type AutonomyConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // "conservative", "moderate", "aggressive"
}

type LearningConfig struct {
	Mode       string  `yaml:"mode" mapstructure:"mode"` // "explicit_only", "implicit_only", "hybrid"
	BaseWeight float64 `yaml:"base_weight" mapstructure:"base_weight"`
}

type StorageConfig struct {
	Type         string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN  string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	SQLitePath   string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PatternsPath string `yaml:"patterns_path" mapstructure:"patterns_path"`
	NotesDir     string `yaml:"notes_dir" mapstructure:"notes_dir"`
}

type SharedContextConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

type ConsolidationConfig struct {
	MinConfidence float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinFeedback   int           `yaml:"min_feedback" mapstructure:"min_feedback"`
	MaxPerRun     int           `yaml:"max_per_run" mapstructure:"max_per_run"`
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
}

type ExecutorConfig struct {
	RateLimit int `yaml:"rate_limit" mapstructure:"rate_limit"` // Executions per second
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Autonomy: AutonomyConfig{
			Level: "moderate",
		},
		Learning: LearningConfig{
			Mode:       "hybrid",
			BaseWeight: 0.7,
		},
		Storage: StorageConfig{
			Type:         "sqlite",
			SQLitePath:   filepath.Join(homeDir, ".steward", "decisions.db"),
			PatternsPath: filepath.Join(homeDir, ".steward", "patterns.db"),
			NotesDir:     filepath.Join(homeDir, ".steward", "memory"),
		},
		SharedContext: SharedContextConfig{
			SweepInterval: 2 * time.Second,
		},
		Consolidation: ConsolidationConfig{
			MinConfidence: 0.7,
			MinFeedback:   5,
			MaxPerRun:     20,
			Interval:      time.Hour,
		},
		Executor: ExecutorConfig{
			RateLimit: 5,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("autonomy", cfg.Autonomy)
	v.SetDefault("learning", cfg.Learning)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("shared_context", cfg.SharedContext)
	v.SetDefault("consolidation", cfg.Consolidation)
	v.SetDefault("executor", cfg.Executor)

	// Load from environment variables
	v.SetEnvPrefix("STEWARD")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".steward")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".steward"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".steward", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("STEWARD_AUTONOMY_LEVEL"); level != "" {
		cfg.Autonomy.Level = level
	}
	if mode := os.Getenv("STEWARD_LEARNING_MODE"); mode != "" {
		cfg.Learning.Mode = mode
	}
	if weight := os.Getenv("STEWARD_BASE_WEIGHT"); weight != "" {
		if w, err := strconv.ParseFloat(weight, 64); err == nil {
			cfg.Learning.BaseWeight = w
		}
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.Type = "postgres"
		cfg.Storage.PostgresDSN = dsn
	}
	if rateLimit := os.Getenv("STEWARD_EXECUTOR_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.Executor.RateLimit = rate
		}
	}
}
