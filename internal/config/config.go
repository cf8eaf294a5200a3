package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/scene-analyzer/internal/utils"
)

// Backend names
const (
	BackendLlamaCpp = "llamacpp"
	BackendOllama   = "ollama"
)

// Config holds the application configuration
type Config struct {
	Backend  string         `yaml:"backend"`
	LogLevel string         `yaml:"log_level"`
	LlamaCpp LlamaCppConfig `yaml:"llamacpp"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Payload  PayloadConfig  `yaml:"payload"`
	Palette  PaletteConfig  `yaml:"palette"`
	Rules    RulesConfig    `yaml:"rules"`
}

// LlamaCppConfig holds configuration for the llama-server backend
type LlamaCppConfig struct {
	ServerPath     string        `yaml:"server_path"`
	Host           string        `yaml:"host"`
	ExtraArgs      string        `yaml:"extra_args"`
	ContextSize    int           `yaml:"context_size"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

// OllamaConfig holds configuration for the Ollama backend
type OllamaConfig struct {
	URL         string `yaml:"url"`
	ModelPrefix string `yaml:"model_prefix"`
	KeepModel   bool   `yaml:"keep_model"`
}

// PayloadConfig controls how the image is encoded for the model
type PayloadConfig struct {
	Format  string `yaml:"format"`
	MaxSide int    `yaml:"max_side"`
	Quality int    `yaml:"quality"`
}

// PaletteConfig holds configuration for dominant color extraction
type PaletteConfig struct {
	Clusters        int     `yaml:"clusters"`
	Inits           int     `yaml:"inits"`
	MaxIter         int     `yaml:"max_iter"`
	Tolerance       float64 `yaml:"tolerance"`
	Seed            uint64  `yaml:"seed"`
	MaxSamplePixels int     `yaml:"max_sample_pixels"`
}

// RulesConfig points at an optional keyword rule file
type RulesConfig struct {
	File string `yaml:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend:  BackendLlamaCpp,
		LogLevel: "info",
		LlamaCpp: LlamaCppConfig{
			ServerPath:  "llama-server",
			Host:        "127.0.0.1",
			ContextSize: 8192,
		},
		Ollama: OllamaConfig{
			URL:         "http://localhost:11434",
			ModelPrefix: "scene-analyzer",
		},
		Payload: PayloadConfig{
			Format:  "jpg",
			MaxSide: 1536,
			Quality: 90,
		},
		Palette: PaletteConfig{
			Clusters:        5,
			Inits:           10,
			MaxIter:         300,
			Tolerance:       1e-4,
			Seed:            42,
			MaxSamplePixels: 256 * 256,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load resolves the configuration file (explicit path, SCENE_ANALYZER_CONFIG,
// or the default location if present) and applies environment overrides.
func Load(filename string) (*Config, error) {
	if filename == "" {
		filename = os.Getenv("SCENE_ANALYZER_CONFIG")
	}
	if filename == "" {
		if p := GetConfigPath(); utils.FileExists(p) {
			filename = p
		}
	}

	config := Default()
	if filename != "" {
		var err error
		if config, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv()
	return config, nil
}

// ApplyEnv overrides backend locations from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLAMA_SERVER_PATH"); v != "" {
		c.LlamaCpp.ServerPath = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.URL = v
	}
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLlamaCpp:
		if c.LlamaCpp.ServerPath == "" {
			return fmt.Errorf("llamacpp.server_path cannot be empty")
		}
	case BackendOllama:
		if c.Ollama.URL == "" {
			return fmt.Errorf("ollama.url cannot be empty")
		}
	default:
		return fmt.Errorf("unknown backend %q (use %s or %s)", c.Backend, BackendLlamaCpp, BackendOllama)
	}

	if c.LlamaCpp.StartupTimeout < 0 {
		return fmt.Errorf("llamacpp.startup_timeout cannot be negative")
	}

	if c.Payload.Quality < 1 || c.Payload.Quality > 100 {
		return fmt.Errorf("payload.quality must be between 1 and 100")
	}

	if c.Payload.MaxSide < 0 {
		return fmt.Errorf("payload.max_side cannot be negative")
	}

	if c.Palette.Clusters < 1 {
		return fmt.Errorf("palette.clusters must be positive")
	}

	if c.Palette.Inits < 1 || c.Palette.MaxIter < 1 {
		return fmt.Errorf("palette.inits and palette.max_iter must be positive")
	}

	if c.Palette.Tolerance < 0 {
		return fmt.Errorf("palette.tolerance cannot be negative")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "scene-analyzer", "config.yaml")
}
