// Package config loads and validates the YAML configuration and manages
// encrypted API key storage.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in stage configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
)

// Secret names looked up per provider, in the secrets file first and
// the environment second.
var providerSecretNames = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGoogle:    "GEMINI_API_KEY",
}

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Stages  StagesConfig  `yaml:"stages"`
	Ollama  OllamaConfig  `yaml:"ollama"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig configures checkpoint persistence.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// StagesConfig binds each pipeline stage to a model.
type StagesConfig struct {
	Tutor       StageConfig `yaml:"tutor"`
	Illustrator StageConfig `yaml:"illustrator"`
}

// StageConfig selects the provider, model and sampling parameters for
// one pipeline stage.
type StageConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// OllamaConfig configures the local Ollama endpoint, used only when a
// stage selects the ollama provider.
type OllamaConfig struct {
	Host string `yaml:"host"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{DBPath: "tutorboard.db"},
		Stages: StagesConfig{
			Tutor: StageConfig{
				Provider:    ProviderOpenAI,
				Model:       "gpt-4o",
				MaxTokens:   4096,
				Temperature: 0.7,
			},
			Illustrator: StageConfig{
				Provider:    ProviderOpenAI,
				Model:       "gpt-4o-mini",
				MaxTokens:   2048,
				Temperature: 0.3,
			},
		},
		Ollama: OllamaConfig{Host: "http://localhost:11434"},
	}
}

// Load reads the configuration file at path, layering it over the
// defaults. A missing file yields the defaults unmodified.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path must not be empty")
	}
	if err := c.Stages.Tutor.validate("stages.tutor"); err != nil {
		return err
	}
	if err := c.Stages.Illustrator.validate("stages.illustrator"); err != nil {
		return err
	}
	return nil
}

func (s StageConfig) validate(name string) error {
	switch s.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGoogle:
	default:
		return fmt.Errorf("%s.provider %q is not supported", name, s.Provider)
	}
	if s.Model == "" {
		return fmt.Errorf("%s.model must not be empty", name)
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("%s.max_tokens must not be negative", name)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("%s.temperature %g out of range", name, s.Temperature)
	}
	return nil
}

// APIKey returns the API key for a stage's provider, or "" for
// providers that need none.
func (s StageConfig) APIKey() (string, error) {
	secretName, ok := providerSecretNames[s.Provider]
	if !ok {
		return "", nil
	}
	key, err := GetSecret(secretName)
	if err != nil {
		return "", fmt.Errorf("provider %s: %w", s.Provider, err)
	}
	return key, nil
}

// Save writes the configuration to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
