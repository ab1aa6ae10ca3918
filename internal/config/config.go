// Package config loads run configuration from YAML and from the process
// environment. Credentials can come from either source; environment
// credentials use numbered variables (GROQ_API_KEY_1, GROQ_API_KEY_2, ...)
// so several keys per provider can be supplied without a config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/codescribe/internal/provider"
)

// Defaults applied by Normalize.
const (
	DefaultGroqModel   = "llama3-70b-8192"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// CredentialConfig is one API credential in the YAML file. The key value is
// environment-expanded, so `key: ${GROQ_API_KEY}` works.
type CredentialConfig struct {
	Provider string `yaml:"provider"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

// GenerationConfig tunes the provider pool and the orchestrator.
type GenerationConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds,omitempty"`
	RetryLimit      int `yaml:"retry_limit,omitempty"`
	AbortThreshold  int `yaml:"abort_threshold,omitempty"`
}

// Config is the top-level run configuration.
type Config struct {
	Description string             `yaml:"description,omitempty"`
	Exclude     string             `yaml:"exclude,omitempty"`
	Credentials []CredentialConfig `yaml:"credentials,omitempty"`
	Generation  GenerationConfig   `yaml:"generation,omitempty"`
}

// LoadEnvFile loads KEY=VALUE pairs from the given file into the process
// environment without overriding variables that are already set. A missing
// file is not an error; callers that require the file check its existence
// themselves.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	for k, v := range env {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
	return nil
}

// Load reads and validates a YAML config file. Environment variables inside
// the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a credential-only configuration from numbered environment
// variables: GROQ_API_KEY_1..n and GEMINI_API_KEY_1..n, plus the unnumbered
// GROQ_API_KEY / GEMINI_API_KEY forms. Groq credentials take priority over
// Gemini ones, matching the default provider ordering.
func FromEnv() *Config {
	cfg := &Config{}
	cfg.Credentials = append(cfg.Credentials, envCredentials("GROQ_API_KEY", "groq", 0)...)
	cfg.Credentials = append(cfg.Credentials, envCredentials("GEMINI_API_KEY", "gemini", 1)...)
	cfg.Normalize()
	return cfg
}

func envCredentials(prefix, providerName string, priority int) []CredentialConfig {
	var creds []CredentialConfig
	if key := os.Getenv(prefix); key != "" {
		creds = append(creds, CredentialConfig{Provider: providerName, Key: key, Priority: priority})
	}
	for i := 1; ; i++ {
		key := os.Getenv(prefix + "_" + strconv.Itoa(i))
		if key == "" {
			break
		}
		creds = append(creds, CredentialConfig{Provider: providerName, Key: key, Priority: priority})
	}
	return creds
}

// Normalize fills in per-credential model defaults and generation defaults.
func (c *Config) Normalize() {
	for i := range c.Credentials {
		cred := &c.Credentials[i]
		if cred.Model != "" {
			continue
		}
		switch cred.Provider {
		case "groq":
			cred.Model = DefaultGroqModel
		case "gemini":
			cred.Model = DefaultGeminiModel
		}
	}
	if c.Generation.CooldownSeconds <= 0 {
		c.Generation.CooldownSeconds = int(provider.DefaultCooldown / time.Second)
	}
	if c.Generation.RetryLimit <= 0 {
		c.Generation.RetryLimit = provider.DefaultRetryLimit
	}
	if c.Generation.AbortThreshold <= 0 {
		c.Generation.AbortThreshold = 5
	}
}

// Validate reports the first structural problem with the configuration.
func (c *Config) Validate() error {
	for i, cred := range c.Credentials {
		if cred.Provider == "" {
			return fmt.Errorf("credential %d: provider is required", i+1)
		}
		if cred.Key == "" {
			return fmt.Errorf("credential %d (%s): key is required", i+1, cred.Provider)
		}
		if cred.Model == "" {
			return fmt.Errorf("credential %d (%s): model is required for unknown providers", i+1, cred.Provider)
		}
	}
	return nil
}

// PoolCredentials converts the configured credentials into the provider
// pool's input type.
func (c *Config) PoolCredentials() []provider.Credential {
	creds := make([]provider.Credential, 0, len(c.Credentials))
	for _, cc := range c.Credentials {
		creds = append(creds, provider.Credential{
			Provider: cc.Provider,
			Key:      cc.Key,
			Model:    cc.Model,
			Priority: cc.Priority,
		})
	}
	return creds
}

// Cooldown returns the rate-limit cooldown as a duration.
func (g GenerationConfig) Cooldown() time.Duration {
	return time.Duration(g.CooldownSeconds) * time.Second
}
