package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	TopN          int     `yaml:"top_n"`
	FilterAI      bool    `yaml:"filter_ai"`
	MinConfidence float64 `yaml:"min_confidence"`
	Schedule      string  `yaml:"schedule"`
	RunOnStart    bool    `yaml:"run_on_start"`
	OutputDir     string  `yaml:"output_dir"`

	Refresh  RefreshConfig  `yaml:"refresh"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	LLM      LLMConfig      `yaml:"llm"`
	Web      WebConfig      `yaml:"web"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type RefreshConfig struct {
	MinIntervalMinutes int `yaml:"min_interval_minutes"`
}

type FetcherConfig struct {
	TimeoutSecs int `yaml:"timeout_secs"`
	MaxComments int `yaml:"max_comments"`
}

type LLMConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

// MinInterval is the cooldown between refresh runs.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Refresh.MinIntervalMinutes) * time.Minute
}

// FetchTimeout bounds a single fetch of an article page or comment thread.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSecs) * time.Second
}

// LLMTimeout bounds a single LLM call.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// BotEnabled reports whether the Telegram bot should run. A missing token
// disables the bot rather than failing startup.
func (c *Config) BotEnabled() bool {
	return c.Telegram.Token != ""
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.TopN == 0 {
		cfg.TopN = 3
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 0.5
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 8 * * *"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "summaries"
	}
	if cfg.Refresh.MinIntervalMinutes == 0 {
		cfg.Refresh.MinIntervalMinutes = 60
	}
	if cfg.Fetcher.TimeoutSecs == 0 {
		cfg.Fetcher.TimeoutSecs = 30
	}
	if cfg.Fetcher.MaxComments == 0 {
		cfg.Fetcher.MaxComments = 40
	}

	// Provider selection: hosted API when a credential is present, local
	// model server otherwise. A selected hosted provider with no credential
	// falls back to the local one instead of failing startup.
	if cfg.LLM.Provider == "" {
		if cfg.LLM.APIKey != "" {
			cfg.LLM.Provider = "deepseek"
		} else {
			cfg.LLM.Provider = "ollama"
		}
	}
	if cfg.LLM.Provider == "deepseek" && cfg.LLM.APIKey == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "deepseek":
			cfg.LLM.Model = "deepseek-chat"
		case "ollama":
			cfg.LLM.Model = "qwen2.5:7b"
		}
	}
	if cfg.LLM.BaseURL == "" {
		switch cfg.LLM.Provider {
		case "deepseek":
			cfg.LLM.BaseURL = "https://api.deepseek.com"
		case "ollama":
			cfg.LLM.BaseURL = "http://localhost:11434"
		}
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8080"
	}
}

func validate(cfg *Config) error {
	if cfg.TopN < 1 {
		return fmt.Errorf("config: top_n must be at least 1, got %d", cfg.TopN)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("config: min_confidence must be between 0 and 1, got %g", cfg.MinConfidence)
	}
	switch cfg.LLM.Provider {
	case "ollama", "deepseek":
	default:
		return fmt.Errorf("config: unsupported llm provider %q (supported: ollama, deepseek)", cfg.LLM.Provider)
	}
	if cfg.Refresh.MinIntervalMinutes < 0 {
		return fmt.Errorf("config: refresh.min_interval_minutes must not be negative")
	}
	return nil
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is present.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}
