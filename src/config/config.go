package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Protocol-Lattice/go-grader/src/models"
)

// Config is the full runtime configuration of the grader service.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Pipeline  PipelineConfig            `mapstructure:"pipeline"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Store     StoreConfig               `mapstructure:"store"`
	Logging   LoggingConfig             `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// PipelineConfig controls chunking, fallback and concurrency.
type PipelineConfig struct {
	// Priority is the fixed fallback order tried after the requested provider.
	Priority    []string      `mapstructure:"priority"`
	Concurrency int           `mapstructure:"concurrency"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MaxDepth    int           `mapstructure:"max_depth"`
	Synthesis   bool          `mapstructure:"synthesis"`
	CarryChars  int           `mapstructure:"carry_chars"`
	Headroom    float64       `mapstructure:"headroom"`
}

// ProviderConfig describes one LLM backend.
type ProviderConfig struct {
	Model             string `mapstructure:"model"`
	BaseURL           string `mapstructure:"base_url"`
	APIKeyEnv         string `mapstructure:"api_key_env"`
	SafeTokens        int    `mapstructure:"safe_tokens"`
	MaxTokens         int    `mapstructure:"max_tokens"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// StoreConfig selects the result store backend: memory, postgres or mongo.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type providerDefaults struct {
	model, baseURL, keyEnv string
	safeTokens             int
}

var knownProviders = map[string]providerDefaults{
	"openai":     {"gpt-4o-mini", "", "OPENAI_API_KEY", 8000},
	"anthropic":  {"claude-3-5-sonnet-latest", "", "ANTHROPIC_API_KEY", 12000},
	"perplexity": {"sonar", "https://api.perplexity.ai", "PERPLEXITY_API_KEY", 6000},
	"deepseek":   {"deepseek-chat", "https://api.deepseek.com/v1", "DEEPSEEK_API_KEY", 6000},
	"gemini":     {"gemini-1.5-flash", "", "GEMINI_API_KEY", 16000},
	"ollama":     {"llama3.1", "http://localhost:11434", "", 3000},
}

// Load reads configuration from configPath, or from grader.yaml in ./config
// or the working directory when configPath is empty. Environment variables
// with the GRADER_ prefix override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(10<<20))
	v.SetDefault("pipeline.priority", []string{"anthropic", "openai", "deepseek", "perplexity"})
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.call_timeout", 2*time.Minute)
	v.SetDefault("pipeline.max_depth", 2)
	v.SetDefault("pipeline.synthesis", false)
	v.SetDefault("pipeline.carry_chars", 600)
	v.SetDefault("pipeline.headroom", 0.1)
	for name, d := range knownProviders {
		v.SetDefault("providers."+name+".model", d.model)
		v.SetDefault("providers."+name+".base_url", d.baseURL)
		v.SetDefault("providers."+name+".api_key_env", d.keyEnv)
		v.SetDefault("providers."+name+".safe_tokens", d.safeTokens)
		v.SetDefault("providers."+name+".max_tokens", 4096)
		v.SetDefault("providers."+name+".requests_per_minute", 0)
	}
	v.SetDefault("cache.size", 0)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", "grader")
	v.SetDefault("store.collection", "results")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("grader")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("GRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be >= 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.MaxDepth < 0 {
		return fmt.Errorf("pipeline.max_depth must be >= 0, got %d", c.Pipeline.MaxDepth)
	}
	if c.Pipeline.Headroom < 0 || c.Pipeline.Headroom >= 1 {
		return fmt.Errorf("pipeline.headroom must be in [0,1), got %g", c.Pipeline.Headroom)
	}
	for _, p := range c.Pipeline.Priority {
		if _, ok := c.Providers[p]; !ok {
			return fmt.Errorf("pipeline.priority names unknown provider %q", p)
		}
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres", "mongo":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// Limits returns the per-provider safe token thresholds.
func (c *Config) Limits() map[string]int {
	out := make(map[string]int, len(c.Providers))
	for name, p := range c.Providers {
		if p.SafeTokens > 0 {
			out[name] = p.SafeTokens
		}
	}
	return out
}

// ProviderSettings resolves API keys from the environment and returns the
// settings the model factory needs for every configured provider.
func (c *Config) ProviderSettings() map[string]models.Settings {
	out := make(map[string]models.Settings, len(c.Providers))
	for name, p := range c.Providers {
		s := models.Settings{
			Provider:          name,
			Model:             p.Model,
			BaseURL:           p.BaseURL,
			MaxTokens:         p.MaxTokens,
			RequestsPerMinute: p.RequestsPerMinute,
		}
		if p.APIKeyEnv != "" {
			s.APIKey = os.Getenv(p.APIKeyEnv)
		}
		out[name] = s
	}
	return out
}
