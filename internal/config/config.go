package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

type Config struct {
	Provider struct {
		Name           string `mapstructure:"name"` // "gemini", "openai" or "stub"
		GeminiAPIKey   string `mapstructure:"gemini_api_key"`
		GeminiModel    string `mapstructure:"gemini_model"`
		OpenAIAPIKey   string `mapstructure:"openai_api_key"`
		OpenAIModel    string `mapstructure:"openai_model"`
		BlockThreshold string `mapstructure:"block_threshold"` // none, low, medium, high
	} `mapstructure:"provider"`

	Recognition struct {
		Timeout         time.Duration `mapstructure:"timeout"`
		DefaultLanguage string        `mapstructure:"default_language"`
		PromptsFile     string        `mapstructure:"prompts_file"`
	} `mapstructure:"recognition"`

	Database struct {
		// postgres://... uses the pgx store, sqlite://path or file:path the sqlite store,
		// empty keeps history in memory.
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Speech struct {
		Engine    string `mapstructure:"engine"` // "system", "openai" or "none"
		Voice     string `mapstructure:"voice"`
		OutputDir string `mapstructure:"output_dir"`
	} `mapstructure:"speech"`

	Clipboard struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"clipboard"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`
}

const (
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultQueue       = "recognition"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "gemini")
	v.SetDefault("provider.gemini_api_key", "")
	v.SetDefault("provider.gemini_model", DefaultGeminiModel)
	v.SetDefault("provider.openai_api_key", "")
	v.SetDefault("provider.openai_model", DefaultOpenAIModel)
	v.SetDefault("provider.block_threshold", "none")

	v.SetDefault("recognition.timeout", 60*time.Second)
	v.SetDefault("recognition.default_language", "EN")
	v.SetDefault("recognition.prompts_file", "")

	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queues", map[string]int{DefaultQueue: 1})

	v.SetDefault("server.addr", "")
	v.SetDefault("server.port", 8080)

	v.SetDefault("speech.engine", "none")
	v.SetDefault("speech.voice", "alloy")
	v.SetDefault("speech.output_dir", "")

	v.SetDefault("clipboard.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory or
// ~/.config/picturereader using the global viper instance.
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper(), "")
}

// Load reads configuration into v. When configFile is empty the default search
// paths are used and a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "picturereader"))
		}
	}

	v.SetEnvPrefix("PICTUREREADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The provider keys are also honoured under their usual names.
	_ = v.BindEnv("provider.gemini_api_key", "PICTUREREADER_PROVIDER_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("provider.openai_api_key", "PICTUREREADER_PROVIDER_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

// ListenAddress returns the address the HTTP server binds to.
func (c *Config) ListenAddress() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return fmt.Sprintf(":%d", c.Server.Port)
}

// PricingFor returns the per-model pricing of a provider; nil when none is configured.
func (c *Config) PricingFor(provider string) map[string]PricingInfo {
	if c.Pricing == nil {
		return nil
	}
	return c.Pricing[strings.ToLower(provider)]
}
