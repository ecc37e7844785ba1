package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownThresholds = map[string]bool{"none": true, "low": true, "medium": true, "high": true, "unspecified": true}

// Validate checks the fields required by the configured provider and features.
// Redis and worker settings are only checked by ValidateWorker.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider.Name) {
	case "gemini":
		if c.Provider.GeminiModel == "" {
			return errors.New("provider.gemini_model is required when provider.name is gemini")
		}
		if !knownThresholds[strings.ToLower(c.Provider.BlockThreshold)] {
			return fmt.Errorf("provider.block_threshold %q must be one of none, low, medium, high", c.Provider.BlockThreshold)
		}
	case "openai":
		if c.Provider.OpenAIModel == "" {
			return errors.New("provider.openai_model is required when provider.name is openai")
		}
	case "stub":
	default:
		return fmt.Errorf("provider.name %q must be one of gemini, openai, stub", c.Provider.Name)
	}

	if c.Recognition.Timeout < 0 {
		return errors.New("recognition.timeout must not be negative")
	}

	switch strings.ToLower(c.Speech.Engine) {
	case "", "none", "system":
	case "openai":
		if c.Provider.OpenAIAPIKey == "" {
			return errors.New("provider.openai_api_key is required when speech.engine is openai")
		}
	default:
		return fmt.Errorf("speech.engine %q must be one of system, openai, none", c.Speech.Engine)
	}

	if c.Server.Addr == "" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	for provider, models := range c.Pricing {
		if provider == "" {
			return errors.New("pricing contains an empty provider name")
		}
		for model, price := range models {
			if model == "" {
				return fmt.Errorf("pricing for provider '%s' contains an empty model name", provider)
			}
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}
	return nil
}

// PersistentDSN reports whether dsn names a database shared between processes
// (postgres or a sqlite file) rather than the in-memory store.
func PersistentDSN(dsn string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "sqlite://", "sqlite3://", "file:"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// ValidateWorker checks the settings used by the worker and batch commands.
// Job rows and history cross process boundaries, so the in-memory store is
// rejected.
func (c *Config) ValidateWorker() error {
	if !PersistentDSN(c.Database.DSN) {
		return errors.New("database.dsn must be a postgres:// or sqlite:// DSN for background jobs; the in-memory store is per process")
	}
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	return nil
}
