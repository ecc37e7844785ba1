package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturereader/internal/prompts"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider.Name)
	assert.Equal(t, DefaultGeminiModel, cfg.Provider.GeminiModel)
	assert.Equal(t, "none", cfg.Provider.BlockThreshold)
	assert.Equal(t, 60*time.Second, cfg.Recognition.Timeout)
	assert.Equal(t, map[string]int{DefaultQueue: 1}, cfg.Worker.Queues)
	assert.Equal(t, ":8080", cfg.ListenAddress())
	assert.NoError(t, cfg.Validate())
	assert.ErrorContains(t, cfg.ValidateWorker(), "database.dsn")
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
provider:
  name: openai
  openai_model: gpt-4o
recognition:
  timeout: 15s
  prompts_file: /tmp/prompts.yaml
database:
  dsn: sqlite://history.db
pricing:
  openai:
    gpt-4o:
      input_per_token: 0.0000025
      output_per_token: 0.00001
log:
  level: debug
`)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PICTUREREADER_SERVER_PORT", "9090")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, "gpt-4o", cfg.Provider.OpenAIModel)
	assert.Equal(t, "sk-test", cfg.Provider.OpenAIAPIKey)
	assert.Equal(t, 15*time.Second, cfg.Recognition.Timeout)
	assert.Equal(t, "sqlite://history.db", cfg.Database.DSN)
	assert.Equal(t, ":9090", cfg.ListenAddress())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.InDelta(t, 0.00001, cfg.PricingFor("OpenAI")["gpt-4o"].OutputPerToken, 1e-12)
	assert.Nil(t, cfg.PricingFor("gemini"))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Provider.Name = "gemini"
		cfg.Provider.GeminiModel = DefaultGeminiModel
		cfg.Provider.BlockThreshold = "none"
		cfg.Server.Port = 8080
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"stub", func(c *Config) { c.Provider.Name = "stub" }, ""},
		{"unknown provider", func(c *Config) { c.Provider.Name = "llava" }, "provider.name"},
		{"missing gemini model", func(c *Config) { c.Provider.GeminiModel = "" }, "provider.gemini_model"},
		{"bad threshold", func(c *Config) { c.Provider.BlockThreshold = "maximum" }, "provider.block_threshold"},
		{"openai without model", func(c *Config) { c.Provider.Name = "openai" }, "provider.openai_model"},
		{"negative timeout", func(c *Config) { c.Recognition.Timeout = -time.Second }, "recognition.timeout"},
		{"openai speech without key", func(c *Config) { c.Speech.Engine = "openai" }, "openai_api_key"},
		{"unknown speech engine", func(c *Config) { c.Speech.Engine = "festival" }, "speech.engine"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative price", func(c *Config) {
			c.Pricing = map[string]map[string]PricingInfo{"gemini": {"gemini-1.5-flash": {InputPerToken: -1}}}
		}, "negative token cost"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWorker(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.ValidateWorker(), "database.dsn")

	cfg.Database.DSN = "sqlite://" + filepath.Join(t.TempDir(), "history.db")
	assert.ErrorContains(t, cfg.ValidateWorker(), "redis.address")

	cfg.Redis.Address = "localhost:6379"
	assert.ErrorContains(t, cfg.ValidateWorker(), "worker.concurrency")

	cfg.Worker.Concurrency = 2
	assert.ErrorContains(t, cfg.ValidateWorker(), "worker.queues")

	cfg.Worker.Queues = map[string]int{"recognition": 0}
	assert.ErrorContains(t, cfg.ValidateWorker(), "must be positive")

	cfg.Worker.Queues = map[string]int{"recognition": 1}
	assert.NoError(t, cfg.ValidateWorker())

	cfg.Database.DSN = "postgres://picturereader@localhost/picturereader"
	assert.NoError(t, cfg.ValidateWorker())
}

func TestPersistentDSN(t *testing.T) {
	assert.True(t, PersistentDSN("postgresql://db/app"))
	assert.True(t, PersistentDSN("sqlite:///var/lib/picturereader/history.db"))
	assert.True(t, PersistentDSN("file:history.db?cache=shared"))
	assert.False(t, PersistentDSN(""))
	assert.False(t, PersistentDSN("mysql://db/app"))
}

func TestLoadPromptTemplates(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.yaml", `
EN:
  - category: Haiku
    prompt: Write a haiku about this image
    label: Write a Haiku
中文:
  - category: 詩
    prompt: 請用繁體中文根據這張圖片寫一首詩
FR:
  - category: Poème
    prompt: Écris un poème
`)
	extra, err := LoadPromptTemplates(path)
	require.NoError(t, err)
	assert.Len(t, extra, 2)
	assert.Equal(t, []prompts.Template{{Category: "Haiku", PromptText: "Write a haiku about this image", ButtonLabel: "Write a Haiku"}}, extra[prompts.EN])

	r, err := BuildResolver(path)
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku about this image", r.ResolvePrompt(prompts.EN, "Haiku"))
	assert.Equal(t, "詩", r.ResolveButtonLabel(prompts.ZHHant, "詩"))
}

func TestBuildResolver_Errors(t *testing.T) {
	r, err := BuildResolver("")
	require.NoError(t, err)
	assert.Equal(t, "Describe this image", r.ResolvePrompt(prompts.EN, "Recognition"))

	_, err = BuildResolver(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "prompts file not found")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "EN: [unclosed")
	_, err = BuildResolver(bad)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestResolvePromptsPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := ResolvePromptsPath("custom.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, defaultPromptDir, "custom.yaml"), p)

	p, err = ResolvePromptsPath("/etc/prompts.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/prompts.yaml", p)
}

func TestWatchPrompts_InitialLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.yaml", "EN:\n  - category: Haiku\n    prompt: Write a haiku\n")
	w, err := WatchPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku", w.Resolver().ResolvePrompt(prompts.EN, "Haiku"))

	_, err = WatchPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPromptWatcher_Reload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.yaml", "EN:\n  - category: Haiku\n    prompt: Write two haiku\n")
	w := &PromptWatcher{path: path, resolver: prompts.Default()}

	var got *prompts.Resolver
	w.OnChange(func(r *prompts.Resolver) { got = r })
	require.NoError(t, w.reload())

	require.NotNil(t, got)
	assert.Equal(t, "Write two haiku", got.ResolvePrompt(prompts.EN, "Haiku"))
	assert.Same(t, got, w.Resolver())

	require.NoError(t, os.WriteFile(path, []byte("EN: [broken"), 0o600))
	assert.Error(t, w.reload())
	assert.Same(t, got, w.Resolver(), "a failed reload keeps the last good resolver")
}
