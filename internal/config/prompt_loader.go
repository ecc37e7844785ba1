package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"picturereader/internal/prompts"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/picturereader/prompts"

type promptEntry struct {
	Category string `yaml:"category"`
	Prompt   string `yaml:"prompt"`
	Label    string `yaml:"label"`
}

// ResolvePromptsPath returns the prompts file location. Absolute paths are used
// as is; relative names are looked up in ~/.config/picturereader/prompts.
func ResolvePromptsPath(configuredPath string) (string, error) {
	if configuredPath == "" || filepath.IsAbs(configuredPath) {
		return configuredPath, nil
	}
	if _, err := os.Stat(configuredPath); err == nil {
		return configuredPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultPromptDir, configuredPath), nil
}

// LoadPromptTemplates reads extra prompt templates keyed by language. Keys
// that do not name a supported language are skipped.
func LoadPromptTemplates(path string) (map[prompts.Language][]prompts.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("prompts file not found at '%s': %w", path, err)
		}
		return nil, fmt.Errorf("failed to read prompts file '%s': %w", path, err)
	}

	raw := make(map[string][]promptEntry)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file '%s': %w", path, err)
	}

	out := make(map[prompts.Language][]prompts.Template, len(raw))
	for key, entries := range raw {
		lang, ok := prompts.LookupLanguage(key)
		if !ok {
			log.Warnf("Ignoring prompts for unsupported language %q in %s", key, path)
			continue
		}
		for _, e := range entries {
			out[lang] = append(out[lang], prompts.Template{
				Category:    prompts.Category(strings.TrimSpace(e.Category)),
				PromptText:  e.Prompt,
				ButtonLabel: e.Label,
			})
		}
	}
	return out, nil
}

// BuildResolver returns the built-in resolver, extended with the templates of
// configuredPath when it is set.
func BuildResolver(configuredPath string) (*prompts.Resolver, error) {
	if configuredPath == "" {
		return prompts.Default(), nil
	}
	path, err := ResolvePromptsPath(configuredPath)
	if err != nil {
		return nil, err
	}
	extra, err := LoadPromptTemplates(path)
	if err != nil {
		return nil, err
	}
	return prompts.NewResolver(extra), nil
}

// PromptWatcher rebuilds the resolver whenever the prompts file changes.
type PromptWatcher struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	resolver *prompts.Resolver
	onChange []func(*prompts.Resolver)
}

// WatchPrompts loads configuredPath and starts watching it.
func WatchPrompts(configuredPath string) (*PromptWatcher, error) {
	path, err := ResolvePromptsPath(configuredPath)
	if err != nil {
		return nil, err
	}
	resolver, err := BuildResolver(path)
	if err != nil {
		return nil, err
	}

	w := &PromptWatcher{path: path, v: viper.New(), resolver: resolver}
	w.v.SetConfigFile(path)
	w.v.SetConfigType("yaml")
	w.v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			log.Errorf("prompts reload failed (%s): %v", evt.Name, err)
		}
	})
	w.v.WatchConfig()
	log.Infof("Watching prompts file %s", path)
	return w, nil
}

// Resolver returns the latest successfully loaded resolver.
func (w *PromptWatcher) Resolver() *prompts.Resolver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.resolver
}

// OnChange registers fn to receive every reloaded resolver.
func (w *PromptWatcher) OnChange(fn func(*prompts.Resolver)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

func (w *PromptWatcher) reload() error {
	resolver, err := BuildResolver(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.resolver = resolver
	listeners := append([]func(*prompts.Resolver){}, w.onChange...)
	w.mu.Unlock()

	log.Infof("Reloaded prompts from %s", w.path)
	for _, fn := range listeners {
		fn(resolver)
	}
	return nil
}
