package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/clipboard"
	"picturereader/internal/config"
	"picturereader/internal/i18n"
	"picturereader/internal/inputprocessor"
	"picturereader/internal/metrics"
	"picturereader/internal/prompts"
	"picturereader/internal/recognition"
	"picturereader/internal/services"
	"picturereader/internal/speech"
	"picturereader/internal/store"
	"picturereader/internal/store/primary"
	"picturereader/internal/store/sqlite"
)

type App struct {
	Config *config.Config

	Store     store.Store
	JobStore  store.JobStore
	CostStore store.CostTrackingStore
	JobClient store.JobClient

	Recognizer  services.Recognizer
	Coordinator *recognition.Coordinator
	Images      inputprocessor.Processor

	HistoryService *services.HistoryService
	CostService    *services.CostService

	Speaker   speech.Speaker
	Clipboard *clipboard.Copier

	// DefaultLanguage is the configured recognition.default_language.
	DefaultLanguage prompts.Language
}

// NewApp wires every component from cfg. The returned App owns the store, the
// job client and the coordinator; release them with Close.
func NewApp(ctx context.Context, cfg *config.Config, inputProc inputprocessor.Processor) (*App, error) {
	ConfigureLogging(cfg)

	app := &App{Config: cfg, Images: inputProc}
	if app.Images == nil {
		app.Images = inputprocessor.New()
	}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initRecognizer(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initCoordinator(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initCollaborators(); err != nil {
		app.Close()
		return nil, err
	}

	log.Debug("Application initialization complete.")
	return app, nil
}

// ConfigureLogging applies the log section of cfg to the standard logrus logger.
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(cfg.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
}

// OpenStore picks the store implementation from the DSN scheme.
func OpenStore(ctx context.Context, dsn string) (store.Store, error) {
	switch {
	case dsn == "":
		log.Debug("No database DSN configured, keeping history in memory")
		return store.NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		ps, err := primary.NewPrimaryStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("init primary store: %w", err)
		}
		return ps, nil
	}
	if path, ok := sqlite.PathFromDSN(dsn); ok {
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported database DSN %q (expected postgres://, sqlite:// or file:)", dsn)
}

func (a *App) initStore(ctx context.Context) error {
	s, err := OpenStore(ctx, a.Config.Database.DSN)
	if err != nil {
		return err
	}
	a.Store = s
	a.JobStore = s
	a.CostStore = s
	return nil
}

func (a *App) initJobClient() error {
	cfg := a.Config
	jc, err := store.NewAsynqJobClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, config.DefaultQueue, a.JobStore)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initRecognizer() error {
	r, err := services.NewRecognizer(a.Config, a.CostStore)
	if err != nil {
		return fmt.Errorf("init recognition provider: %w", err)
	}
	if r.Status() == store.ProviderStatusDisabled {
		log.Warnf("Recognition provider %s is disabled; set its API key to enable it", r.Name())
	} else {
		log.Debugf("Using recognition provider %s (model %s)", r.Name(), r.ModelName())
	}
	a.Recognizer = r
	return nil
}

func (a *App) initCoordinator() error {
	resolver, err := config.BuildResolver(a.Config.Recognition.PromptsFile)
	if err != nil {
		return fmt.Errorf("init prompts: %w", err)
	}
	a.DefaultLanguage = prompts.ParseLanguage(a.Config.Recognition.DefaultLanguage)
	i18n.SetLanguage(a.DefaultLanguage)

	a.HistoryService = services.NewHistoryService(a.Store, a.Recognizer)
	a.CostService = services.NewCostService(a.CostStore)
	a.Coordinator = recognition.NewCoordinator(a.Recognizer,
		recognition.WithTimeout(a.Config.Recognition.Timeout),
		recognition.WithResolver(resolver),
		recognition.WithCompletionHook(a.HistoryService.Hook()),
		recognition.WithCompletionHook(metrics.ObserveCompletion),
	)
	return nil
}

func (a *App) initCollaborators() error {
	sp, err := speech.New(a.Config)
	if err != nil {
		return fmt.Errorf("init speech: %w", err)
	}
	a.Speaker = sp
	if a.Config.Clipboard.Enabled {
		a.Clipboard = clipboard.New()
	}
	return nil
}

// Resolver returns the prompt resolver currently used for submissions.
func (a *App) Resolver() *prompts.Resolver {
	if a.Coordinator == nil {
		return prompts.Default()
	}
	return a.Coordinator.Resolver()
}

// Close releases everything NewApp opened. It is safe on a partially
// initialized App.
func (a *App) Close() {
	if a.Speaker != nil {
		a.Speaker.Stop()
	}
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	if c, ok := a.Recognizer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Warnf("Error closing recognition provider: %v", err)
		}
	}
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Warnf("Error closing job client: %v", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warnf("Error closing store: %v", err)
		}
	}
}
