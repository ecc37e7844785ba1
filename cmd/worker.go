package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"picturereader/internal/app"
	"picturereader/internal/config"
	"picturereader/internal/prompts"
	"picturereader/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long:  `Starts the Asynq worker process that runs recognition jobs enqueued by 'picturereader batch'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		if err := runWorker(appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      cfg.Worker.Queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				log.WithFields(log.Fields{"task_id": taskID, "type": task.Type()}).Errorf("Asynq task failed: %v", err)
			}),
			Logger: log.StandardLogger(),
		},
	)

	var watcher *config.PromptWatcher
	if cfg.Recognition.PromptsFile != "" {
		w, err := config.WatchPrompts(cfg.Recognition.PromptsFile)
		if err != nil {
			return fmt.Errorf("failed to watch prompts file: %w", err)
		}
		watcher = w
	}

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.RecognitionDeps{
		Capability: appInstance.Recognizer,
		Resolver: func() *prompts.Resolver {
			if watcher != nil {
				return watcher.Resolver()
			}
			return appInstance.Resolver()
		},
		Images:   appInstance.Images,
		History:  appInstance.HistoryService,
		JobStore: appInstance.JobStore,
		Timeout:  cfg.Recognition.Timeout,
	})

	log.Infof("Starting Asynq worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Shutdown()
	log.Info("Worker shutdown complete.")
	return nil
}
