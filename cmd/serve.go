package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"picturereader/internal/apihandlers"
	"picturereader/internal/app"
	"picturereader/internal/config"
	"picturereader/internal/metrics"
	"picturereader/internal/prompts"
)

var (
	serveAddr string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run Picture Reader as an HTTP API server",
	Long: `Starts an HTTP server exposing prompt resolution, recognition submission, the
recognition state (also as a server-sent event stream), history and cost reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
			if !cmd.Flags().Changed("addr") {
				cfg.Server.Addr = ""
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, appInstance)
	},
}

// runServer serves the API until ctx ends, then shuts down gracefully.
func runServer(ctx context.Context, appInstance *app.App) error {
	cfg := appInstance.Config
	metrics.Register()

	if cfg.Recognition.PromptsFile != "" {
		watcher, err := config.WatchPrompts(cfg.Recognition.PromptsFile)
		if err != nil {
			return fmt.Errorf("failed to watch prompts file: %w", err)
		}
		appInstance.Coordinator.SetResolver(watcher.Resolver())
		watcher.OnChange(func(r *prompts.Resolver) {
			appInstance.Coordinator.SetResolver(r)
		})
	}

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	apihandlers.NewAPIHandler(appInstance).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("Starting Picture Reader API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Closing the coordinator ends open state streams before the server drains.
		appInstance.Coordinator.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown: %w", err)
		}
		log.Info("Picture Reader API server stopped.")
		return nil
	})
	return group.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request")
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on, e.g. 'localhost:8080' (overrides server.addr)")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides server.port)")
}
