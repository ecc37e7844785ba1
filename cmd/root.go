package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"picturereader/internal/app"
	"picturereader/internal/config"
	"picturereader/internal/inputprocessor"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "picturereader",
	Short: "Picture Reader CLI",
	Long: `Picture Reader turns a picture into text with a generative vision model: a plain
description, or a motivational, funny, romantic or horror story, in English or
Traditional Chinese.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipAppInit(cmd) {
			return nil
		}

		var cfg *config.Config
		var err error
		if configFile != "" {
			cfg, err = config.Load(viper.New(), configFile)
		} else {
			cfg, err = config.LoadConfig()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cmd.Context(), cfg, inputprocessor.New(inputprocessor.WithStdin(cmd.InOrStdin())))
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func skipAppInit(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "version", "completion", "picturereader":
		return true
	}
	return cmd.Parent() != nil && cmd.Parent().Name() == "completion"
}

func Execute() {
	if err := ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ExecuteContext runs the root command with ctx and releases the app the
// command ran with, whether it failed or not.
func ExecuteContext(ctx context.Context) error {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if cmd != nil {
		if appInstance, appErr := GetAppFromContext(cmd.Context()); appErr == nil {
			appInstance.Close()
		}
		// cobra keeps a command's context between executions.
		cmd.SetContext(ctx)
	}
	return err
}

type contextKey string

const appKey contextKey = "app"

// GetAppFromContext returns the app built by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./config.yaml or ~/.config/picturereader/config.yaml)")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(costCmd)
}
