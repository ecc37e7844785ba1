package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"picturereader/internal/clipboard"
	"picturereader/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database connectivity, provider configuration and local integrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		out := cmd.OutOrStdout()
		ok := color.GreenString("OK")

		fmt.Fprintln(out, "Checking database connectivity...")
		if err := appInstance.Store.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		fmt.Fprintf(out, "  database: %s\n", ok)

		r := appInstance.Recognizer
		status := r.Status()
		label := ok
		if status != store.ProviderStatusActive {
			label = color.YellowString(status.String())
		}
		fmt.Fprintf(out, "  provider: %s (%s, model %s)\n", label, r.Name(), r.ModelName())

		clip := color.YellowString("unavailable")
		if clipboard.Available() {
			clip = ok
		}
		fmt.Fprintf(out, "  clipboard: %s\n", clip)
		fmt.Fprintf(out, "  speech engine: %s\n", appInstance.Config.Speech.Engine)

		if status == store.ProviderStatusDisabled {
			return fmt.Errorf("recognition provider %s is disabled: set its API key", r.Name())
		}
		return nil
	},
}
