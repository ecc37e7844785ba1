package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"picturereader/internal/clix"
	"picturereader/internal/fileingest"
	"picturereader/internal/tasks"
)

var batchRecursive bool

// batchCmd enqueues one recognition job per image of a directory.
var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Queue every image of a directory for background recognition",
	Long: `Discovers the images of a directory and enqueues one recognition job per image.
Jobs are run by 'picturereader worker'; results land in the history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		if err := appInstance.Config.ValidateWorker(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		sel, err := clix.ParseSelection(cmd.Flags(), appInstance.DefaultLanguage)
		if err != nil {
			return err
		}

		files, err := fileingest.DiscoverImageFiles(ctx, dir, batchRecursive)
		if err != nil {
			return fmt.Errorf("failed to discover images: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(files) == 0 {
			fmt.Fprintf(out, "No images found under %s\n", dir)
			return nil
		}
		tmpl := appInstance.Resolver().Resolve(sel.Language, sel.Category)
		fmt.Fprintf(out, "Discovered %d images under %s, queueing %q (%s)\n", len(files), dir, tmpl.Category, sel.Language)

		var queued, failed int
		for _, f := range files {
			info, err := appInstance.JobClient.EnqueueRecognitionJob(ctx, tasks.RecognitionPayload{
				ImagePath: f.Path,
				Language:  string(sel.Language),
				Category:  string(tmpl.Category),
			})
			if err != nil {
				failed++
				fmt.Fprintf(out, "  - %s %s: %v\n", color.RedString("ERROR"), f.Path, err)
				continue
			}
			queued++
			fmt.Fprintf(out, "  - %s %s (job %s)\n", color.GreenString("Queued"), f.Path, info.ID)
		}

		fmt.Fprintf(out, "\nQueued %d of %d images, %d failed\n", queued, len(files), failed)
		if failed > 0 {
			return fmt.Errorf("%d image(s) could not be queued", failed)
		}
		return nil
	},
}

func init() {
	clix.AddSelectionFlags(batchCmd.Flags())
	batchCmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "Descend into subdirectories")
	rootCmd.AddCommand(batchCmd)
}

