package cmd

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"picturereader/internal/clix"
	"picturereader/internal/tasks"
)

// batchListCmd lists the recognition jobs recorded in the job table.
var batchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued and finished recognition jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		jobs, err := appInstance.JobStore.ListJobs(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Job ID", "Status", "Image", "Queue", "Created At", "Updated At"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, job := range jobs {
			image := "N/A"
			if p, err := tasks.DecodeRecognitionPayload(job.Payload); err == nil {
				image = p.ImagePath
			}
			table.Append([]string{
				job.JobID.String(),
				job.Status,
				image,
				job.Queue,
				job.CreatedAt.Format(time.RFC3339),
				job.UpdatedAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	batchCmd.AddCommand(batchListCmd)
	batchListCmd.Flags().IntP("limit", "n", 20, "Maximum number of jobs to list")
	batchListCmd.Flags().IntP("offset", "o", 0, "Number of jobs to skip")
}
