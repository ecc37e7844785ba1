package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"picturereader/internal/clix"
	"picturereader/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past recognitions",
	Long:  `Displays finished recognitions recorded by the application.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHistoryCmd.RunE(cmd, args)
	},
}

var listHistoryCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent recognitions",
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

		recs, err := appInstance.HistoryService.List(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("error listing history: %w", err)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No recognitions found.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Request ID", "Language", "Category", "State", "Duration", "Result", "Created At"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, r := range recs {
			table.Append([]string{
				r.RequestID.String(),
				r.Language,
				r.Category,
				r.State,
				strconv.FormatInt(r.DurationMs, 10) + "ms",
				preview(resultText(r), 48),
				r.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var showHistoryCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show one recognition in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid request id %q: %w", args[0], err)
		}
		r, err := appInstance.HistoryService.Get(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		state := color.GreenString(r.State)
		if r.State == models.RecognitionStateError {
			state = color.RedString(r.State)
		}
		fmt.Fprintf(out, "Request:  %s\n", r.RequestID)
		fmt.Fprintf(out, "Source:   %s (%d bytes)\n", r.Source, r.ImageSize)
		fmt.Fprintf(out, "Prompt:   [%s / %s] %s\n", r.Language, r.Category, r.Prompt)
		fmt.Fprintf(out, "Provider: %s %s\n", r.ProviderName, r.ModelName)
		fmt.Fprintf(out, "State:    %s after %dms\n\n", state, r.DurationMs)
		fmt.Fprintln(out, resultText(r))
		return nil
	},
}

func resultText(r *models.Recognition) string {
	if r.OutputText != nil {
		return *r.OutputText
	}
	if r.ErrorMessage != nil {
		return *r.ErrorMessage
	}
	return ""
}

func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, listHistoryCmd} {
		c.Flags().IntP("limit", "n", 20, "Maximum number of recognitions to show")
		c.Flags().IntP("offset", "o", 0, "Number of recognitions to skip")
	}
	historyCmd.AddCommand(listHistoryCmd)
	historyCmd.AddCommand(showHistoryCmd)
	rootCmd.AddCommand(historyCmd)
}
