package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"picturereader/internal/prompts"
)

var promptsLanguage string

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the prompt categories of each language",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		resolver := appInstance.Resolver()

		langs := resolver.Languages()
		if promptsLanguage != "" {
			lang, ok := prompts.LookupLanguage(promptsLanguage)
			if !ok {
				return fmt.Errorf("unsupported language %q", promptsLanguage)
			}
			langs = []prompts.Language{lang}
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Language", "Category", "Label", "Prompt"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, lang := range langs {
			def := resolver.DefaultCategory(lang)
			for _, tmpl := range resolver.Templates(lang) {
				category := string(tmpl.Category)
				if tmpl.Category == def {
					category += " *"
				}
				table.Append([]string{string(lang), category, tmpl.ButtonLabel, tmpl.PromptText})
			}
		}
		table.Render()
		return nil
	},
}

func init() {
	promptsCmd.Flags().StringVarP(&promptsLanguage, "language", "l", "", "Only list this language")
	rootCmd.AddCommand(promptsCmd)
}
