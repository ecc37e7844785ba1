package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"picturereader/internal/app"
	"picturereader/internal/clipboard"
	"picturereader/internal/clix"
	"picturereader/internal/i18n"
	"picturereader/internal/recognition"
	"picturereader/internal/speech"
)

var (
	recognizeSpeak bool
	recognizeCopy  bool
	recognizeJSON  bool
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image|url|->",
	Short: "Describe an image or tell a story about it",
	Long: `Loads an image from a file, an http(s) URL or standard input ("-"), sends it with the
prompt of the selected language and category, and prints the model's answer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		sel, err := clix.ParseSelection(cmd.Flags(), appInstance.DefaultLanguage)
		if err != nil {
			return err
		}
		i18n.SetLanguage(sel.Language)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		img, err := appInstance.Images.Process(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load image: %w", err)
		}

		state, ticket, err := runRecognition(ctx, cmd, appInstance, img.Image, img.Source, sel)
		if err != nil {
			return err
		}

		if recognizeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(struct {
				RequestID string `json:"request_id"`
				recognition.StateView
			}{ticket.ID.String(), recognition.View(state)}); err != nil {
				return err
			}
		}

		switch st := state.(type) {
		case recognition.Error:
			return fmt.Errorf("recognition failed: %s", st.Message)
		case recognition.Success:
			if !recognizeJSON {
				fmt.Fprintln(cmd.OutOrStdout(), st.OutputText)
			}
		}

		if recognizeCopy {
			copyResult(cmd, appInstance, state, sel)
		}
		if recognizeSpeak {
			text, _ := recognition.OutputText(state)
			err := appInstance.Speaker.Speak(ctx, text, sel.Language)
			switch {
			case errors.Is(err, speech.ErrUnavailable):
				fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString(i18n.T(i18n.KeySpeakUnavailable)))
			case err != nil:
				return fmt.Errorf("failed to speak result: %w", err)
			}
		}
		return nil
	},
}

// runRecognition submits the image and waits for its terminal state, printing
// the button label and the loading message on stderr while it runs.
func runRecognition(ctx context.Context, cmd *cobra.Command, a *app.App, image []byte, source string, sel clix.Selection) (recognition.State, recognition.Ticket, error) {
	sub, err := a.Coordinator.SubmitImage(image, sel.Language, sel.Category, recognition.WithSource(source))
	if err != nil {
		return nil, sub.Ticket, fmt.Errorf("failed to submit recognition: %w", err)
	}
	ticket := sub.Ticket

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "%s %s\n", color.CyanString(sub.Template.ButtonLabel), color.New(color.Faint).Sprintf("(%s / %s)", sub.Language, sub.Template.Category))
	if a.Coordinator.State().Kind() == recognition.KindLoading {
		fmt.Fprintln(errOut, i18n.T(i18n.KeyRecognizing))
	}

	state, err := a.Coordinator.Wait(ctx, ticket)
	if err != nil {
		if errors.Is(err, recognition.ErrSuperseded) || errors.Is(err, recognition.ErrClosed) {
			return nil, ticket, fmt.Errorf("recognition %s did not finish: %w", ticket.ID, err)
		}
		a.Coordinator.Reset()
		return nil, ticket, fmt.Errorf("recognition %s interrupted: %w", ticket.ID, err)
	}
	return state, ticket, nil
}

func copyResult(cmd *cobra.Command, a *app.App, state recognition.State, sel clix.Selection) {
	errOut := cmd.ErrOrStderr()
	if a.Clipboard == nil {
		fmt.Fprintln(errOut, color.YellowString("Clipboard is disabled in the configuration"))
		return
	}
	msg, err := a.Clipboard.CopyState(state, sel.Language)
	switch {
	case errors.Is(err, clipboard.ErrNothingToCopy):
		fmt.Fprintln(errOut, color.YellowString(msg))
	case err != nil:
		fmt.Fprintf(errOut, "%s: %v\n", color.RedString("ERROR"), err)
	default:
		fmt.Fprintln(errOut, color.GreenString(msg))
	}
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	clix.AddSelectionFlags(recognizeCmd.Flags())
	recognizeCmd.Flags().BoolVar(&recognizeSpeak, "speak", false, "Read the result aloud with the configured speech engine")
	recognizeCmd.Flags().BoolVar(&recognizeCopy, "copy", false, "Copy the result to the clipboard")
	recognizeCmd.Flags().BoolVar(&recognizeJSON, "json", false, "Print the final state as JSON")
}
