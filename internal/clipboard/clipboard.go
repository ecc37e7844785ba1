// Package clipboard copies recognition output to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"picturereader/internal/i18n"
	"picturereader/internal/prompts"
	"picturereader/internal/recognition"
)

// ErrNothingToCopy is returned when the state carries no output text.
var ErrNothingToCopy = errors.New("nothing to copy")

// Copier writes Success output to the clipboard.
type Copier struct {
	write func(string) error
}

func New() *Copier {
	return &Copier{write: clipboard.WriteAll}
}

// Available reports whether a clipboard utility was found on this system.
func Available() bool {
	return !clipboard.Unsupported
}

// CopyState copies the output of a Success state and returns the localized
// confirmation. Any other state yields the localized "nothing to copy"
// message with ErrNothingToCopy.
func (c *Copier) CopyState(s recognition.State, lang prompts.Language) (string, error) {
	text, ok := recognition.OutputText(s)
	if !ok || strings.TrimSpace(text) == "" {
		return i18n.Translate(lang, i18n.KeyCopyFail), ErrNothingToCopy
	}
	if err := c.write(text); err != nil {
		return "", fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return i18n.Translate(lang, i18n.KeyCopySuccess), nil
}
