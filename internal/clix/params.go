package clix

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"picturereader/internal/prompts"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// Selection is the language and category picked on the command line.
type Selection struct {
	Language prompts.Language
	Category prompts.Category
}

// AddSelectionFlags registers --language and --category.
func AddSelectionFlags(flags *pflag.FlagSet) {
	flags.StringP("language", "l", "", "Prompt language (EN or 中文/zh-Hant); defaults to recognition.default_language")
	flags.StringP("category", "c", "", "Prompt category; defaults to the language's first category")
}

// ParseSelection reads the flags added by AddSelectionFlags. An explicitly
// given language must be supported; an unknown category is passed through and
// falls back to the default template when resolved.
func ParseSelection(flags *pflag.FlagSet, defaultLang prompts.Language) (Selection, error) {
	langStr, _ := flags.GetString("language")
	category, _ := flags.GetString("category")

	sel := Selection{Language: defaultLang, Category: prompts.Category(strings.TrimSpace(category))}
	if sel.Language == "" {
		sel.Language = prompts.EN
	}
	if strings.TrimSpace(langStr) != "" {
		lang, ok := prompts.LookupLanguage(langStr)
		if !ok {
			return sel, fmt.Errorf("unsupported language %q (use EN or 中文)", langStr)
		}
		sel.Language = lang
	}
	return sel, nil
}
