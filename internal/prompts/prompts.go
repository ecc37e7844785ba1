// Package prompts maps a (language, category) selection to the prompt text sent
// to the recognition provider and to the label shown on the submit action.
//
// Every lookup is total: an unsupported language resolves as EN and an unknown
// category resolves to the language's default description template, so a caller
// can never build an invalid request from a selection.
package prompts

import (
	"strings"
)

// Language is one of the supported prompt languages.
type Language string

const (
	EN     Language = "EN"
	ZHHant Language = "ZH-Hant"
)

// Category names a prompt template within a language.
type Category string

// Template is the resolved pair for a (language, category) selection.
type Template struct {
	Category    Category `json:"category"`
	PromptText  string   `json:"prompt"`
	ButtonLabel string   `json:"label"`
}

// The first template of each language is its default.
var builtin = map[Language][]Template{
	EN: {
		{Category: "Recognition", PromptText: "Describe this image", ButtonLabel: "Describe Image"},
		{Category: "Motivational Story", PromptText: "Generate a motivational story based on this image", ButtonLabel: "Tell a Motivational Story"},
		{Category: "Funny Story", PromptText: "Generate a funny story based on this image", ButtonLabel: "Tell a Funny Story"},
		{Category: "Romantic Story", PromptText: "Generate a romantic story based on this image", ButtonLabel: "Tell a Romantic Story"},
		{Category: "Horror Story", PromptText: "Generate a horror story based on this image", ButtonLabel: "Tell a Horror Story"},
	},
	ZHHant: {
		{Category: "識別", PromptText: "請用繁體中文描述圖片中的內容", ButtonLabel: "識別圖片"},
		{Category: "激勵故事", PromptText: "請用繁體中文根據這張圖片生成一個激勵的故事", ButtonLabel: "生成激勵故事"},
		{Category: "搞笑故事", PromptText: "請用繁體中文根據這張圖片生成一個搞笑的故事", ButtonLabel: "生成搞笑故事"},
		{Category: "浪漫故事", PromptText: "請用繁體中文根據這張圖片生成一個浪漫的故事", ButtonLabel: "生成浪漫故事"},
		{Category: "恐怖故事", PromptText: "請用繁體中文根據這張圖片生成一個恐怖的故事", ButtonLabel: "生成恐怖故事"},
	},
}

var supported = []Language{EN, ZHHant}

var languageAliases = map[string]Language{
	"en":      EN,
	"english": EN,
	"zh-hant": ZHHant,
	"zh":      ZHHant,
	"zh-tw":   ZHHant,
	"zh_tw":   ZHHant,
	"zh-hk":   ZHHant,
	"中文":      ZHHant,
	"繁體中文":    ZHHant,
}

// LookupLanguage reports the language named by s, accepting the aliases used by
// the CLI and the HTTP API.
func LookupLanguage(s string) (Language, bool) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(s))]
	return lang, ok
}

// ParseLanguage is LookupLanguage with the EN fallback applied.
func ParseLanguage(s string) Language {
	if lang, ok := LookupLanguage(s); ok {
		return lang
	}
	return EN
}

// Resolver holds an immutable template table.
type Resolver struct {
	templates map[Language][]Template
}

var defaultResolver = NewResolver(nil)

// Default returns the resolver backed by the built-in table only.
func Default() *Resolver { return defaultResolver }

// NewResolver builds a resolver from the built-in table plus extra templates.
// An extra template whose category already exists replaces the non-empty parts
// of the built-in one; a new category is appended when its prompt is non-empty.
func NewResolver(extra map[Language][]Template) *Resolver {
	r := &Resolver{templates: make(map[Language][]Template, len(builtin))}
	for lang, list := range builtin {
		r.templates[lang] = append([]Template(nil), list...)
	}
	for lang, list := range extra {
		if _, ok := r.templates[lang]; !ok {
			continue
		}
		for _, t := range list {
			r.merge(lang, t)
		}
	}
	return r
}

func (r *Resolver) merge(lang Language, t Template) {
	name := Category(strings.TrimSpace(string(t.Category)))
	if name == "" {
		return
	}
	list := r.templates[lang]
	if i := indexOf(list, name); i >= 0 {
		if p := strings.TrimSpace(t.PromptText); p != "" {
			list[i].PromptText = p
		}
		if l := strings.TrimSpace(t.ButtonLabel); l != "" {
			list[i].ButtonLabel = l
		}
		return
	}
	prompt := strings.TrimSpace(t.PromptText)
	if prompt == "" {
		return
	}
	label := strings.TrimSpace(t.ButtonLabel)
	if label == "" {
		label = string(name)
	}
	r.templates[lang] = append(list, Template{Category: name, PromptText: prompt, ButtonLabel: label})
}

func indexOf(list []Template, category Category) int {
	want := strings.TrimSpace(string(category))
	for i, t := range list {
		if strings.EqualFold(string(t.Category), want) {
			return i
		}
	}
	return -1
}

func (r *Resolver) normalize(lang Language) Language {
	if _, ok := r.templates[lang]; ok {
		return lang
	}
	if parsed, ok := LookupLanguage(string(lang)); ok {
		return parsed
	}
	return EN
}

// Resolve returns the template used for the selection. Its Category field is
// the canonical category actually applied, which differs from the argument when
// the fallback kicked in.
func (r *Resolver) Resolve(lang Language, category Category) Template {
	list := r.templates[r.normalize(lang)]
	if i := indexOf(list, category); i >= 0 {
		return list[i]
	}
	return list[0]
}

// ResolvePrompt returns the prompt text for the selection.
func (r *Resolver) ResolvePrompt(lang Language, category Category) string {
	return r.Resolve(lang, category).PromptText
}

// ResolveButtonLabel returns the submit label for the selection.
func (r *Resolver) ResolveButtonLabel(lang Language, category Category) string {
	return r.Resolve(lang, category).ButtonLabel
}

// Languages lists the supported languages, primary language first.
func (r *Resolver) Languages() []Language {
	return append([]Language(nil), supported...)
}

// Categories lists the categories of a language in display order.
func (r *Resolver) Categories(lang Language) []Category {
	list := r.templates[r.normalize(lang)]
	out := make([]Category, len(list))
	for i, t := range list {
		out[i] = t.Category
	}
	return out
}

// Templates lists the templates of a language in display order.
func (r *Resolver) Templates(lang Language) []Template {
	return append([]Template(nil), r.templates[r.normalize(lang)]...)
}

// DefaultCategory is the category selected when the language changes.
func (r *Resolver) DefaultCategory(lang Language) Category {
	return r.templates[r.normalize(lang)][0].Category
}

func ResolvePrompt(lang Language, category Category) string {
	return defaultResolver.ResolvePrompt(lang, category)
}

func ResolveButtonLabel(lang Language, category Category) string {
	return defaultResolver.ResolveButtonLabel(lang, category)
}
