package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_TotalOverAllSelections(t *testing.T) {
	r := Default()
	languages := append(r.Languages(), "FR", "", "klingon")
	categories := []Category{"", "Recognition", "識別", "Horror Story", "恐怖故事", "does not exist"}

	for _, lang := range languages {
		for _, cat := range append(r.Categories(lang), categories...) {
			assert.NotEmpty(t, ResolvePrompt(lang, cat), "prompt for (%q, %q)", lang, cat)
			assert.NotEmpty(t, ResolveButtonLabel(lang, cat), "label for (%q, %q)", lang, cat)
		}
	}
}

func TestResolve_KnownPrompts(t *testing.T) {
	testCases := []struct {
		lang     Language
		category Category
		want     string
	}{
		{EN, "Recognition", "Describe this image"},
		{EN, "Motivational Story", "Generate a motivational story based on this image"},
		{EN, "Funny Story", "Generate a funny story based on this image"},
		{EN, "Romantic Story", "Generate a romantic story based on this image"},
		{EN, "Horror Story", "Generate a horror story based on this image"},
		{ZHHant, "識別", "請用繁體中文描述圖片中的內容"},
		{ZHHant, "激勵故事", "請用繁體中文根據這張圖片生成一個激勵的故事"},
		{ZHHant, "恐怖故事", "請用繁體中文根據這張圖片生成一個恐怖的故事"},
	}
	for _, tc := range testCases {
		t.Run(string(tc.lang)+"/"+string(tc.category), func(t *testing.T) {
			assert.Equal(t, tc.want, ResolvePrompt(tc.lang, tc.category))
		})
	}
}

func TestResolve_UnknownCategoryFallsBackToLanguageDefault(t *testing.T) {
	assert.Equal(t, "Describe this image", ResolvePrompt(EN, "Sci-Fi Story"))
	assert.Equal(t, "請用繁體中文描述圖片中的內容", ResolvePrompt(ZHHant, "Sci-Fi Story"))
	// Categories are scoped per language.
	assert.Equal(t, "請用繁體中文描述圖片中的內容", ResolvePrompt(ZHHant, "Horror Story"))
	assert.Equal(t, "Describe this image", ResolvePrompt(EN, "恐怖故事"))
}

func TestResolve_UnknownLanguageBehavesAsEnglish(t *testing.T) {
	assert.Equal(t, ResolvePrompt(EN, "Funny Story"), ResolvePrompt("FR", "Funny Story"))
	assert.Equal(t, ResolveButtonLabel(EN, "Funny Story"), ResolveButtonLabel("FR", "Funny Story"))
}

func TestResolve_LenientCategoryMatching(t *testing.T) {
	assert.Equal(t, "Generate a horror story based on this image", ResolvePrompt(EN, "  horror story "))
	assert.Equal(t, Category("Horror Story"), Default().Resolve("en", "HORROR STORY").Category)
}

func TestResolve_PromptAndLabelReferToSameCategory(t *testing.T) {
	r := Default()
	tmpl := r.Resolve(EN, "Recognition")
	assert.Equal(t, Category("Recognition"), tmpl.Category)
	assert.Equal(t, r.ResolvePrompt(EN, tmpl.Category), tmpl.PromptText)
	assert.Equal(t, r.ResolveButtonLabel(EN, tmpl.Category), tmpl.ButtonLabel)

	fallback := r.Resolve(EN, "nope")
	assert.Equal(t, r.DefaultCategory(EN), fallback.Category)
	assert.Equal(t, r.ResolveButtonLabel(EN, "nope"), r.ResolveButtonLabel(EN, fallback.Category))
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, EN, ParseLanguage("EN"))
	assert.Equal(t, EN, ParseLanguage("english"))
	assert.Equal(t, ZHHant, ParseLanguage("中文"))
	assert.Equal(t, ZHHant, ParseLanguage("zh-TW"))
	assert.Equal(t, ZHHant, ParseLanguage(" ZH-Hant "))
	assert.Equal(t, EN, ParseLanguage("de"))

	_, ok := LookupLanguage("de")
	assert.False(t, ok)
}

func TestDefaultCategory(t *testing.T) {
	assert.Equal(t, Category("Recognition"), Default().DefaultCategory(EN))
	assert.Equal(t, Category("識別"), Default().DefaultCategory(ZHHant))
	assert.Equal(t, Category("Recognition"), Default().DefaultCategory("FR"))
}

func TestNewResolver_ExtraTemplates(t *testing.T) {
	r := NewResolver(map[Language][]Template{
		EN: {
			{Category: "Haiku", PromptText: "Write a haiku about this image", ButtonLabel: "Haiku"},
			{Category: "recognition", PromptText: "Describe this image in detail"},
			{Category: "Empty", PromptText: "   "},
			{Category: "", PromptText: "ignored"},
		},
		"FR": {
			{Category: "Poème", PromptText: "Écris un poème"},
		},
	})

	assert.Equal(t, "Write a haiku about this image", r.ResolvePrompt(EN, "Haiku"))
	assert.Equal(t, "Describe this image in detail", r.ResolvePrompt(EN, "Recognition"))
	assert.Equal(t, "Describe Image", r.ResolveButtonLabel(EN, "Recognition"), "empty label keeps built-in")
	assert.Equal(t, "Describe this image in detail", r.ResolvePrompt(EN, "Empty"), "blank prompt is not added")
	assert.Len(t, r.Categories(EN), 6)
	assert.Len(t, r.Languages(), 2)

	// The built-in table is untouched.
	require.Len(t, Default().Categories(EN), 5)
	assert.Equal(t, "Describe this image", ResolvePrompt(EN, "Recognition"))
}

func TestNewResolver_LabelDefaultsToCategoryName(t *testing.T) {
	r := NewResolver(map[Language][]Template{ZHHant: {{Category: "詩", PromptText: "請用繁體中文根據這張圖片寫一首詩"}}})
	assert.Equal(t, "詩", r.ResolveButtonLabel(ZHHant, "詩"))
}
