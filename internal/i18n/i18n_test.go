package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"picturereader/internal/prompts"
)

func TestTranslate(t *testing.T) {
	assert.Equal(t, "已複製到剪貼板", Translate(prompts.ZHHant, KeyCopySuccess))
	assert.Equal(t, "Nothing to copy", Translate(prompts.EN, KeyCopyFail))
	assert.Equal(t, "Select Category", Translate(prompts.Language("fr"), KeySelectCategory))
	assert.Equal(t, "no_such_key", Translate(prompts.ZHHant, "no_such_key"))
}

func TestEveryKeyTranslated(t *testing.T) {
	for key := range translations[prompts.EN] {
		assert.NotEmpty(t, translations[prompts.ZHHant][key], key)
	}
}

func TestSetLanguage(t *testing.T) {
	defer SetLanguage(GetLanguage())

	SetLanguage(prompts.ZHHant)
	assert.Equal(t, "移除", T(KeyRemoveImage))
	SetLanguage(prompts.EN)
	assert.Equal(t, "Remove", T(KeyRemoveImage))
	assert.Equal(t, "中文", LanguageName(prompts.ZHHant))
}

func TestLabels(t *testing.T) {
	zh := Labels(prompts.ZHHant)
	assert.Equal(t, "圖片識別", zh[KeyTitle])
	assert.Equal(t, "選擇圖片", zh[KeySelectImage])
	assert.Equal(t, "複製文本", zh[KeyCopyDescription])
	assert.Len(t, zh, len(translations[prompts.EN]))

	assert.Equal(t, "Picture Reader", Labels(prompts.Language("fr"))[KeyTitle])
}
