// Package i18n provides the localized strings shown by the CLI and API.
package i18n

import (
	"sync"

	"picturereader/internal/prompts"
)

// Keys of the translation table.
const (
	KeyTitle            = "title"
	KeySelectImage      = "select_image"
	KeyRemoveImage      = "remove_image"
	KeySelectCategory   = "select_category"
	KeyCopySuccess      = "copy_success"
	KeyCopyFail         = "copy_fail"
	KeyCopyDescription  = "copy_description"
	KeyRecognizing      = "recognizing"
	KeySpeakUnavailable = "speak_unavailable"
)

var (
	mu      sync.RWMutex
	current = prompts.EN
)

var translations = map[prompts.Language]map[string]string{
	prompts.EN: {
		KeyTitle:            "Picture Reader",
		KeySelectImage:      "Select Image",
		KeyRemoveImage:      "Remove",
		KeySelectCategory:   "Select Category",
		KeyCopySuccess:      "Copied to clipboard",
		KeyCopyFail:         "Nothing to copy",
		KeyCopyDescription:  "Copy text",
		KeyRecognizing:      "Recognizing...",
		KeySpeakUnavailable: "Speech output is not available",
	},
	prompts.ZHHant: {
		KeyTitle:            "圖片識別",
		KeySelectImage:      "選擇圖片",
		KeyRemoveImage:      "移除",
		KeySelectCategory:   "選擇類別",
		KeyCopySuccess:      "已複製到剪貼板",
		KeyCopyFail:         "沒有內容可複製",
		KeyCopyDescription:  "複製文本",
		KeyRecognizing:      "識別中...",
		KeySpeakUnavailable: "語音輸出不可用",
	},
}

// T returns the translation for key in the current language.
func T(key string) string {
	return Translate(GetLanguage(), key)
}

// Translate returns the translation for key in lang. Missing entries fall back
// to English, then to the key itself.
func Translate(lang prompts.Language, key string) string {
	if strings, ok := translations[lang]; ok {
		if s, ok := strings[key]; ok {
			return s
		}
	}
	if s, ok := translations[prompts.EN][key]; ok {
		return s
	}
	return key
}

// Labels returns every UI string in lang, keyed like the translation table.
func Labels(lang prompts.Language) map[string]string {
	labels := make(map[string]string, len(translations[prompts.EN]))
	for key := range translations[prompts.EN] {
		labels[key] = Translate(lang, key)
	}
	return labels
}

// SetLanguage sets the current UI language.
func SetLanguage(lang prompts.Language) {
	mu.Lock()
	defer mu.Unlock()
	current = lang
}

// GetLanguage returns the current UI language.
func GetLanguage() prompts.Language {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// LanguageName returns the display name for a language.
func LanguageName(lang prompts.Language) string {
	switch lang {
	case prompts.EN:
		return "EN"
	case prompts.ZHHant:
		return "中文"
	default:
		return string(lang)
	}
}
