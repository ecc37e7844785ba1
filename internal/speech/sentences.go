package speech

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/prompts"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func englishTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			log.Warnf("Failed to create sentence tokenizer, speaking text unsplit: %v", err)
			return
		}
		tokenizer = t
	})
	return tokenizer
}

// SplitSentences breaks text into the units spoken one after another.
// Chinese text is split on full-width terminators; everything else goes
// through the English punkt tokenizer.
func SplitSentences(text string, lang prompts.Language) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if lang == prompts.ZHHant {
		return splitCJK(text)
	}
	t := englishTokenizer()
	if t == nil {
		return []string{text}
	}
	var out []string
	for _, s := range t.Tokenize(text) {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitCJK(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		switch r {
		case '。', '！', '？', '!', '?', '\n':
			flush()
		}
	}
	flush()
	return out
}
