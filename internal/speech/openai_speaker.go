package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/prompts"
)

type speechClient interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAISpeaker synthesizes each utterance with the OpenAI speech endpoint and
// writes it as an mp3 file under outputDir.
type OpenAISpeaker struct {
	client    speechClient
	voice     openai.SpeechVoice
	outputDir string
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	last   string
}

var _ Speaker = (*OpenAISpeaker)(nil)

func NewOpenAISpeaker(apiKey, voice, outputDir string) (*OpenAISpeaker, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openai speech engine requires an OpenAI API key")
	}
	return newOpenAISpeaker(openai.NewClient(apiKey), voice, outputDir), nil
}

func newOpenAISpeaker(client speechClient, voice, outputDir string) *OpenAISpeaker {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &OpenAISpeaker{
		client:    client,
		voice:     openai.SpeechVoice(voice),
		outputDir: outputDir,
		now:       time.Now,
	}
}

// LastFile returns the path of the most recently written utterance.
func (s *OpenAISpeaker) LastFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *OpenAISpeaker) Speak(ctx context.Context, text string, lang prompts.Language) error {
	parts := SplitSentences(text, lang)
	if len(parts) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          joinSentences(parts, lang),
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create speech output dir: %w", err)
	}
	path := filepath.Join(s.outputDir, fmt.Sprintf("speech-%s-%s.mp3", Locale(lang), s.now().Format("20060102-150405.000")))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create speech file: %w", err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		return fmt.Errorf("failed to write speech file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write speech file: %w", err)
	}

	s.mu.Lock()
	s.last = path
	s.mu.Unlock()
	log.Infof("Wrote speech audio to %s", path)
	return nil
}

func (s *OpenAISpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func joinSentences(parts []string, lang prompts.Language) string {
	sep := " "
	if lang == prompts.ZHHant {
		sep = ""
	}
	return strings.Join(parts, sep)
}
