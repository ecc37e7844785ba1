// Package speech reads recognition results aloud.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"

	"picturereader/internal/config"
	"picturereader/internal/prompts"
)

// Speaker speaks text in a language. A new Speak replaces whatever is being
// spoken; Stop silences the current utterance.
type Speaker interface {
	Speak(ctx context.Context, text string, lang prompts.Language) error
	Stop()
}

// Locale maps a prompt language to the BCP 47 tag used for speech.
func Locale(lang prompts.Language) string {
	if lang == prompts.ZHHant {
		return "zh-TW"
	}
	return "en"
}

// New builds the speaker selected by cfg.Speech.Engine.
func New(cfg *config.Config) (Speaker, error) {
	switch cfg.Speech.Engine {
	case "", "none":
		return NoopSpeaker{}, nil
	case "system":
		return NewSystemSpeaker(), nil
	case "openai":
		return NewOpenAISpeaker(cfg.Provider.OpenAIAPIKey, cfg.Speech.Voice, cfg.Speech.OutputDir)
	default:
		return nil, fmt.Errorf("unknown speech engine %q", cfg.Speech.Engine)
	}
}

// ErrUnavailable is returned by Speak when no speech engine is configured.
var ErrUnavailable = errors.New("speech output is not available")

// NoopSpeaker is the speaker of the "none" engine: it speaks nothing and says so.
type NoopSpeaker struct{}

func (NoopSpeaker) Speak(context.Context, string, prompts.Language) error { return ErrUnavailable }
func (NoopSpeaker) Stop()                                                 {}

// runFunc runs one external command to completion.
type runFunc func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// SystemSpeaker speaks through the platform's command line synthesizer:
// `say` on macOS and `espeak-ng` elsewhere.
type SystemSpeaker struct {
	run  runFunc
	goos string

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

var _ Speaker = (*SystemSpeaker)(nil)

func NewSystemSpeaker() *SystemSpeaker {
	return &SystemSpeaker{run: execRun, goos: runtime.GOOS}
}

func (s *SystemSpeaker) command(sentence string, lang prompts.Language) (string, []string) {
	if s.goos == "darwin" {
		voice := "Samantha"
		if lang == prompts.ZHHant {
			voice = "Mei-Jia"
		}
		return "say", []string{"-v", voice, sentence}
	}
	voice := "en"
	if lang == prompts.ZHHant {
		voice = "cmn"
	}
	return "espeak-ng", []string{"-v", voice, sentence}
}

// Speak blocks until every sentence has been spoken, the utterance is
// replaced or stopped, or ctx ends. A replaced utterance returns nil.
func (s *SystemSpeaker) Speak(ctx context.Context, text string, lang prompts.Language) error {
	parts := SplitSentences(text, lang)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	for _, sentence := range parts {
		if ctx.Err() != nil {
			return nil
		}
		name, args := s.command(sentence, lang)
		if err := s.run(ctx, name, args...); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to speak with %s: %w", name, err)
		}
	}
	log.Debugf("Spoke %d sentence(s) in %s", len(parts), Locale(lang))
	return nil
}

func (s *SystemSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
