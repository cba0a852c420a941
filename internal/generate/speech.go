package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/musicdoc/internal/llm"
)

// SpeechSynthesizer renders narration through a text-to-speech backend.
type SpeechSynthesizer struct {
	speaker llm.Speaker
	model   string
	voice   string
	speed   float64
}

// NewSpeechSynthesizer creates a SpeechSynthesizer with fixed voice settings.
func NewSpeechSynthesizer(speaker llm.Speaker, model, voice string, speed float64) *SpeechSynthesizer {
	return &SpeechSynthesizer{speaker: speaker, model: model, voice: voice, speed: speed}
}

func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("synthesize: empty text")
	}
	audio, err := s.speaker.Speak(ctx, llm.SpeechRequest{
		Model: s.model,
		Voice: s.voice,
		Speed: s.speed,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return audio, nil
}
