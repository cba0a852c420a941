package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/musicdoc/internal/llm"
	"github.com/kalambet/musicdoc/internal/music"
)

// NarrationGenerator asks a chat model for the narration script.
type NarrationGenerator struct {
	chat   llm.Chatter
	model  string
	logger *slog.Logger
}

// NewNarrationGenerator creates a NarrationGenerator using the given chat backend and model.
func NewNarrationGenerator(chat llm.Chatter, model string) *NarrationGenerator {
	return &NarrationGenerator{chat: chat, model: model, logger: slog.Default()}
}

// Narrate returns a validated script whose song segments follow the order of
// req.TrackSlots, one per slot.
func (g *NarrationGenerator) Narrate(ctx context.Context, req NarrationRequest) (*music.Narration, error) {
	raw, err := g.chat.Chat(ctx, llm.ChatRequest{
		Model:    g.model,
		Messages: BuildNarrationPrompt(req),
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("narration generation: %w", err)
	}

	var n music.Narration
	if err := llm.DecodeJSON(raw, &n); err != nil {
		g.logger.Warn("narration output is not JSON", "error", err)
		return nil, fmt.Errorf("%w: narration: %v", ErrInvalidOutput, err)
	}
	if n.Intro.SlotID == "" {
		n.Intro.SlotID = "intro"
	}
	if n.Outro.SlotID == "" {
		n.Outro.SlotID = "outro"
	}
	if err := music.Validate(&n); err != nil {
		return nil, fmt.Errorf("%w: narration: %v", ErrInvalidOutput, err)
	}
	if err := n.AlignSegments(req.TrackSlots); err != nil {
		return nil, fmt.Errorf("%w: narration: %v", ErrInvalidOutput, err)
	}

	g.logger.Debug("narration generated", "segments", len(n.SongSegments))
	return &n, nil
}
