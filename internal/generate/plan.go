package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/musicdoc/internal/llm"
	"github.com/kalambet/musicdoc/internal/music"
)

const maxAlternates = 2

// PlanGenerator asks a chat model for a documentary plan.
type PlanGenerator struct {
	chat   llm.Chatter
	model  string
	logger *slog.Logger
}

// NewPlanGenerator creates a PlanGenerator using the given chat backend and model.
func NewPlanGenerator(chat llm.Chatter, model string) *PlanGenerator {
	return &PlanGenerator{chat: chat, model: model, logger: slog.Default()}
}

// Plan returns a validated plan or an error wrapping ErrInvalidOutput when
// the model output cannot be used.
func (g *PlanGenerator) Plan(ctx context.Context, req PlanRequest) (*music.Plan, error) {
	raw, err := g.chat.Chat(ctx, llm.ChatRequest{
		Model:    g.model,
		Messages: BuildPlanPrompt(req),
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	var plan music.Plan
	if err := llm.DecodeJSON(raw, &plan); err != nil {
		g.logger.Warn("plan output is not JSON", "error", err)
		return nil, fmt.Errorf("%w: plan: %v", ErrInvalidOutput, err)
	}
	normalizePlan(&plan, req.Topic)
	if err := music.Validate(&plan); err != nil {
		return nil, fmt.Errorf("%w: plan: %v", ErrInvalidOutput, err)
	}

	g.logger.Debug("plan generated", "title", plan.Title, "slots", len(plan.TrackSlots))
	return &plan, nil
}

// normalizePlan fills the fields a model commonly leaves out.
func normalizePlan(p *music.Plan, topic string) {
	if strings.TrimSpace(p.Topic) == "" {
		p.Topic = topic
	}
	for i := range p.TrackSlots {
		s := &p.TrackSlots[i]
		if strings.TrimSpace(s.SlotID) == "" {
			s.SlotID = fmt.Sprintf("slot-%d", i+1)
		}
		if len(s.Alternates) > maxAlternates {
			s.Alternates = s.Alternates[:maxAlternates]
		}
	}
}
