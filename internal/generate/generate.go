// Package generate produces the documentary plan, its narration script,
// album art, and narration audio on top of the llm backends.
package generate

import (
	"context"
	"errors"

	"github.com/kalambet/musicdoc/internal/music"
)

// ErrInvalidOutput is returned when a model answers with JSON that does not
// describe a usable plan or narration.
var ErrInvalidOutput = errors.New("invalid generator output")

// DefaultNarrationTargetSecs is used when a request does not set a target.
const DefaultNarrationTargetSecs = 30

// PlanRequest is the input to plan generation.
type PlanRequest struct {
	Topic               string
	Prompt              string
	NarrationTargetSecs int
}

// Planner drafts the chronological track slots for a topic.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*music.Plan, error)
}

// NarrationRequest is the input to narration generation.
type NarrationRequest struct {
	Topic               string
	Summary             string
	Prompt              string
	TrackSlots          []music.TrackSlot
	Selections          []music.Selection
	NarrationTargetSecs int
}

// Narrator writes the intro, per-slot segments and outro.
type Narrator interface {
	Narrate(ctx context.Context, req NarrationRequest) (*music.Narration, error)
}

// Art is a generated cover image reference.
type Art struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// ArtGenerator is best effort: it returns nil instead of an error.
type ArtGenerator interface {
	Generate(ctx context.Context, topic, prompt string) *Art
}

// Synthesizer turns narration text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

func targetSecs(n int) int {
	if n <= 0 {
		return DefaultNarrationTargetSecs
	}
	return n
}
