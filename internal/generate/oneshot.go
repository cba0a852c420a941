package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/musicdoc/internal/llm"
	"github.com/kalambet/musicdoc/internal/music"
	"github.com/kalambet/musicdoc/internal/timeline"
)

// minDraftEntries is the shortest usable one-shot timeline: intro, outro and
// at least two narration/song pairs.
const minDraftEntries = 6

// Documentarian writes a complete documentary in one step, without a job,
// video matching or narration audio.
type Documentarian interface {
	Compose(ctx context.Context, req PlanRequest) (*timeline.Documentary, error)
}

// DocumentaryGenerator asks a chat model for a whole interleaved timeline.
type DocumentaryGenerator struct {
	chat   llm.Chatter
	model  string
	logger *slog.Logger
}

// NewDocumentaryGenerator creates a DocumentaryGenerator using the given chat backend and model.
func NewDocumentaryGenerator(chat llm.Chatter, model string) *DocumentaryGenerator {
	return &DocumentaryGenerator{chat: chat, model: model, logger: slog.Default()}
}

type draftEntry struct {
	Type       timeline.Kind `json:"type" validate:"oneof=narration song"`
	Title      string        `json:"title" validate:"required"`
	Text       string        `json:"text" validate:"required_if=Type narration"`
	Artist     string        `json:"artist" validate:"required_if=Type song"`
	Album      string        `json:"album"`
	Year       string        `json:"year"`
	SearchHint string        `json:"youtube_hint"`
}

type draft struct {
	Title    string       `json:"title" validate:"required"`
	Topic    string       `json:"topic"`
	Summary  string       `json:"summary"`
	Timeline []draftEntry `json:"timeline" validate:"min=6,dive"`
}

// Compose returns the documentary with unresolved songs. Output that lacks
// either narration or songs wraps ErrInvalidOutput.
func (g *DocumentaryGenerator) Compose(ctx context.Context, req PlanRequest) (*timeline.Documentary, error) {
	raw, err := g.chat.Chat(ctx, llm.ChatRequest{
		Model:    g.model,
		Messages: BuildDocumentaryPrompt(req),
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("documentary generation: %w", err)
	}

	var d draft
	if err := llm.DecodeJSON(raw, &d); err != nil {
		g.logger.Warn("documentary output is not JSON", "error", err)
		return nil, fmt.Errorf("%w: documentary: %v", ErrInvalidOutput, err)
	}
	if err := music.Validate(&d); err != nil {
		return nil, fmt.Errorf("%w: documentary: %v", ErrInvalidOutput, err)
	}

	doc := d.documentary(req.Topic)
	if songs := timeline.Songs(doc.Timeline); songs == 0 || songs == len(doc.Timeline) {
		return nil, fmt.Errorf("%w: documentary: timeline needs both narration and songs", ErrInvalidOutput)
	}
	g.logger.Debug("documentary generated", "title", doc.Title, "entries", len(doc.Timeline))
	return doc, nil
}

func (d draft) documentary(topic string) *timeline.Documentary {
	doc := &timeline.Documentary{
		Title:    d.Title,
		Topic:    d.Topic,
		Summary:  d.Summary,
		Timeline: make([]timeline.Entry, 0, len(d.Timeline)),
	}
	if strings.TrimSpace(doc.Topic) == "" {
		doc.Topic = strings.TrimSpace(topic)
	}
	song := 0
	for _, e := range d.Timeline {
		if e.Type == timeline.KindNarration {
			doc.Timeline = append(doc.Timeline, timeline.NarrationEntry(timeline.Narration{Title: e.Title, Text: e.Text}))
			continue
		}
		song++
		doc.Timeline = append(doc.Timeline, timeline.SongEntry(timeline.Song{
			Candidate: music.Candidate{
				Title:      e.Title,
				Artist:     e.Artist,
				Album:      e.Album,
				Year:       e.Year,
				SearchHint: e.SearchHint,
			},
			SlotID:  fmt.Sprintf("slot-%d", song),
			YouTube: music.NotFound(),
		}))
	}
	return doc
}

// MockDocumentarian stitches the mock plan and narration with no videos.
type MockDocumentarian struct{}

func (MockDocumentarian) Compose(ctx context.Context, req PlanRequest) (*timeline.Documentary, error) {
	plan, err := MockPlanner{}.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	narration, err := MockNarrator{}.Narrate(ctx, NarrationRequest{Topic: plan.Topic, TrackSlots: plan.TrackSlots})
	if err != nil {
		return nil, err
	}
	selections := make([]music.Selection, len(plan.TrackSlots))
	for i, s := range plan.TrackSlots {
		selections[i] = music.Selection{Candidate: s.Primary, SlotID: s.SlotID, YouTube: music.NotFound()}
	}
	doc := timeline.Stitch(plan, narration, selections)
	return &doc, nil
}
