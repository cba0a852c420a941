package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/musicdoc/internal/music"
)

// MockPlanner returns a fixed five-slot plan derived from the topic. It is
// used when llm.provider is "mock" and in tests.
type MockPlanner struct{}

func (MockPlanner) Plan(_ context.Context, req PlanRequest) (*music.Plan, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = "Test Topic"
	}
	slots := make([]music.TrackSlot, music.SlotCount)
	for i := range slots {
		n := i + 1
		slots[i] = music.TrackSlot{
			SlotID:         fmt.Sprintf("slot-%d", n),
			ArcLabel:       fmt.Sprintf("Chapter %d", n),
			NarrativeFocus: fmt.Sprintf("Narrative focus %d", n),
			Primary: music.Candidate{
				Title:  fmt.Sprintf("%s Song %d", topic, n),
				Artist: topic + " Artist",
				Year:   fmt.Sprintf("20%d", 10+i),
			},
			Alternates: []music.Candidate{},
		}
	}
	return &music.Plan{
		Title:        topic + " Documentary",
		Topic:        topic,
		Summary:      topic + " summary",
		NarrativeArc: "Intro, rise, climax, fall, outro",
		TrackSlots:   slots,
	}, nil
}

// MockNarrator returns one placeholder segment per track slot.
type MockNarrator struct{}

func (MockNarrator) Narrate(_ context.Context, req NarrationRequest) (*music.Narration, error) {
	segments := make([]music.Segment, 0, len(req.TrackSlots))
	for _, s := range req.TrackSlots {
		label := slotTitle(s)
		segments = append(segments, music.Segment{
			SlotID: s.SlotID,
			Title:  label + " narration",
			Text:   "Narration for " + label + ".",
		})
	}
	return &music.Narration{
		Intro:        music.Segment{SlotID: "intro", Title: "Intro", Text: "Opening narration."},
		Outro:        music.Segment{SlotID: "outro", Title: "Outro", Text: "Closing narration."},
		SongSegments: segments,
	}, nil
}
