// Package music holds the documentary data model shared by the planner,
// the matcher, the stitcher, and persistence.
package music

import (
	"fmt"
	"sort"
	"strings"
)

// Candidate is a proposed song. It never carries a resolved video.
type Candidate struct {
	Title      string `json:"title" validate:"required"`
	Artist     string `json:"artist" validate:"required"`
	Album      string `json:"album,omitempty"`
	Year       string `json:"year,omitempty"`
	SearchHint string `json:"youtube_hint,omitempty"`
	Note       string `json:"note,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty" validate:"gte=0"`
}

// DurationSec returns the target duration in whole seconds, or 0 when unknown.
func (c Candidate) DurationSec() int {
	if c.DurationMS <= 0 {
		return 0
	}
	return (c.DurationMS + 500) / 1000
}

// Query builds the free-text lookup query for the candidate. The title is
// quoted to bias exact matches.
func (c Candidate) Query() string {
	var parts []string
	if t := strings.TrimSpace(c.Title); t != "" {
		parts = append(parts, `"`+t+`"`)
	}
	if a := strings.TrimSpace(c.Artist); a != "" {
		parts = append(parts, a)
	}
	if h := strings.TrimSpace(c.SearchHint); h != "" {
		parts = append(parts, h)
	}
	return strings.Join(parts, " ")
}

// TrackSlot is one chronological chapter: a primary song and ranked alternates.
type TrackSlot struct {
	SlotID         string      `json:"slot_id" validate:"required"`
	ArcLabel       string      `json:"arc_label"`
	ChronologyHint string      `json:"chronology_hint,omitempty"`
	NarrativeFocus string      `json:"narrative_focus,omitempty"`
	Primary        Candidate   `json:"primary"`
	Alternates     []Candidate `json:"alternates" validate:"max=2,dive"`
}

// Candidates returns the primary followed by the alternates, in priority order.
func (s TrackSlot) Candidates() []Candidate {
	out := make([]Candidate, 0, 1+len(s.Alternates))
	out = append(out, s.Primary)
	return append(out, s.Alternates...)
}

// SlotCount is the number of chronological chapters in every plan.
const SlotCount = 5

// Plan is the structured output of plan generation.
type Plan struct {
	Title        string      `json:"title" validate:"required"`
	Topic        string      `json:"topic"`
	Summary      string      `json:"summary"`
	NarrativeArc string      `json:"narrative_arc,omitempty"`
	TrackSlots   []TrackSlot `json:"track_slots" validate:"required,len=5,unique=SlotID,dive"`
}

// Segment is one block of narration text.
type Segment struct {
	SlotID string `json:"slot_id"`
	Title  string `json:"title"`
	Text   string `json:"text" validate:"required"`
}

// Narration is the full narration script for a documentary.
type Narration struct {
	Intro        Segment   `json:"intro"`
	Outro        Segment   `json:"outro"`
	SongSegments []Segment `json:"song_segments" validate:"required,min=1,unique=SlotID,dive"`
}

// AlignSegments checks that the song segments cover slots one to one and
// reorders them into slot order.
func (n *Narration) AlignSegments(slots []TrackSlot) error {
	byID := make(map[string]Segment, len(n.SongSegments))
	for _, seg := range n.SongSegments {
		if _, dup := byID[seg.SlotID]; dup {
			return fmt.Errorf("duplicate narration segment for slot %q", seg.SlotID)
		}
		byID[seg.SlotID] = seg
	}
	aligned := make([]Segment, 0, len(slots))
	var missing []string
	for _, s := range slots {
		seg, ok := byID[s.SlotID]
		if !ok {
			missing = append(missing, s.SlotID)
			continue
		}
		aligned = append(aligned, seg)
		delete(byID, s.SlotID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("no narration segment for slots %s", strings.Join(missing, ", "))
	}
	if len(byID) > 0 {
		extra := make([]string, 0, len(byID))
		for id := range byID {
			extra = append(extra, id)
		}
		sort.Strings(extra)
		return fmt.Errorf("narration segments for unknown slots %s", strings.Join(extra, ", "))
	}
	n.SongSegments = aligned
	return nil
}

// YouTubeRef is the resolved external video for a candidate. All pointer
// fields are nil when no playable source was found.
type YouTubeRef struct {
	VideoID           *string `json:"videoId"`
	Title             *string `json:"title"`
	ChannelID         *string `json:"channelId"`
	DurationSec       *int    `json:"durationSec"`
	MatchedConfidence float64 `json:"matchedConfidence"`
}

// Found reports whether a playable video was resolved.
func (r YouTubeRef) Found() bool { return r.VideoID != nil }

// NotFound is the resolution used when no source could be matched.
func NotFound() YouTubeRef { return YouTubeRef{} }

// Selection is a candidate resolved (or not) to a video for one slot.
type Selection struct {
	Candidate
	SlotID            string     `json:"slot_id"`
	SelectedFromIndex int        `json:"selectedFromIndex"`
	YouTube           YouTubeRef `json:"youtube"`
}
