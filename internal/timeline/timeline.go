// Package timeline assembles the final narration/song sequence handed to
// persistence and clients.
package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/kalambet/musicdoc/internal/music"
)

// Kind tags an Entry.
type Kind string

const (
	KindNarration Kind = "narration"
	KindSong      Kind = "song"
)

// Entry is one element of a timeline: either a narration block or a song.
// Exactly one of the two arms is non-nil.
type Entry struct {
	Narration *Narration
	Song      *Song
}

// Narration is spoken text. TTSURL is filled once audio is synthesized.
type Narration struct {
	SlotID string `json:"slot_id,omitempty"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	TTSURL string `json:"tts_url,omitempty"`
}

// Song is a candidate with its resolved video.
type Song struct {
	music.Candidate
	SlotID  string           `json:"slot_id"`
	YouTube music.YouTubeRef `json:"youtube"`
}

// Kind reports which arm the entry holds.
func (e Entry) Kind() Kind {
	if e.Song != nil {
		return KindSong
	}
	return KindNarration
}

// NarrationEntry wraps n as an Entry.
func NarrationEntry(n Narration) Entry { return Entry{Narration: &n} }

// SongEntry wraps s as an Entry.
func SongEntry(s Song) Entry { return Entry{Song: &s} }

func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Song != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Song
		}{KindSong, e.Song})
	case e.Narration != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Narration
		}{KindNarration, e.Narration})
	default:
		return nil, fmt.Errorf("timeline entry has no value")
	}
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case KindSong:
		var s Song
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Entry{Song: &s}
	case KindNarration:
		var n Narration
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*e = Entry{Narration: &n}
	default:
		return fmt.Errorf("unknown timeline entry type %q", head.Type)
	}
	return nil
}

// Documentary is the stitched output.
type Documentary struct {
	Title    string  `json:"title"`
	Topic    string  `json:"topic"`
	Summary  string  `json:"summary"`
	Timeline []Entry `json:"timeline"`
}

// Stitch interleaves narration and songs: intro, then for each song segment
// its narration followed by the matching song (when a selection exists for
// the slot), then outro. Missing inputs yield an empty timeline.
func Stitch(plan *music.Plan, narration *music.Narration, selections []music.Selection) Documentary {
	doc := Documentary{Timeline: []Entry{}}
	if plan != nil {
		doc.Title, doc.Topic, doc.Summary = plan.Title, plan.Topic, plan.Summary
	}
	if plan == nil || narration == nil || selections == nil {
		return doc
	}

	bySlot := make(map[string]music.Selection, len(selections))
	for _, sel := range selections {
		if sel.SlotID != "" {
			bySlot[sel.SlotID] = sel
		}
	}

	doc.Timeline = append(doc.Timeline, segmentEntry(narration.Intro))
	for _, seg := range narration.SongSegments {
		doc.Timeline = append(doc.Timeline, segmentEntry(seg))
		if sel, ok := bySlot[seg.SlotID]; ok {
			doc.Timeline = append(doc.Timeline, SongEntry(Song{
				Candidate: sel.Candidate,
				SlotID:    sel.SlotID,
				YouTube:   sel.YouTube,
			}))
		}
	}
	doc.Timeline = append(doc.Timeline, segmentEntry(narration.Outro))
	return doc
}

func segmentEntry(s music.Segment) Entry {
	return NarrationEntry(Narration{SlotID: s.SlotID, Title: s.Title, Text: s.Text})
}

// Songs counts song entries.
func Songs(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Kind() == KindSong {
			n++
		}
	}
	return n
}
