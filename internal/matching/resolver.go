package matching

import (
	"context"
	"log/slog"

	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/music"
)

// DefaultThreshold is the confidence at which a candidate is accepted
// without trying the remaining alternates.
const DefaultThreshold = 0.8

// Attempt records one candidate that was tried while resolving a slot.
type Attempt struct {
	Index   int     `json:"index"`
	Title   string  `json:"title"`
	Artist  string  `json:"artist"`
	Query   string  `json:"query"`
	Results int     `json:"results"`
	Score   float64 `json:"score"`
	VideoID string  `json:"videoId,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// SlotResult is the outcome of resolving one track slot.
type SlotResult struct {
	Selection    music.Selection `json:"selection"`
	Attempts     []Attempt       `json:"attempts"`
	FallbackUsed bool            `json:"fallbackUsed"`
}

// SlotDebug is the per-slot diagnostic entry of a timeline resolution.
type SlotDebug struct {
	SlotID       string    `json:"slot_id"`
	Attempts     []Attempt `json:"attempts"`
	FallbackUsed bool      `json:"fallbackUsed"`
}

// TimelineResult holds selections in slot order plus diagnostics.
type TimelineResult struct {
	Selections []music.Selection `json:"selections"`
	Debug      []SlotDebug       `json:"debug"`
}

// Matcher resolves track slots against a video Searcher.
type Matcher struct {
	searcher lookup.Searcher
	logger   *slog.Logger
}

// NewMatcher creates a Matcher. A nil searcher is allowed; every slot then
// resolves to the no-video selection.
func NewMatcher(searcher lookup.Searcher) *Matcher {
	return &Matcher{searcher: searcher, logger: slog.Default()}
}

type scored struct {
	video lookup.Video
	score float64
}

// ResolveSlot tries the primary then each alternate in order and returns the
// first candidate whose best video meets threshold. Otherwise it falls back to
// the best video seen across all candidates, or to the primary with no video.
// It never returns an error: lookup failures count as empty results.
func (m *Matcher) ResolveSlot(ctx context.Context, slot music.TrackSlot, threshold float64) SlotResult {
	var (
		attempts  []Attempt
		best      *scored
		bestIndex int
	)

	for i, cand := range slot.Candidates() {
		att := Attempt{Index: i, Title: cand.Title, Artist: cand.Artist, Query: cand.Query()}
		top := m.bestFor(ctx, cand, &att)
		attempts = append(attempts, att)

		if top == nil {
			continue
		}
		if best == nil || top.score > best.score {
			best, bestIndex = top, i
		}
		if top.score >= threshold {
			return SlotResult{
				Selection: selectionFor(slot, i, cand, top),
				Attempts:  attempts,
			}
		}
	}

	if best == nil {
		m.logger.Debug("no playable source for slot", "slot_id", slot.SlotID, "attempts", len(attempts))
		return SlotResult{
			Selection: music.Selection{
				Candidate: slot.Primary,
				SlotID:    slot.SlotID,
				YouTube:   music.NotFound(),
			},
			Attempts:     attempts,
			FallbackUsed: true,
		}
	}

	m.logger.Debug("slot below threshold, using best seen",
		"slot_id", slot.SlotID, "score", best.score, "threshold", threshold)
	return SlotResult{
		Selection:    selectionFor(slot, bestIndex, slot.Candidates()[bestIndex], best),
		Attempts:     attempts,
		FallbackUsed: true,
	}
}

// bestFor queries the searcher for one candidate and returns its best
// positively scored video, filling in att along the way.
func (m *Matcher) bestFor(ctx context.Context, cand music.Candidate, att *Attempt) *scored {
	if att.Query == "" {
		att.Error = "empty query"
		return nil
	}
	if m.searcher == nil {
		att.Error = lookup.ErrUnavailable.Error()
		return nil
	}

	videos, err := m.searcher.Search(ctx, att.Query)
	if err != nil {
		m.logger.Warn("video lookup failed", "query", att.Query, "error", err)
		att.Error = err.Error()
		return nil
	}
	att.Results = len(videos)

	var top *scored
	for _, v := range videos {
		if v.ID == "" {
			continue
		}
		s := ScoreCandidate(v, cand.Title, cand.Artist, cand.DurationSec())
		if s <= 0 {
			continue
		}
		if top == nil || s > top.score {
			top = &scored{video: v, score: s}
		}
	}
	if top != nil {
		att.Score = roundConfidence(top.score)
		att.VideoID = top.video.ID
	}
	return top
}

// ResolveTimeline resolves every slot in input order.
func (m *Matcher) ResolveTimeline(ctx context.Context, slots []music.TrackSlot, threshold float64) TimelineResult {
	res := TimelineResult{
		Selections: make([]music.Selection, 0, len(slots)),
		Debug:      make([]SlotDebug, 0, len(slots)),
	}
	for _, slot := range slots {
		sr := m.ResolveSlot(ctx, slot, threshold)
		res.Selections = append(res.Selections, sr.Selection)
		res.Debug = append(res.Debug, SlotDebug{
			SlotID:       slot.SlotID,
			Attempts:     sr.Attempts,
			FallbackUsed: sr.FallbackUsed,
		})
	}
	return res
}

func selectionFor(slot music.TrackSlot, index int, cand music.Candidate, s *scored) music.Selection {
	ref := music.YouTubeRef{
		VideoID:           strPtr(s.video.ID),
		Title:             strPtr(s.video.Title),
		ChannelID:         strPtr(s.video.ChannelID),
		MatchedConfidence: roundConfidence(s.score),
	}
	if s.video.DurationSec > 0 {
		d := s.video.DurationSec
		ref.DurationSec = &d
	}
	return music.Selection{
		Candidate:         cand,
		SlotID:            slot.SlotID,
		SelectedFromIndex: index,
		YouTube:           ref,
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
