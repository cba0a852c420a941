package matching

import (
	"context"

	"github.com/kalambet/musicdoc/internal/music"
	"github.com/kalambet/musicdoc/internal/timeline"
)

// MapEntries resolves the video of every song entry of an existing timeline,
// treating each song as a slot with no alternates. Narration entries and
// order are preserved; the input is not modified.
func (m *Matcher) MapEntries(ctx context.Context, entries []timeline.Entry, threshold float64) []timeline.Entry {
	out := make([]timeline.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Song == nil {
			out = append(out, e)
			continue
		}
		song := *e.Song
		sr := m.ResolveSlot(ctx, music.TrackSlot{SlotID: song.SlotID, Primary: song.Candidate}, threshold)
		song.YouTube = sr.Selection.YouTube
		out = append(out, timeline.SongEntry(song))
	}
	return out
}
