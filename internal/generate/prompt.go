package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/musicdoc/internal/llm"
	"github.com/kalambet/musicdoc/internal/music"
)

const planSystemPrompt = `You are a music documentarian. Given a band, artist, genre or era, plan a short documentary told through exactly 5 songs in chronological order. Your output must be ONLY a single valid JSON object. Do not include any other text, prose, or markdown.

JSON shape:
{
  "title": string,
  "topic": string,
  "summary": string,
  "narrative_arc": string,
  "track_slots": [
    {
      "slot_id": "slot-1",
      "arc_label": string,
      "chronology_hint": string,
      "narrative_focus": string,
      "primary": {"title": string, "artist": string, "album": string, "year": string, "youtube_hint": string, "note": string},
      "alternates": [ same shape as primary, at most 2 ]
    }
  ]
}

Rules:
- Use real, well-known recordings with accurate titles and artists.
- Alternates are ranked fallbacks that tell the same part of the story.
- youtube_hint is a short disambiguation (year, live, version) for a video search.
- Each slot is one chapter of the story; slot_id values are slot-1 through slot-5.`

const narrationSystemPrompt = `You are the narrator of a music documentary. Write narration that is read aloud between songs by a text-to-speech voice. Your output must be ONLY a single valid JSON object. Do not include any other text, prose, or markdown.

JSON shape:
{
  "intro": {"slot_id": "intro", "title": string, "text": string},
  "outro": {"slot_id": "outro", "title": string, "text": string},
  "song_segments": [ {"slot_id": string, "title": string, "text": string} ]
}

Rules:
- Write exactly one song segment per track slot, in slot order, reusing each slot_id.
- Each segment introduces the song that plays right after it.
- Use short, TTS-friendly sentences. No stage directions, no markdown.`

const documentarySystemPrompt = `You are a music documentarian. Write a short documentary about the given band, artist, genre or era as an interleaved timeline of spoken narration and songs. Your output must be ONLY a single valid JSON object. Do not include any other text, prose, or markdown.

JSON shape:
{
  "title": string,
  "topic": string,
  "summary": string,
  "timeline": [
    {"type": "narration", "title": string, "text": string},
    {"type": "song", "title": string, "artist": string, "album": string, "year": string, "youtube_hint": string}
  ]
}

Rules:
- Start and end with narration and alternate narration and songs, at least 6 items.
- Songs are real, well-known recordings in chronological order with accurate titles and artists.
- Each narration introduces the song that plays right after it, in short TTS-friendly sentences.`

// BuildPlanPrompt constructs the chat messages for plan generation.
func BuildPlanPrompt(req PlanRequest) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", strings.TrimSpace(req.Topic))
	fmt.Fprintf(&sb, "Each narration segment will run about %d seconds.", targetSecs(req.NarrationTargetSecs))
	writeExtra(&sb, req.Prompt)
	return []llm.Message{llm.System(planSystemPrompt), llm.User(sb.String())}
}

// BuildDocumentaryPrompt constructs the chat messages for one-shot
// documentary generation.
func BuildDocumentaryPrompt(req PlanRequest) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", strings.TrimSpace(req.Topic))
	fmt.Fprintf(&sb, "Target length per narration: about %d seconds of speech.", targetSecs(req.NarrationTargetSecs))
	writeExtra(&sb, req.Prompt)
	return []llm.Message{llm.System(documentarySystemPrompt), llm.User(sb.String())}
}

// BuildNarrationPrompt constructs the chat messages for narration generation.
// Resolved selections are included so the script talks about the songs that
// will actually play.
func BuildNarrationPrompt(req NarrationRequest) []llm.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", strings.TrimSpace(req.Topic))
	if s := strings.TrimSpace(req.Summary); s != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", s)
	}
	fmt.Fprintf(&sb, "Target length per segment: about %d seconds of speech.\n", targetSecs(req.NarrationTargetSecs))

	slots, _ := json.MarshalIndent(req.TrackSlots, "", "  ")
	fmt.Fprintf(&sb, "\nTrack slots:\n%s\n", slots)

	if len(req.Selections) > 0 {
		sb.WriteString("\nSongs that will play:\n")
		for _, sel := range req.Selections {
			fmt.Fprintf(&sb, "- %s: %q by %s", sel.SlotID, sel.Title, sel.Artist)
			if sel.Year != "" {
				fmt.Fprintf(&sb, " (%s)", sel.Year)
			}
			sb.WriteString("\n")
		}
	}
	writeExtra(&sb, req.Prompt)
	return []llm.Message{llm.System(narrationSystemPrompt), llm.User(sb.String())}
}

func writeExtra(sb *strings.Builder, prompt string) {
	if p := strings.TrimSpace(prompt); p != "" {
		fmt.Fprintf(sb, "\n\nAdditional instructions from the user (apply carefully):\n%s", p)
	}
}

// albumArtPrompt picks the custom prompt when given, else a topic prompt.
func albumArtPrompt(topic, custom string) string {
	if c := strings.TrimSpace(custom); c != "" {
		return c
	}
	if t := strings.TrimSpace(topic); t != "" {
		return fmt.Sprintf("Generate evocative album art for a new, untitled %s release.", t)
	}
	return "Generate evocative album art for a new, untitled release."
}

// slotTitle is the label used for a slot when no song title is at hand.
func slotTitle(s music.TrackSlot) string {
	if s.ArcLabel != "" {
		return s.ArcLabel
	}
	return s.SlotID
}
