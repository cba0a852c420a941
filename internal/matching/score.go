// Package matching resolves track slots to playable videos with a
// deterministic, explainable score.
package matching

import (
	"math"
	"strings"

	"github.com/kalambet/musicdoc/internal/lookup"
)

const (
	titleWeight       = 0.6
	artistWeight      = 0.2
	channelWeight     = 0.15
	closeDurationSec  = 10
	closeDurationGain = 0.25
	nearDurationSec   = 20
	nearDurationGain  = 0.15
)

// ScoreCandidate rates how well a video matches the target song. It is pure
// and always returns a value in [0, 1]. A targetDurationSec of 0 means the
// duration is unknown and contributes nothing.
func ScoreCandidate(v lookup.Video, targetTitle, targetArtist string, targetDurationSec int) float64 {
	var score float64

	nv := Normalize(v.Title)
	nTitle := Normalize(targetTitle)
	nArtist := Normalize(targetArtist)

	if nTitle != "" && strings.Contains(nv, nTitle) {
		score += titleWeight
	}
	if nArtist != "" && strings.Contains(nv, nArtist) {
		score += artistWeight
	}

	// "- Topic" channels are auto-generated artist channels.
	ch := strings.ToLower(v.ChannelTitle)
	artist := strings.ToLower(strings.TrimSpace(targetArtist))
	if strings.Contains(ch, "topic") || (artist != "" && strings.Contains(ch, artist)) {
		score += channelWeight
	}

	if targetDurationSec > 0 && v.DurationSec > 0 {
		diff := v.DurationSec - targetDurationSec
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff <= closeDurationSec:
			score += closeDurationGain
		case diff <= nearDurationSec:
			score += nearDurationGain
		}
	}

	return math.Min(1, score)
}

func roundConfidence(score float64) float64 {
	return math.Round(score*100) / 100
}
