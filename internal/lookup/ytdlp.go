package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strings"
)

// runFunc executes a binary and returns its stdout.
type runFunc func(ctx context.Context, bin string, args ...string) ([]byte, error)

// YTDLPSearcher searches by shelling out to yt-dlp's ytsearch extractor.
// It needs no API key.
type YTDLPSearcher struct {
	bin        string
	maxResults int
	run        runFunc
}

// NewYTDLPSearcher creates a searcher that runs the given yt-dlp binary.
func NewYTDLPSearcher(bin string, maxResults int) *YTDLPSearcher {
	if bin == "" {
		bin = "yt-dlp"
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &YTDLPSearcher{bin: bin, maxResults: maxResults, run: execRun}
}

// CheckBinary reports whether the yt-dlp binary can be found.
func (s *YTDLPSearcher) CheckBinary() error {
	if _, err := exec.LookPath(s.bin); err != nil {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", s.bin)
	}
	return nil
}

type ytdlpPlaylist struct {
	Entries []ytdlpEntry `json:"entries"`
}

type ytdlpEntry struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Uploader  string  `json:"uploader"`
	ChannelID string  `json:"channel_id"`
	Duration  float64 `json:"duration"`
}

func (s *YTDLPSearcher) Search(ctx context.Context, query string) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	args := []string{
		"--flat-playlist", "-J", "--no-warnings", "--ignore-config",
		fmt.Sprintf("ytsearch%d:%s", s.maxResults, query),
	}
	out, err := s.run(ctx, s.bin, args...)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w", err)
	}

	var pl ytdlpPlaylist
	if err := json.Unmarshal(out, &pl); err != nil {
		return nil, fmt.Errorf("decoding yt-dlp output: %w", err)
	}

	videos := make([]Video, 0, len(pl.Entries))
	for _, e := range pl.Entries {
		if e.ID == "" {
			continue
		}
		channel := e.Channel
		if channel == "" {
			channel = e.Uploader
		}
		videos = append(videos, Video{
			ID:           e.ID,
			Title:        e.Title,
			ChannelID:    e.ChannelID,
			ChannelTitle: channel,
			DurationSec:  int(math.Round(e.Duration)),
		})
	}
	return videos, nil
}

func execRun(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
