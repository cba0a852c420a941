package lookup

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	ytclient "github.com/kkdai/youtube/v2"
)

// Inspector fetches metadata for a single known video id without using the
// Data API quota.
type Inspector struct {
	client *ytclient.Client
}

// NewInspector creates an Inspector. A nil httpClient uses http.DefaultClient.
func NewInspector(httpClient *http.Client) *Inspector {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Inspector{client: &ytclient.Client{HTTPClient: httpClient}}
}

// Inspect returns the video's title, channel and duration.
func (i *Inspector) Inspect(ctx context.Context, videoID string) (Video, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Video{}, fmt.Errorf("video id is required")
	}
	v, err := i.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return Video{}, fmt.Errorf("inspecting video %s: %w", videoID, err)
	}
	return Video{
		ID:           v.ID,
		Title:        v.Title,
		ChannelID:    v.ChannelID,
		ChannelTitle: v.Author,
		DurationSec:  int(math.Round(v.Duration.Seconds())),
	}, nil
}
