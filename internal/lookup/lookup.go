// Package lookup finds candidate videos for free-text song queries.
package lookup

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when the upstream search quota is spent.
	ErrQuotaExceeded = errors.New("youtube quota exceeded")
	// ErrUnavailable is returned when the backend is missing or tripped.
	ErrUnavailable = errors.New("video lookup unavailable")
)

// Video is a raw search result. DurationSec is 0 when unknown.
type Video struct {
	ID           string `json:"videoId"`
	Title        string `json:"title"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	DurationSec  int    `json:"durationSec"`
}

// Searcher returns videos for a query, ordered by the backend's own relevance.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Video, error)
}
