package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// DefaultMaxResults is how many videos one search asks for.
const DefaultMaxResults = 6

// APISearcher searches through the YouTube Data API v3. Every search costs a
// search.list call plus a videos.list call for durations.
type APISearcher struct {
	svc        *youtube.Service
	maxResults int64
	logger     *slog.Logger
}

// NewAPISearcher creates a Data API searcher. Extra client options are
// appended after the API key (tests use option.WithEndpoint).
func NewAPISearcher(ctx context.Context, apiKey string, maxResults int, opts ...option.ClientOption) (*APISearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube api key is required")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}
	return &APISearcher{svc: svc, maxResults: int64(maxResults), logger: slog.Default()}, nil
}

func (s *APISearcher) Search(ctx context.Context, query string) ([]Video, error) {
	sr, err := s.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(s.maxResults).
		VideoEmbeddable("true").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError("search", err)
	}

	var ids []string
	for _, it := range sr.Items {
		if it.Id != nil && it.Id.VideoId != "" {
			ids = append(ids, it.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		s.logger.Debug("youtube search returned no ids", "query", query)
		return nil, nil
	}

	vr, err := s.svc.Videos.List([]string{"contentDetails", "snippet"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError("videos", err)
	}

	videos := make([]Video, 0, len(vr.Items))
	for _, it := range vr.Items {
		v := Video{ID: it.Id}
		if it.Snippet != nil {
			v.Title = it.Snippet.Title
			v.ChannelID = it.Snippet.ChannelId
			v.ChannelTitle = it.Snippet.ChannelTitle
		}
		if it.ContentDetails != nil {
			v.DurationSec = ParseISODuration(it.ContentDetails.Duration)
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func classifyAPIError(call string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 403 {
		quota := strings.Contains(strings.ToLower(gerr.Message+gerr.Body), "quota")
		for _, item := range gerr.Errors {
			if strings.Contains(strings.ToLower(item.Reason), "quota") {
				quota = true
			}
		}
		if quota {
			return fmt.Errorf("youtube %s: %w", call, ErrQuotaExceeded)
		}
	}
	return fmt.Errorf("youtube %s: %w", call, err)
}
