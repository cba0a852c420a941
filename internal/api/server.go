// Package api exposes jobs, playlists and video lookup over HTTP, plus the
// same operations as MCP tools.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/storage"
	"github.com/kalambet/musicdoc/internal/timeline"
)

const (
	maxRequestBodySize  = 1 << 20 // 1MB
	maxPlaylistBodySize = 8 << 20
	defaultKeepalive    = 15 * time.Second
)

// JobStore is the job registry as seen by the HTTP layer.
type JobStore interface {
	CreateJob(userID string, params jobs.Params) (jobs.Job, error)
	GetJob(id string) (jobs.Job, error)
	GetUserJobs(userID string) []jobs.Job
	Watch(ctx context.Context, id string) (<-chan jobs.Event, error)
	Stats() jobs.Stats
}

// JobRunner executes a created job in the background.
type JobRunner interface {
	Start(ctx context.Context, job jobs.Job)
}

// PlaylistStore persists playlists.
type PlaylistStore interface {
	CreatePlaylist(p storage.Playlist) (storage.Playlist, error)
	GetPlaylist(id string) (storage.Playlist, error)
	ListPlaylistsByOwner(ownerID string, limit int) ([]storage.Playlist, error)
	UpdatePlaylist(id string, u storage.PlaylistUpdate) (storage.Playlist, error)
}

// EntryMatcher resolves videos for the song entries of a timeline.
type EntryMatcher interface {
	MapEntries(ctx context.Context, entries []timeline.Entry, threshold float64) []timeline.Entry
}

// VideoInspector fetches metadata for a single video.
type VideoInspector interface {
	Inspect(ctx context.Context, videoID string) (lookup.Video, error)
}

// AppDeps holds the collaborators of the HTTP API. Searcher, Matcher and
// Inspector may be nil; the matching routes then report lookup as disabled.
type AppDeps struct {
	Jobs      JobStore
	Runner    JobRunner
	Playlists PlaylistStore
	Searcher  lookup.Searcher
	Matcher   EntryMatcher
	Inspector VideoInspector
	// Documentarian serves one-shot documentaries; nil disables the route.
	Documentarian generate.Documentarian

	SearchMethod string
	Threshold    float64
	// Token enables bearer auth on /api when non-empty.
	Token string
	// TTSDir and ArtDir are served at /tts/ and /album-art/ when set.
	TTSDir string
	ArtDir string
	// BaseContext outlives requests; jobs run on it.
	BaseContext context.Context
	Keepalive   time.Duration
}

func (d AppDeps) baseContext() context.Context {
	if d.BaseContext != nil {
		return d.BaseContext
	}
	return context.Background()
}

func (d AppDeps) keepalive() time.Duration {
	if d.Keepalive > 0 {
		return d.Keepalive
	}
	return defaultKeepalive
}

// NewAppHandler returns the HTTP handler for the whole service.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	if deps.TTSDir != "" {
		r.Handle("/tts/*", http.StripPrefix("/tts/", http.FileServer(http.Dir(deps.TTSDir))))
	}
	if deps.ArtDir != "" {
		r.Handle("/album-art/*", http.StripPrefix("/album-art/", http.FileServer(http.Dir(deps.ArtDir))))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/jobs", handleCreateJob(deps))
		r.Get("/jobs", handleListJobs(deps))
		r.Get("/jobs/stats", handleJobStats(deps))
		r.Get("/jobs/{jobID}", handleGetJob(deps))
		r.Get("/jobs/{jobID}/stream", handleJobStream(deps))

		r.Post("/music-doc-lite", handleComposeDocumentary(deps))

		r.Post("/playlists", handleCreatePlaylist(deps))
		r.Get("/playlists/{id}", handleGetPlaylist(deps))
		r.Patch("/playlists/{id}", handleUpdatePlaylist(deps))
		r.Get("/users/{ownerID}/playlists", handleListPlaylists(deps))

		r.Get("/youtube/config", handleLookupConfig(deps))
		r.Get("/youtube/search", handleSearch(deps))
		r.Post("/youtube/map", handleMapTimeline(deps))
		r.Get("/videos/{id}", handleInspectVideo(deps))

		// Paths used by earlier web clients.
		r.Get("/youtube-config", handleLookupConfig(deps))
		r.Post("/youtube-map-tracks", handleMapTimeline(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
