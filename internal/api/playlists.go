package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/musicdoc/internal/storage"
	"github.com/kalambet/musicdoc/internal/timeline"
)

type createPlaylistRequest struct {
	OwnerID              string           `json:"ownerId"`
	Title                string           `json:"title"`
	Topic                string           `json:"topic"`
	Summary              string           `json:"summary"`
	Timeline             []timeline.Entry `json:"timeline"`
	Source               string           `json:"source"`
	NarrationAlbumArtURL string           `json:"narrationAlbumArtUrl"`
}

func handleCreatePlaylist(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPlaylistBodySize)
		defer r.Body.Close()

		var req createPlaylistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Title) == "" || req.Timeline == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ownerId, title and timeline are required")
			return
		}

		entries := req.Timeline
		// YouTube playlists get their songs mapped server-side before saving.
		if req.Source == "youtube" {
			if deps.Matcher == nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "video lookup is not configured")
				return
			}
			entries = deps.Matcher.MapEntries(r.Context(), entries, deps.Threshold)
		}

		p, err := deps.Playlists.CreatePlaylist(storage.Playlist{
			OwnerID:              req.OwnerID,
			Title:                req.Title,
			Topic:                req.Topic,
			Summary:              req.Summary,
			Timeline:             entries,
			Source:               req.Source,
			NarrationAlbumArtURL: req.NarrationAlbumArtURL,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save playlist: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "playlist": p})
	}
}

func handleGetPlaylist(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Playlists.GetPlaylist(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "playlist not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "playlist": p})
	}
}

func handleListPlaylists(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", s)
				return
			}
			limit = n
		}
		list, err := deps.Playlists.ListPlaylistsByOwner(chi.URLParam(r, "ownerID"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list playlists: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "playlists": list})
	}
}

func handleUpdatePlaylist(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPlaylistBodySize)
		defer r.Body.Close()

		var u storage.PlaylistUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		p, err := deps.Playlists.UpdatePlaylist(chi.URLParam(r, "id"), u)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "playlist not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update playlist: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "playlist": p})
	}
}
