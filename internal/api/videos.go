package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/timeline"
)

func handleLookupConfig(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"enabled": deps.Searcher != nil,
			"method":  deps.SearchMethod,
		})
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		if deps.Searcher == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "video lookup is not configured")
			return
		}

		videos, err := deps.Searcher.Search(r.Context(), q)
		switch {
		case errors.Is(err, lookup.ErrQuotaExceeded):
			httpError(w, http.StatusTooManyRequests, "rate_limit_error", "%v", err)
			return
		case errors.Is(err, lookup.ErrUnavailable):
			httpError(w, http.StatusServiceUnavailable, "api_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
			return
		}
		if videos == nil {
			videos = []lookup.Video{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": videos})
	}
}

func handleMapTimeline(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPlaylistBodySize)
		defer r.Body.Close()

		var req struct {
			Timeline []timeline.Entry `json:"timeline"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Timeline == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "timeline must be an array")
			return
		}
		if deps.Matcher == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "video lookup is not configured")
			return
		}
		out := deps.Matcher.MapEntries(r.Context(), req.Timeline, deps.Threshold)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "timeline": out})
	}
}

func handleInspectVideo(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Inspector == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "video inspection is not configured")
			return
		}
		v, err := deps.Inspector.Inspect(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "inspecting video: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "video": v})
	}
}
