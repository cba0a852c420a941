package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/music"
)

func handleCreateJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var params jobs.Params
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		params.Topic = strings.TrimSpace(params.Topic)
		if err := music.Validate(params); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		job, err := deps.Jobs.CreateJob(userID(r), params)
		if err != nil {
			var limitErr *jobs.LimitError
			if errors.As(err, &limitErr) {
				httpError(w, http.StatusTooManyRequests, "rate_limit_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "creating job: %v", err)
			return
		}
		deps.Runner.Start(deps.baseContext(), job)

		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "jobId": job.ID, "job": job})
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Jobs.GetJob(chi.URLParam(r, "jobID"))
		if errors.Is(err, jobs.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
	}
}

func handleListJobs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": deps.Jobs.GetUserJobs(userID(r))})
	}
}

func handleJobStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stats": deps.Jobs.Stats()})
	}
}

// handleJobStream serves a job's events as server-sent events. Each message
// is a data line holding the event JSON; the stream ends after the terminal
// event. Disconnecting does not affect the job.
func handleJobStream(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		events, err := deps.Jobs.Watch(r.Context(), chi.URLParam(r, "jobID"))
		if errors.Is(err, jobs.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		keepalive := time.NewTicker(deps.keepalive())
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case ev, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
				if ev.Terminal() {
					return
				}
			}
		}
	}
}
