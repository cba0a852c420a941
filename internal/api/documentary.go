package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/music"
)

// handleComposeDocumentary generates a whole documentary within the request.
// The response is the documentary itself; no job or playlist is created.
func handleComposeDocumentary(deps AppDeps) http.HandlerFunc {
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
		if deps.Documentarian == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "documentary generation is not configured")
			return
		}

		doc, err := deps.Documentarian.Compose(r.Context(), generate.PlanRequest{
			Topic:               params.Topic,
			Prompt:              params.Prompt,
			NarrationTargetSecs: params.NarrationTargetSecs,
		})
		if err != nil {
			if errors.Is(err, generate.ErrInvalidOutput) {
				httpError(w, http.StatusBadGateway, "upstream_error", "failed to generate documentary: %v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate documentary: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}
