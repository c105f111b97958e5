package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func handleListTemplates(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Forms == nil {
			writeJSON(w, http.StatusOK, map[string]any{"templates": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": deps.Forms.All()})
	}
}

func handleGetTemplate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ := chi.URLParam(r, "type")
		if deps.Forms != nil {
			if tmpl, ok := deps.Forms.Get(typ); ok {
				writeJSON(w, http.StatusOK, map[string]any{"template": tmpl})
				return
			}
		}
		httpError(w, http.StatusNotFound, "not_found", "template %q not found", typ)
	}
}

func handleAnalyzeScreenshot(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Screenshots == nil {
			httpError(w, http.StatusServiceUnavailable, "server_error", "screenshot analysis is not configured")
			return
		}
		var req struct {
			ImageURL string `json:"image_url"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ImageURL) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "image_url is required")
			return
		}
		res, err := deps.Screenshots.AnalyzeScreenshot(r.Context(), req.ImageURL)
		if err != nil {
			deps.Logger.Warn("screenshot analysis failed", "url", req.ImageURL, "error", err)
			httpError(w, http.StatusBadGateway, "upstream_error", "screenshot analysis failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"analysis": res})
	}
}
