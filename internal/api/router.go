package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/legitcheck/internal/blob"
	"github.com/kalambet/legitcheck/internal/documents"
	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/investigation"
	"github.com/kalambet/legitcheck/internal/storage"
)

// InvestigationStore is the subset of the store the handlers read and write.
type InvestigationStore interface {
	TokenResolver
	CreateInvestigation(inv storage.Investigation) (storage.Investigation, error)
	GetInvestigation(id string) (storage.Investigation, error)
	GetOwnedInvestigation(id, owner string) (storage.Investigation, error)
	GetPublicInvestigation(id string) (storage.Investigation, error)
	ListInvestigations(f storage.ListFilter) ([]storage.Investigation, error)
	DeleteInvestigation(id, owner string) error
}

// Runner schedules and feeds investigation runs.
type Runner interface {
	Trigger(id string) (string, error)
	Retry(id string) (string, error)
	SubmitForm(id string, responses map[string]any) (storage.Investigation, error)
	SubmitPortal(id string, p investigation.Portal) (storage.Investigation, error)
}

// ScreenshotAnalyzer describes a screenshot fetched from a URL.
type ScreenshotAnalyzer interface {
	AnalyzeScreenshot(ctx context.Context, imageURL string) (documents.Analysis, error)
}

// AppDeps holds dependencies for the HTTP server.
type AppDeps struct {
	Store       InvestigationStore
	Service     Runner
	Blobs       *blob.LocalStore
	Forms       *forms.Catalog
	Screenshots ScreenshotAnalyzer
	Logger      *slog.Logger
}

// NewRouter creates the HTTP router with every public route mounted.
func NewRouter(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/investigate", handleTrigger(deps))
		r.Post("/investigations/quick-create", handleQuickCreate(deps))
		r.Get("/public/investigations/{id}", handleGetPublic(deps))
		r.Post("/upload", handleUpload(deps))

		r.Get("/templates", handleListTemplates(deps))
		r.Get("/templates/{type}", handleGetTemplate(deps))
		r.Post("/screenshots/analyze", handleAnalyzeScreenshot(deps))

		r.Group(func(r chi.Router) {
			r.Use(TokenAuth(deps.Store))
			r.Post("/investigations/create", handleCreate(deps))
			r.Get("/investigations", handleList(deps))
			r.Get("/investigations/{id}", handleGet(deps))
			r.Delete("/investigations/{id}", handleDelete(deps))
		})

		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(deps.Store))
			r.Post("/investigations/{id}/form", handleSubmitForm(deps))
			r.Post("/investigations/{id}/portal", handleSubmitPortal(deps))
			r.Post("/investigations/{id}/retry", handleRetry(deps))
		})
	})

	if deps.Blobs != nil {
		r.Get("/files/{bucket}/*", func(w http.ResponseWriter, r *http.Request) {
			deps.Blobs.ServeObject(w, r, chi.URLParam(r, "bucket"), chi.URLParam(r, "*"))
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
