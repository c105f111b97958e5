package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/investigation"
	"github.com/kalambet/legitcheck/internal/storage"
)

const maxListLimit = 100

type createRequest struct {
	TargetName        string       `json:"target_name"`
	TargetType        string       `json:"target_type"`
	TargetURL         string       `json:"target_url"`
	InvestigationMode storage.Mode `json:"investigation_mode"`
	FormID            string       `json:"form_id"`
	ClientEmail       string       `json:"client_email"`
	ClientName        string       `json:"client_name"`
}

type quickCreateRequest struct {
	TargetName  string `json:"target_name"`
	TargetURL   string `json:"target_url"`
	ClientEmail string `json:"client_email"`
}

type createResponse struct {
	Success         bool   `json:"success"`
	InvestigationID string `json:"investigationId"`
	Message         string `json:"message"`
}

// failed writes the response for an error returned by the store or the
// service.
func (d AppDeps) failed(w http.ResponseWriter, op string, err error) {
	if storeError(w, err) {
		return
	}
	var verr *forms.ValidationError
	if errors.As(err, &verr) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", verr.Error())
		return
	}
	d.Logger.Error(op+" failed", "error", err)
	httpError(w, http.StatusInternalServerError, "server_error", "%s failed", op)
}

func handleTrigger(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			InvestigationID string `json:"investigationId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.InvestigationID) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Investigation ID is required")
			return
		}
		if _, err := deps.Service.Trigger(req.InvestigationID); err != nil {
			deps.failed(w, "trigger", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"message":         "Investigation started",
			"investigationId": req.InvestigationID,
		})
	}
}

func handleCreate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.TargetName) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Target name is required")
			return
		}
		if !req.InvestigationMode.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Invalid investigation mode")
			return
		}
		inv, err := deps.Store.CreateInvestigation(storage.Investigation{
			CreatedBy:         ownerFrom(r.Context()),
			FormID:            req.FormID,
			TargetName:        req.TargetName,
			TargetType:        req.TargetType,
			TargetURL:         req.TargetURL,
			InvestigationMode: req.InvestigationMode,
			ClientEmail:       req.ClientEmail,
			ClientName:        req.ClientName,
		})
		if err != nil {
			deps.failed(w, "create investigation", err)
			return
		}
		writeJSON(w, http.StatusOK, createResponse{
			Success:         true,
			InvestigationID: inv.ID,
			Message:         "Investigation created successfully",
		})
	}
}

func handleQuickCreate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quickCreateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.TargetName)
		if name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Target name is required")
			return
		}
		inv, err := deps.Store.CreateInvestigation(storage.Investigation{
			TargetName:        name,
			TargetURL:         strings.TrimSpace(req.TargetURL),
			ClientEmail:       strings.TrimSpace(req.ClientEmail),
			InvestigationMode: storage.ModePortal,
			Status:            storage.StatusPending,
		})
		if err != nil {
			deps.failed(w, "create investigation", err)
			return
		}
		writeJSON(w, http.StatusOK, createResponse{
			Success:         true,
			InvestigationID: inv.ID,
			Message:         "Investigation created successfully",
		})
	}
}

func handleList(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.ListInvestigations(storage.ListFilter{
			Owner:  ownerFrom(r.Context()),
			Status: storage.Status(r.URL.Query().Get("status")),
			Limit:  parseIntParam(r, "limit", 20, maxListLimit),
			Offset: parseIntParam(r, "offset", 0, 0),
		})
		if err != nil {
			deps.failed(w, "list investigations", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"investigations": items})
	}
}

func handleGet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := deps.Store.GetOwnedInvestigation(chi.URLParam(r, "id"), ownerFrom(r.Context()))
		if err != nil {
			deps.failed(w, "get investigation", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"investigation": inv})
	}
}

func handleGetPublic(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := deps.Store.GetPublicInvestigation(chi.URLParam(r, "id"))
		if err != nil {
			deps.failed(w, "get investigation", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"investigation": inv})
	}
}

func handleDelete(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteInvestigation(chi.URLParam(r, "id"), ownerFrom(r.Context())); err != nil {
			deps.failed(w, "delete investigation", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Investigation deleted"})
	}
}

// authorize loads the record for an intake route. Owned records are only
// visible to their owner; anyone else gets a 404.
func (d AppDeps) authorize(w http.ResponseWriter, r *http.Request) (storage.Investigation, bool) {
	inv, err := d.Store.GetInvestigation(chi.URLParam(r, "id"))
	if err != nil {
		d.failed(w, "get investigation", err)
		return storage.Investigation{}, false
	}
	if inv.CreatedBy != "" && inv.CreatedBy != ownerFrom(r.Context()) {
		storeError(w, storage.ErrNotFound)
		return storage.Investigation{}, false
	}
	return inv, true
}

func handleSubmitForm(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := deps.authorize(w, r)
		if !ok {
			return
		}
		var req struct {
			Responses map[string]any `json:"responses"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := deps.Service.SubmitForm(inv.ID, req.Responses)
		if err != nil {
			deps.failed(w, "submit form", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "investigation": updated})
	}
}

func handleSubmitPortal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := deps.authorize(w, r)
		if !ok {
			return
		}
		var req investigation.Portal
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := deps.Service.SubmitPortal(inv.ID, req)
		if err != nil {
			deps.failed(w, "submit portal", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "investigation": updated})
	}
}

func handleRetry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := deps.authorize(w, r)
		if !ok {
			return
		}
		if _, err := deps.Service.Retry(inv.ID); err != nil {
			deps.failed(w, "retry", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"message":         "Investigation restarted",
			"investigationId": inv.ID,
		})
	}
}
