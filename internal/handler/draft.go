package handler

import (
	"log/slog"
	"net/http"

	"letterarchive/internal/domain/services"
	"letterarchive/internal/httputil"
)

// DraftHandler serves the admin review surface
type DraftHandler struct {
	drafts  services.DraftService
	publish services.PublishService
	logger  *slog.Logger
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(drafts services.DraftService, publish services.PublishService, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{drafts: drafts, publish: publish, logger: logger}
}

// ListDrafts returns drafts in every status
// GET /api/admin/drafts
func (h *DraftHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.drafts.ListDrafts(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"drafts": drafts})
}

// GetDraft retrieves a draft by ID
// GET /api/admin/drafts/{id}
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.drafts.GetDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, draft)
}

// DeleteDraft discards a draft whatever its status. Deleting a missing
// draft succeeds.
// DELETE /api/admin/drafts/{id}
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.drafts.DeleteDraft(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

// PublishDraft promotes a draft into a letter
// POST /api/admin/drafts/{id}/publish
func (h *DraftHandler) PublishDraft(w http.ResponseWriter, r *http.Request) {
	var req services.PublishRequest
	if !parseBody(w, r, &req) {
		return
	}

	letter, err := h.publish.Publish(r.Context(), r.PathValue("id"), httputil.GetUserID(r), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, letter)
}
