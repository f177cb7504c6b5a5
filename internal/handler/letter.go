package handler

import (
	"log/slog"
	"net/http"

	"letterarchive/internal/config"
	"letterarchive/internal/domain/services"
	"letterarchive/internal/httputil"
)

// LetterHandler serves published letters and their history
type LetterHandler struct {
	service services.LetterService
	logger  *slog.Logger
}

// NewLetterHandler creates a new letter handler
func NewLetterHandler(service services.LetterService, logger *slog.Logger) *LetterHandler {
	return &LetterHandler{service: service, logger: logger}
}

// ListLetters returns a page of letters, newest date first
// GET /api/letters?limit=&cursor=
func (h *LetterHandler) ListLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", config.DefaultLetterPageSize)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListLetters(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, page)
}

// GetLetter retrieves one letter
// GET /api/letters/{id}
func (h *LetterHandler) GetLetter(w http.ResponseWriter, r *http.Request) {
	letter, err := h.service.GetLetter(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, letter)
}

// UpdateLetter edits a letter, snapshotting the previous state
// PUT /api/letters/{id}
func (h *LetterHandler) UpdateLetter(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateLetterRequest
	if !parseBody(w, r, &req) {
		return
	}

	letter, err := h.service.UpdateLetter(r.Context(), r.PathValue("id"), httputil.GetUserID(r), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, letter)
}

// ListVersions returns a letter's snapshots, newest first
// GET /api/letters/{id}/versions
func (h *LetterHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.ListVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

// RevertLetter restores an earlier snapshot as a new edit
// POST /api/letters/{id}/revert
func (h *LetterHandler) RevertLetter(w http.ResponseWriter, r *http.Request) {
	var req services.RevertLetterRequest
	if !parseBody(w, r, &req) {
		return
	}

	letter, err := h.service.RevertLetter(r.Context(), r.PathValue("id"), httputil.GetUserID(r), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, letter)
}

// GetPDF returns a short-lived download URL for the letter's scan
// GET /api/letters/{id}/pdf
func (h *LetterHandler) GetPDF(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetPDFURL(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, link)
}
