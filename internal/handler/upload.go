package handler

import (
	"log/slog"
	"net/http"

	"letterarchive/internal/domain/services"
	"letterarchive/internal/httputil"
)

// UploadHandler issues upload sessions
type UploadHandler struct {
	service services.UploadService
	logger  *slog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service services.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{service: service, logger: logger}
}

// CreateUploadRequest returns presigned PUT URLs for a new upload
// POST /api/upload-request
func (h *UploadHandler) CreateUploadRequest(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUploadRequest
	if !parseBody(w, r, &req) {
		return
	}

	session, err := h.service.CreateSession(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, session)
}
