package handler

import (
	"log/slog"
	"net/http"

	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/services"
	"letterarchive/internal/httputil"
)

// ProcessHandler starts processor runs
type ProcessHandler struct {
	dispatcher services.ProcessDispatcher
	logger     *slog.Logger
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(dispatcher services.ProcessDispatcher, logger *slog.Logger) *ProcessHandler {
	return &ProcessHandler{dispatcher: dispatcher, logger: logger}
}

// ProcessAccepted is the body of a 202 from StartProcessing
type ProcessAccepted struct {
	UploadID string             `json:"uploadId"`
	Status   models.DraftStatus `json:"status"`
}

// StartProcessing queues the merge and extraction run for an upload.
// Progress is observed through the draft.
// POST /api/process/{uploadId}
func (h *ProcessHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadId")

	err := h.dispatcher.Submit(services.ProcessRequest{
		UploadID:    uploadID,
		RequesterID: httputil.GetUserID(r),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, ProcessAccepted{
		UploadID: uploadID,
		Status:   models.DraftStatusProcessing,
	})
}
