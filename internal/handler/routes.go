package handler

import (
	"net/http"

	"letterarchive/internal/middleware"
)

// Access is the identity a route requires.
type Access int

const (
	// Public routes accept anonymous callers.
	Public Access = iota
	// Authenticated routes require a resolved identity.
	Authenticated
	// Admin routes require membership in the admin group.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Route binds a ServeMux pattern to a handler and its access level.
type Route struct {
	Pattern string
	Handler http.Handler
	Access  Access
}

// Handlers groups the HTTP handlers the API serves.
type Handlers struct {
	Upload  *UploadHandler
	Process *ProcessHandler
	Draft   *DraftHandler
	Letter  *LetterHandler
	Health  *HealthHandler
}

// Routes is the full route table.
func Routes(h *Handlers) []Route {
	return []Route{
		{"GET /health", http.HandlerFunc(h.Health.Check), Public},

		// Ingestion
		{"POST /api/upload-request", http.HandlerFunc(h.Upload.CreateUploadRequest), Authenticated},
		{"POST /api/process/{uploadId}", http.HandlerFunc(h.Process.StartProcessing), Authenticated},

		// Draft review
		{"GET /api/admin/drafts", http.HandlerFunc(h.Draft.ListDrafts), Admin},
		{"GET /api/admin/drafts/{id}", http.HandlerFunc(h.Draft.GetDraft), Admin},
		{"DELETE /api/admin/drafts/{id}", http.HandlerFunc(h.Draft.DeleteDraft), Admin},
		{"POST /api/admin/drafts/{id}/publish", http.HandlerFunc(h.Draft.PublishDraft), Admin},

		// Letters
		{"GET /api/letters", http.HandlerFunc(h.Letter.ListLetters), Authenticated},
		{"GET /api/letters/{id}", http.HandlerFunc(h.Letter.GetLetter), Authenticated},
		{"PUT /api/letters/{id}", http.HandlerFunc(h.Letter.UpdateLetter), Authenticated},
		{"GET /api/letters/{id}/versions", http.HandlerFunc(h.Letter.ListVersions), Authenticated},
		{"POST /api/letters/{id}/revert", http.HandlerFunc(h.Letter.RevertLetter), Authenticated},
		{"GET /api/letters/{id}/pdf", http.HandlerFunc(h.Letter.GetPDF), Authenticated},
	}
}

// Register mounts routes on mux, wrapping each with its access check and
// per-route metrics.
func Register(mux *http.ServeMux, routes []Route) {
	for _, rt := range routes {
		h := rt.Handler
		switch rt.Access {
		case Authenticated:
			h = middleware.RequireIdentity(h)
		case Admin:
			h = middleware.RequireAdmin(h)
		}
		mux.Handle(rt.Pattern, middleware.Metrics(rt.Pattern)(h))
	}
}
