package services

import (
	"context"

	"letterarchive/internal/domain/models"
)

// UploadFileRequest describes one file the client intends to upload
type UploadFileRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// CreateUploadRequest is the body of POST /api/upload-request
type CreateUploadRequest struct {
	Files []UploadFileRequest `json:"files"`
}

// UploadService issues upload sessions
type UploadService interface {
	CreateSession(ctx context.Context, req *CreateUploadRequest) (*models.UploadSession, error)
}

// ProcessRequest identifies one processor run
type ProcessRequest struct {
	UploadID    string
	RequesterID string
}

// LetterProcessor runs the merge and extraction pipeline for one upload.
// Failures after validation end up on the draft, not in the returned error.
type LetterProcessor interface {
	Process(ctx context.Context, req ProcessRequest) error
}

// ProcessDispatcher schedules processor runs in the background
type ProcessDispatcher interface {
	// Submit validates the request and starts the run. It does not wait for it.
	Submit(req ProcessRequest) error
}

// DraftService is the admin review surface for drafts
type DraftService interface {
	ListDrafts(ctx context.Context) ([]models.Draft, error)
	GetDraft(ctx context.Context, id string) (*models.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
}

// PublishRequest holds the admin-edited final fields of a draft
type PublishRequest struct {
	Date      string   `json:"date"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Author    *string  `json:"author"`
	Recipient *string  `json:"recipient"`
	Location  *string  `json:"location"`
	Summary   *string  `json:"summary"`
	Tags      []string `json:"tags"`
}

// PublishService promotes drafts into letters
type PublishService interface {
	Publish(ctx context.Context, draftID, editorID string, req *PublishRequest) (*models.Letter, error)
}

// UpdateLetterRequest is the body of PUT /api/letters/{id}
type UpdateLetterRequest struct {
	Title   *string `json:"title"`
	Content string  `json:"content"`
}

// RevertLetterRequest is the body of POST /api/letters/{id}/revert
type RevertLetterRequest struct {
	VersionTimestamp string `json:"versionTimestamp"`
}

// LetterService manages published letters and their history
type LetterService interface {
	ListLetters(ctx context.Context, cursor string, limit int) (*models.LetterPage, error)
	GetLetter(ctx context.Context, id string) (*models.Letter, error)
	UpdateLetter(ctx context.Context, id, editorID string, req *UpdateLetterRequest) (*models.Letter, error)
	ListVersions(ctx context.Context, id string) ([]models.LetterVersion, error)
	RevertLetter(ctx context.Context, id, editorID string, req *RevertLetterRequest) (*models.Letter, error)
	GetPDFURL(ctx context.Context, id string) (*models.DownloadURL, error)
}
