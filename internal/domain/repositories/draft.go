package repositories

import (
	"context"

	"letterarchive/internal/domain/models"
)

// DraftRepository defines data access for drafts
type DraftRepository interface {
	// Upsert creates the draft or resets an existing one to PROCESSING,
	// clearing parsed fields, merged key and error message.
	Upsert(ctx context.Context, draft *models.Draft) error

	// GetByID returns domain.ErrNotFound if the draft does not exist
	GetByID(ctx context.Context, id string) (*models.Draft, error)

	// List returns all drafts, newest first
	List(ctx context.Context) ([]models.Draft, error)

	// Transition moves a draft from one status to another and stores the
	// given fields. It returns domain.ErrConflict if the draft is no longer
	// in the from status and domain.ErrNotFound if it is gone.
	Transition(ctx context.Context, id string, from models.DraftStatus, update *DraftUpdate) error

	// Delete removes the draft. Deleting a missing draft is not an error.
	// Returns whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// DraftUpdate carries the fields written by a status transition.
type DraftUpdate struct {
	Status       models.DraftStatus
	MergedKey    *string
	Parsed       *models.ParsedLetter
	ErrorMessage *string
}
