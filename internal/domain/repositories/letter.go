package repositories

import (
	"context"
	"time"

	"letterarchive/internal/domain/models"
)

// LetterCursor is the position after which the next page starts.
type LetterCursor struct {
	Date string `json:"d"`
	ID   string `json:"i"`
}

// LetterRepository defines data access for letters and their version history
type LetterRepository interface {
	// Create inserts a letter. Returns a *domain.ConflictError if the ID is taken.
	Create(ctx context.Context, letter *models.Letter) error

	// GetByID returns domain.ErrNotFound if the letter does not exist
	GetByID(ctx context.Context, id string) (*models.Letter, error)

	// GetForUpdate is GetByID with a row lock; only meaningful inside a transaction
	GetForUpdate(ctx context.Context, id string) (*models.Letter, error)

	// Exists reports whether a letter with the ID is stored
	Exists(ctx context.Context, id string) (bool, error)

	// ListIDsWithPrefix returns the IDs equal to or starting with prefix
	ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// List returns up to limit letters ordered by date then ID, both
	// descending, starting after the cursor when one is given
	List(ctx context.Context, after *LetterCursor, limit int) ([]models.LetterSummary, error)

	// UpdateContent overwrites the editable state and version count
	UpdateContent(ctx context.Context, letter *models.Letter) error

	// CreateVersion appends a snapshot to the letter's history
	CreateVersion(ctx context.Context, version *models.LetterVersion) error

	// GetVersion returns domain.ErrNotFound if no snapshot has that timestamp
	GetVersion(ctx context.Context, letterID string, snapshotAt time.Time) (*models.LetterVersion, error)

	// ListVersions returns the letter's history, newest first
	ListVersions(ctx context.Context, letterID string) ([]models.LetterVersion, error)

	// CountVersions returns the number of stored snapshots for a letter
	CountVersions(ctx context.Context, letterID string) (int, error)
}
