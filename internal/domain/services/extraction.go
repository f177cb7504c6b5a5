package services

import (
	"context"

	"letterarchive/internal/domain/models"
)

// LetterExtractor turns a merged letter PDF into structured fields.
// Implementations retry transient upstream failures themselves.
type LetterExtractor interface {
	ParseLetter(ctx context.Context, pdf []byte) (*models.ParsedLetter, error)
}
