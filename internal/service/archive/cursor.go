package archive

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
)

// encodeCursor makes the listing position opaque to clients.
func encodeCursor(c repositories.LetterCursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (*repositories.LetterCursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	var c repositories.LetterCursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	if _, err := models.ParseLetterDate(c.Date); err != nil || len(c.Date) != len(models.LetterDateLayout) {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	return &c, nil
}
