package models

import (
	"fmt"
	"time"
)

// LetterDateLayout is the layout of a letter's date and of its ID prefix.
const LetterDateLayout = "2006-01-02"

// Letter is a published archive entry.
type Letter struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"originalTitle"`
	Content       string    `json:"content"`
	Author        *string   `json:"author,omitempty"`
	Recipient     *string   `json:"recipient,omitempty"`
	Location      *string   `json:"location,omitempty"`
	Summary       *string   `json:"summary,omitempty"`
	Tags          []string  `json:"tags"`
	WordCount     int       `json:"wordCount"`
	PDFKey        *string   `json:"pdfKey,omitempty"`
	VersionCount  int       `json:"versionCount"`
	LastEditedBy  string    `json:"lastEditedBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LetterSummary is the list-view projection of a letter.
type LetterSummary struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Title        string    `json:"title"`
	Author       *string   `json:"author,omitempty"`
	Summary      *string   `json:"summary,omitempty"`
	Tags         []string  `json:"tags"`
	HasPDF       bool      `json:"hasPdf"`
	VersionCount int       `json:"versionCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LetterVersion is an immutable snapshot of a letter's state before an edit
// or revert. It is keyed by (LetterID, SnapshotAt).
type LetterVersion struct {
	LetterID      string    `json:"letterId"`
	SnapshotAt    time.Time `json:"versionTimestamp"`
	VersionNumber int       `json:"versionNumber"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	EditedBy      string    `json:"editedBy"`
	EditedAt      time.Time `json:"editedAt"`
}

// LetterPage is one page of the letter listing.
type LetterPage struct {
	Letters    []LetterSummary `json:"letters"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// DownloadURL is a time-limited link to a stored object.
type DownloadURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ParseLetterDate extracts the date from a letter ID. IDs are a date,
// optionally followed by "-suffix".
func ParseLetterDate(id string) (time.Time, error) {
	if len(id) < len(LetterDateLayout) {
		return time.Time{}, fmt.Errorf("letter id %q does not start with a date", id)
	}
	if len(id) > len(LetterDateLayout) && id[len(LetterDateLayout)] != '-' {
		return time.Time{}, fmt.Errorf("letter id %q does not start with a date", id)
	}
	d, err := time.Parse(LetterDateLayout, id[:len(LetterDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("letter id %q does not start with a date", id)
	}
	return d, nil
}
