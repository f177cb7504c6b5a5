package models

import (
	"fmt"
	"time"
)

// DraftStatus is the lifecycle state of one ingestion run.
type DraftStatus string

const (
	DraftStatusProcessing DraftStatus = "PROCESSING"
	DraftStatusReview     DraftStatus = "REVIEW"
	DraftStatusError      DraftStatus = "ERROR"
)

// validDraftTransitions lists the only moves a draft may make.
// REVIEW and ERROR are terminal; only delete or publish ends them.
var validDraftTransitions = map[DraftStatus][]DraftStatus{
	DraftStatusProcessing: {DraftStatusReview, DraftStatusError},
	DraftStatusReview:     {},
	DraftStatusError:      {},
}

// Valid reports whether s is a known status.
func (s DraftStatus) Valid() bool {
	_, ok := validDraftTransitions[s]
	return ok
}

// Terminal reports whether the run that produced the draft has finished.
func (s DraftStatus) Terminal() bool {
	return s == DraftStatusReview || s == DraftStatusError
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s DraftStatus) CanTransitionTo(next DraftStatus) bool {
	for _, allowed := range validDraftTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateDraftTransition returns an error describing an illegal move.
func ValidateDraftTransition(from, to DraftStatus) error {
	if !from.Valid() {
		return fmt.Errorf("unknown draft status %q", from)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("draft status cannot change from %s to %s", from, to)
	}
	return nil
}

// ParsedLetter is the structured output of extraction. Only Date and
// Transcription are guaranteed.
type ParsedLetter struct {
	Date          string   `json:"date"`
	Author        *string  `json:"author"`
	Transcription string   `json:"transcription"`
	Summary       *string  `json:"summary"`
	Recipient     *string  `json:"recipient"`
	Location      *string  `json:"location"`
	Tags          []string `json:"tags"`
}

// Draft is one ingestion run awaiting admin review. Its ID is the upload ID.
type Draft struct {
	ID           string        `json:"id"`
	Status       DraftStatus   `json:"status"`
	MergedKey    *string       `json:"mergedKey,omitempty"`
	Parsed       *ParsedLetter `json:"parsed,omitempty"`
	ErrorMessage *string       `json:"errorMessage,omitempty"`
	RequestedBy  string        `json:"requestedBy"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}
