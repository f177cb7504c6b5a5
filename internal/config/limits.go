package config

const (
	// MaxUploadFiles caps the pages of one upload session. A letter longer
	// than this should be uploaded as a single PDF.
	MaxUploadFiles = 50

	// MaxUploadFileNameLength bounds client-supplied file names before they
	// are folded into object keys.
	MaxUploadFileNameLength = 200

	// MaxLetterTitleLength fits the title columns.
	MaxLetterTitleLength = 255

	// MaxLetterTags bounds the tags attached to one letter.
	MaxLetterTags = 30

	// DefaultLetterPageSize and MaxLetterPageSize bound GET /api/letters.
	DefaultLetterPageSize = 20
	MaxLetterPageSize     = 100

	// MinAPIKeyLength is shorter than any real provider key.
	MinAPIKeyLength = 20
)
