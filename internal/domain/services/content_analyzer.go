package services

// ContentAnalyzer prepares letter bodies for storage
type ContentAnalyzer interface {
	// Sanitize strips markup that could run in a reader's browser
	Sanitize(content string) string

	// CountWords counts words in markdown content
	CountWords(markdown string) int
}
