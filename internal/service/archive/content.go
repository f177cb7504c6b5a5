package archive

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"letterarchive/internal/domain/services"
)

type contentAnalyzer struct {
	policy *bluemonday.Policy
}

// NewContentAnalyzer creates the analyzer used on publish and edit.
// Safe for concurrent use.
func NewContentAnalyzer() services.ContentAnalyzer {
	return &contentAnalyzer{policy: bluemonday.UGCPolicy()}
}

// Sanitize strips scripts, event handlers and javascript: URLs. Plain text
// without markup is returned unchanged so apostrophes and ampersands in a
// transcription are not turned into entities.
func (a *contentAnalyzer) Sanitize(content string) string {
	content = strings.TrimSpace(content)
	if !strings.ContainsRune(content, '<') {
		return content
	}
	return strings.TrimSpace(a.policy.Sanitize(content))
}

// CountWords counts the number of words in markdown text
func (a *contentAnalyzer) CountWords(markdown string) int {
	text := cleanMarkdown(markdown)

	count := 0
	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		if strings.IndexFunc(word, isWordRune) >= 0 {
			count++
		}
	}
	return count
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// cleanMarkdown removes markdown syntax from text
func cleanMarkdown(markdown string) string {
	text := removeCodeFences(markdown)

	text = strings.NewReplacer(
		"`", "",
		"**", "",
		"__", "",
		"~~", "",
		"#", "",
		">", "",
	).Replace(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		// numbered list markers ("1. ")
		if len(line) > 2 && unicode.IsDigit(rune(line[0])) && line[1] == '.' {
			line = line[2:]
		}
		lines[i] = line
	}
	return strings.Join(lines, " ")
}

// removeCodeFences removes ```...``` blocks
func removeCodeFences(text string) string {
	for {
		start := strings.Index(text, "```")
		if start == -1 {
			return text
		}
		end := strings.Index(text[start+3:], "```")
		if end == -1 {
			return text
		}
		text = text[:start] + text[start+end+6:]
	}
}
