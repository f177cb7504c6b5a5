package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"letterarchive/internal/domain/models"
)

// ErrMalformedResponse means the model answered but not with a usable letter.
// It is not retried.
var ErrMalformedResponse = errors.New("malformed extraction response")

type rawLetter struct {
	Date          *string  `json:"date"`
	Author        *string  `json:"author"`
	Recipient     *string  `json:"recipient"`
	Location      *string  `json:"location"`
	Transcription *string  `json:"transcription"`
	Summary       *string  `json:"summary"`
	Tags          []string `json:"tags"`
}

// parseResponse pulls the JSON object out of the model text. Models sometimes
// wrap it in a code fence or add a sentence around it.
func parseResponse(text string, prompt *Prompt) (*models.ParsedLetter, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}

	var raw rawLetter
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if raw.Transcription == nil || strings.TrimSpace(*raw.Transcription) == "" {
		return nil, fmt.Errorf("%w: transcription is empty", ErrMalformedResponse)
	}

	parsed := &models.ParsedLetter{
		Date:          normalizeDate(raw.Date, prompt.FallbackDate),
		Author:        nonEmpty(raw.Author),
		Recipient:     nonEmpty(raw.Recipient),
		Location:      nonEmpty(raw.Location),
		Transcription: strings.TrimSpace(*raw.Transcription),
		Summary:       nonEmpty(raw.Summary),
		Tags:          normalizeTags(raw.Tags, prompt.MaxTags),
	}
	return parsed, nil
}

var partialDateLayouts = []struct {
	layout string
	format func(time.Time) string
}{
	{models.LetterDateLayout, func(t time.Time) string { return t.Format(models.LetterDateLayout) }},
	{"2006-01", func(t time.Time) string { return t.Format("2006-01") + "-01" }},
	{"2006", func(t time.Time) string { return t.Format("2006") + "-01-01" }},
	{"January 2, 2006", func(t time.Time) string { return t.Format(models.LetterDateLayout) }},
	{"2 January 2006", func(t time.Time) string { return t.Format(models.LetterDateLayout) }},
}

func normalizeDate(raw *string, fallback string) string {
	if raw == nil {
		return fallback
	}
	s := strings.TrimSpace(*raw)
	for _, l := range partialDateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return l.format(t)
		}
	}
	return fallback
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "unknown") {
		return nil
	}
	return &v
}

func normalizeTags(tags []string, max int) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
