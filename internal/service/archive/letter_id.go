package archive

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength = 48
	// maxNumericSuffix bounds the -2, -3, ... candidates tried for one date.
	maxNumericSuffix = 99
)

// letterIDCandidates lists the IDs a letter with this date and title may
// take, in order of preference. The sequence is deterministic so two
// publishes of the same draft derive the same ID.
func letterIDCandidates(date, title string) []string {
	candidates := []string{date}
	if slug := slugify(title); slug != "" {
		candidates = append(candidates, date+"-"+slug)
	}
	for n := 2; n <= maxNumericSuffix; n++ {
		candidates = append(candidates, fmt.Sprintf("%s-%d", date, n))
	}
	return candidates
}

// pickLetterID returns the first candidate not in taken.
func pickLetterID(date, title string, taken []string) (string, bool) {
	used := make(map[string]struct{}, len(taken))
	for _, id := range taken {
		used[id] = struct{}{}
	}
	for _, id := range letterIDCandidates(date, title) {
		if _, ok := used[id]; !ok {
			return id, true
		}
	}
	return "", false
}

// slugify lowercases, folds accents and joins words with hyphens.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(unicode.ToLower(r))
		default:
			dash = true
		}
		if b.Len() > maxSlugLength {
			break
		}
	}
	// Only ASCII is written, so byte truncation is safe.
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return strings.Trim(slug, "-")
}
