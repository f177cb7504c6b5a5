package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
	"letterarchive/internal/domain/services"
)

// seedEditor is recorded as the creator of seeded letters
const seedEditor = "seed"

// LetterSeeder inserts fixture letters. Letters are created the way publish
// creates them and revisions go through the letter service, so seeded
// history obeys the same versioning rules as real edits.
type LetterSeeder struct {
	letters  repositories.LetterRepository
	service  services.LetterService
	analyzer services.ContentAnalyzer
	logger   *slog.Logger
	now      func() time.Time
}

// NewLetterSeeder creates a new letter seeder
func NewLetterSeeder(
	letters repositories.LetterRepository,
	service services.LetterService,
	analyzer services.ContentAnalyzer,
	logger *slog.Logger,
) *LetterSeeder {
	return &LetterSeeder{
		letters:  letters,
		service:  service,
		analyzer: analyzer,
		logger:   logger,
		now:      time.Now,
	}
}

// Result counts what Seed did.
type Result struct {
	Created   int
	Skipped   int
	Revisions int
}

// Seed creates each fixture letter that does not exist yet. Existing
// letters are left untouched, so seeding twice is harmless.
func (s *LetterSeeder) Seed(ctx context.Context, fx *Fixtures) (Result, error) {
	var res Result
	for _, f := range fx.Letters {
		exists, err := s.letters.Exists(ctx, f.ID)
		if err != nil {
			return res, err
		}
		if exists {
			s.logger.Info("letter already seeded", "letter_id", f.ID)
			res.Skipped++
			continue
		}

		content := s.analyzer.Sanitize(f.Content)
		tags := f.Tags
		if tags == nil {
			tags = []string{}
		}
		letter := &models.Letter{
			ID:            f.ID,
			Date:          f.Date,
			Title:         strings.TrimSpace(f.Title),
			OriginalTitle: strings.TrimSpace(f.Title),
			Content:       content,
			Author:        f.Author,
			Recipient:     f.Recipient,
			Location:      f.Location,
			Summary:       f.Summary,
			Tags:          tags,
			WordCount:     s.analyzer.CountWords(content),
			LastEditedBy:  seedEditor,
			CreatedAt:     s.now().UTC(),
		}
		if err := s.letters.Create(ctx, letter); err != nil {
			return res, fmt.Errorf("seed letter %s: %w", f.ID, err)
		}
		res.Created++

		for i, rev := range f.Revisions {
			editor := rev.Editor
			if editor == "" {
				editor = seedEditor
			}
			_, err := s.service.UpdateLetter(ctx, f.ID, editor, &services.UpdateLetterRequest{
				Title:   rev.Title,
				Content: rev.Content,
			})
			if err != nil {
				return res, fmt.Errorf("seed letter %s revision %d: %w", f.ID, i+1, err)
			}
			res.Revisions++
		}

		s.logger.Info("letter seeded",
			"letter_id", f.ID,
			"revisions", len(f.Revisions),
		)
	}
	return res, nil
}
