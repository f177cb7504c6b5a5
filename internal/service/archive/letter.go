package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"letterarchive/internal/config"
	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
	"letterarchive/internal/domain/services"
)

type letterService struct {
	letters     repositories.LetterRepository
	txManager   repositories.TransactionManager
	store       services.ObjectStore
	analyzer    services.ContentAnalyzer
	cache       *LetterCache
	downloadTTL time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewLetterService creates the versioned letter service. cache may be nil.
func NewLetterService(
	letters repositories.LetterRepository,
	txManager repositories.TransactionManager,
	store services.ObjectStore,
	analyzer services.ContentAnalyzer,
	cache *LetterCache,
	downloadTTL time.Duration,
	logger *slog.Logger,
) services.LetterService {
	return &letterService{
		letters:     letters,
		txManager:   txManager,
		store:       store,
		analyzer:    analyzer,
		cache:       cache,
		downloadTTL: downloadTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// ListLetters returns one page, newest date first
func (s *letterService) ListLetters(ctx context.Context, cursor string, limit int) (*models.LetterPage, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = config.DefaultLetterPageSize
	case limit > config.MaxLetterPageSize:
		limit = config.MaxLetterPageSize
	}

	// One extra row tells us whether another page exists.
	letters, err := s.letters.List(ctx, after, limit+1)
	if err != nil {
		return nil, err
	}

	page := &models.LetterPage{Letters: letters}
	if len(letters) > limit {
		page.Letters = letters[:limit]
		last := page.Letters[limit-1]
		page.NextCursor = encodeCursor(repositories.LetterCursor{Date: last.Date, ID: last.ID})
	}
	return page, nil
}

func (s *letterService) GetLetter(ctx context.Context, id string) (*models.Letter, error) {
	if err := validateLetterID(id); err != nil {
		return nil, err
	}
	if letter, ok := s.cache.Get(id); ok {
		return letter, nil
	}

	letter, err := s.letters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(letter)
	return letter, nil
}

// UpdateLetter snapshots the current state and then applies the edit, in
// one transaction with the letter row locked.
func (s *letterService) UpdateLetter(ctx context.Context, id, editorID string, req *services.UpdateLetterRequest) (*models.Letter, error) {
	if err := validateLetterID(id); err != nil {
		return nil, err
	}
	if err := validateUpdateRequest(req); err != nil {
		return nil, err
	}

	content := s.analyzer.Sanitize(req.Content)
	var updated *models.Letter
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		letter, err := s.letters.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		title := letter.Title
		if req.Title != nil {
			title = strings.TrimSpace(*req.Title)
		}

		updated, err = s.applyVersioned(txCtx, letter, editorID, title, content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Add(updated)
	letterEdits.WithLabelValues("edit").Inc()
	s.logger.Info("letter updated",
		"letter_id", id,
		"editor", editorID,
		"version_count", updated.VersionCount,
	)
	return updated, nil
}

// ListVersions returns the history of a letter, newest first. A letter
// without history, or an unknown letter, yields an empty list.
func (s *letterService) ListVersions(ctx context.Context, id string) ([]models.LetterVersion, error) {
	if err := validateLetterID(id); err != nil {
		return nil, err
	}
	return s.letters.ListVersions(ctx, id)
}

// RevertLetter restores a snapshot as the current state. The state being
// replaced is snapshotted first, so a revert is an edit like any other.
func (s *letterService) RevertLetter(ctx context.Context, id, editorID string, req *services.RevertLetterRequest) (*models.Letter, error) {
	if err := validateLetterID(id); err != nil {
		return nil, err
	}
	target, err := parseVersionTimestamp(req.VersionTimestamp)
	if err != nil {
		return nil, err
	}

	var updated *models.Letter
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		letter, err := s.letters.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		version, err := s.letters.GetVersion(txCtx, id, target)
		if err != nil {
			return err
		}

		updated, err = s.applyVersioned(txCtx, letter, editorID, version.Title, version.Content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Add(updated)
	letterEdits.WithLabelValues("revert").Inc()
	s.logger.Info("letter reverted",
		"letter_id", id,
		"editor", editorID,
		"version_timestamp", target.Format(time.RFC3339Nano),
		"version_count", updated.VersionCount,
	)
	return updated, nil
}

// applyVersioned writes a snapshot of letter as it is now, then overwrites
// it. Must run inside a transaction holding the row lock. With M versions
// stored the snapshot is number M+1 and the count becomes M+1; the stored
// history wins over a drifted version_count.
func (s *letterService) applyVersioned(ctx context.Context, letter *models.Letter, editorID, title, content string) (*models.Letter, error) {
	stored, err := s.letters.CountVersions(ctx, letter.ID)
	if err != nil {
		return nil, err
	}
	if stored != letter.VersionCount {
		s.logger.Warn("letter version count out of step with history",
			"letter_id", letter.ID,
			"version_count", letter.VersionCount,
			"stored_versions", stored,
		)
	}

	now := s.now().UTC().Truncate(time.Microsecond)

	snapshot := &models.LetterVersion{
		LetterID:      letter.ID,
		SnapshotAt:    now,
		VersionNumber: stored + 1,
		Title:         letter.Title,
		Content:       letter.Content,
		EditedBy:      editorID,
		EditedAt:      now,
	}
	if err := s.letters.CreateVersion(ctx, snapshot); err != nil {
		return nil, err
	}

	letter.Title = title
	letter.Content = content
	letter.WordCount = s.analyzer.CountWords(content)
	letter.VersionCount = snapshot.VersionNumber
	letter.LastEditedBy = editorID
	letter.UpdatedAt = now
	if err := s.letters.UpdateContent(ctx, letter); err != nil {
		return nil, err
	}
	return letter, nil
}

// GetPDFURL returns a time-limited download link for the letter's PDF
func (s *letterService) GetPDFURL(ctx context.Context, id string) (*models.DownloadURL, error) {
	letter, err := s.GetLetter(ctx, id)
	if err != nil {
		return nil, err
	}
	if letter.PDFKey == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("letter %s has no PDF", id)}
	}

	url, err := s.store.PresignGet(ctx, *letter.PDFKey, s.downloadTTL)
	if err != nil {
		return nil, fmt.Errorf("presign letter pdf: %w", err)
	}
	return &models.DownloadURL{
		URL:       url,
		ExpiresAt: s.now().Add(s.downloadTTL).UTC(),
	}, nil
}

func validateLetterID(id string) error {
	if _, err := models.ParseLetterDate(id); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func validateUpdateRequest(req *services.UpdateLetterRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Content, validation.Required, validation.By(notBlank)),
		validation.Field(&req.Title, validation.NilOrNotEmpty, validation.By(notBlank), validation.Length(1, config.MaxLetterTitleLength)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func parseVersionTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: versionTimestamp is required", domain.ErrValidation)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: versionTimestamp must be RFC 3339", domain.ErrValidation)
	}
	return t.UTC(), nil
}
