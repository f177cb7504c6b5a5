package archive

import (
	"context"
	"errors"
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

// maxPublishAttempts bounds retries when a concurrent publish takes the
// derived letter ID between derivation and insert.
const maxPublishAttempts = 3

type publishService struct {
	drafts    repositories.DraftRepository
	letters   repositories.LetterRepository
	txManager repositories.TransactionManager
	store     services.ObjectStore
	analyzer  services.ContentAnalyzer
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublishService creates the draft-to-letter workflow
func NewPublishService(
	drafts repositories.DraftRepository,
	letters repositories.LetterRepository,
	txManager repositories.TransactionManager,
	store services.ObjectStore,
	analyzer services.ContentAnalyzer,
	logger *slog.Logger,
) services.PublishService {
	return &publishService{
		drafts:    drafts,
		letters:   letters,
		txManager: txManager,
		store:     store,
		analyzer:  analyzer,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish turns a draft into a letter. The letter insert and the draft
// delete commit together, so a failure leaves the draft in place and no
// letter behind.
func (s *publishService) Publish(ctx context.Context, draftID, editorID string, req *services.PublishRequest) (*models.Letter, error) {
	if err := validatePublishRequest(req); err != nil {
		return nil, err
	}

	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status == models.DraftStatusProcessing {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("draft %s is still processing", draftID),
			ResourceType: "draft",
			ResourceID:   draftID,
		}
	}

	// From here on the work must finish even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	content := s.analyzer.Sanitize(req.Content)
	title := strings.TrimSpace(req.Title)
	now := s.now().UTC()

	for attempt := 1; ; attempt++ {
		letter, err := s.publishOnce(ctx, draft, editorID, req, title, content, now)
		if err == nil {
			lettersPublished.Inc()
			s.logger.Info("draft published",
				"draft_id", draftID,
				"letter_id", letter.ID,
				"has_pdf", letter.PDFKey != nil,
				"editor", editorID,
			)
			return letter, nil
		}

		var conflict *domain.ConflictError
		if errors.As(err, &conflict) && conflict.ResourceType == "letter" && attempt < maxPublishAttempts {
			s.logger.Warn("letter id taken during publish, deriving again",
				"draft_id", draftID,
				"letter_id", conflict.ResourceID,
			)
			continue
		}
		return nil, err
	}
}

func (s *publishService) publishOnce(
	ctx context.Context,
	draft *models.Draft,
	editorID string,
	req *services.PublishRequest,
	title, content string,
	now time.Time,
) (*models.Letter, error) {
	letterID, err := s.deriveLetterID(ctx, req.Date, title)
	if err != nil {
		return nil, err
	}

	var pdfKey *string
	if draft.MergedKey != nil && *draft.MergedKey != "" {
		ok, err := s.store.Exists(ctx, *draft.MergedKey)
		if err != nil {
			return nil, fmt.Errorf("check merged pdf: %w", err)
		}
		if ok {
			key := models.LetterPDFKey(letterID)
			pdfKey = &key
		} else {
			s.logger.Warn("merged pdf missing, publishing without it",
				"draft_id", draft.ID,
				"merged_key", *draft.MergedKey,
			)
		}
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	letter := &models.Letter{
		ID:            letterID,
		Date:          req.Date,
		Title:         title,
		OriginalTitle: title,
		Content:       content,
		Author:        trimmed(req.Author),
		Recipient:     trimmed(req.Recipient),
		Location:      trimmed(req.Location),
		Summary:       trimmed(req.Summary),
		Tags:          tags,
		WordCount:     s.analyzer.CountWords(content),
		PDFKey:        pdfKey,
		VersionCount:  0,
		LastEditedBy:  editorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.letters.Create(txCtx, letter); err != nil {
			return err
		}
		// The insert holds the ID, so a losing concurrent publish never
		// reaches the copy and cannot overwrite another letter's PDF.
		if pdfKey != nil {
			if err := s.store.Copy(txCtx, *draft.MergedKey, *pdfKey); err != nil {
				return fmt.Errorf("copy letter pdf: %w", err)
			}
		}
		removed, err := s.drafts.Delete(txCtx, draft.ID)
		if err != nil {
			return fmt.Errorf("delete published draft: %w", err)
		}
		if !removed {
			return fmt.Errorf("draft %s: %w", draft.ID, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return letter, nil
}

// deriveLetterID picks the first free ID for the date. Existing letters are
// never overwritten.
func (s *publishService) deriveLetterID(ctx context.Context, date, title string) (string, error) {
	taken, err := s.letters.ListIDsWithPrefix(ctx, date)
	if err != nil {
		return "", fmt.Errorf("list letter ids: %w", err)
	}
	id, ok := pickLetterID(date, title, taken)
	if !ok {
		return "", &domain.ConflictError{
			Message:      fmt.Sprintf("too many letters dated %s", date),
			ResourceType: "letter_date",
			ResourceID:   date,
		}
	}
	return id, nil
}

func validatePublishRequest(req *services.PublishRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Date, validation.Required, validation.Date(models.LetterDateLayout), validation.By(calendarDate)),
		validation.Field(&req.Title, validation.Required, validation.By(notBlank), validation.Length(1, config.MaxLetterTitleLength)),
		validation.Field(&req.Content, validation.Required, validation.By(notBlank)),
		validation.Field(&req.Tags, validation.Length(0, config.MaxLetterTags), validation.Each(validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// calendarDate rejects the year-zero placeholder that extraction uses when
// it cannot read a date.
func calendarDate(value any) error {
	s, _ := value.(string)
	d, err := time.Parse(models.LetterDateLayout, s)
	if err != nil {
		return nil
	}
	if d.Year() < 1 {
		return errors.New("must be a real date, not the unknown-date placeholder")
	}
	return nil
}

func notBlank(value any) error {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return errors.New("cannot be blank")
		}
	case *string:
		if v != nil && strings.TrimSpace(*v) == "" {
			return errors.New("cannot be blank")
		}
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
