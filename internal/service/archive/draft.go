package archive

import (
	"context"
	"fmt"
	"log/slog"

	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
	"letterarchive/internal/domain/services"
)

type draftService struct {
	drafts repositories.DraftRepository
	logger *slog.Logger
}

// NewDraftService creates the admin draft review service
func NewDraftService(drafts repositories.DraftRepository, logger *slog.Logger) services.DraftService {
	return &draftService{drafts: drafts, logger: logger}
}

func (s *draftService) ListDrafts(ctx context.Context) ([]models.Draft, error) {
	drafts, err := s.drafts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return drafts, nil
}

func (s *draftService) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	return s.drafts.GetByID(ctx, id)
}

// DeleteDraft discards a draft. Deleting one that is already gone succeeds.
// The uploaded and merged objects are left in storage.
func (s *draftService) DeleteDraft(ctx context.Context, id string) error {
	removed, err := s.drafts.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	s.logger.Info("draft deleted", "draft_id", id, "existed", removed)
	return nil
}
