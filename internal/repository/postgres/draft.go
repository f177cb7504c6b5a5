package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
)

// PostgresDraftRepository implements the DraftRepository interface
type PostgresDraftRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(config *RepositoryConfig) repositories.DraftRepository {
	return &PostgresDraftRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const draftColumns = `id, status, merged_key, letter_date, author, recipient, location,
	transcription, summary, tags, error_message, requested_by, created_at, updated_at`

// Upsert creates the draft or resets an existing one to a fresh run
func (r *PostgresDraftRepository) Upsert(ctx context.Context, draft *models.Draft) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, status, requested_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			merged_key = NULL,
			letter_date = NULL,
			author = NULL,
			recipient = NULL,
			location = NULL,
			transcription = NULL,
			summary = NULL,
			tags = '{}',
			error_message = NULL,
			requested_by = EXCLUDED.requested_by,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, r.tables.Drafts)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		draft.ID,
		draft.Status,
		draft.RequestedBy,
		draft.CreatedAt,
	).Scan(&draft.CreatedAt, &draft.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// GetByID retrieves a draft by ID
func (r *PostgresDraftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, draftColumns, r.tables.Drafts)

	executor := GetExecutor(ctx, r.pool)
	draft, err := scanDraft(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return draft, nil
}

// List retrieves all drafts, newest first
func (r *PostgresDraftRepository) List(ctx context.Context) ([]models.Draft, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id`, draftColumns, r.tables.Drafts)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	drafts := []models.Draft{}
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, *draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return drafts, nil
}

// Transition moves a draft out of from, guarded by the current status
func (r *PostgresDraftRepository) Transition(ctx context.Context, id string, from models.DraftStatus, update *repositories.DraftUpdate) error {
	if err := models.ValidateDraftTransition(from, update.Status); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}

	var (
		date, transcription               *string
		author, recipient, location, summ *string
		tags                              = []string{}
	)
	if p := update.Parsed; p != nil {
		date = &p.Date
		transcription = &p.Transcription
		author, recipient, location, summ = p.Author, p.Recipient, p.Location, p.Summary
		if p.Tags != nil {
			tags = p.Tags
		}
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			status = $3,
			merged_key = COALESCE($4, merged_key),
			letter_date = $5,
			author = $6,
			recipient = $7,
			location = $8,
			transcription = $9,
			summary = $10,
			tags = $11,
			error_message = $12,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, r.tables.Drafts)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		id, from, update.Status, update.MergedKey,
		date, author, recipient, location, transcription, summ, tags,
		update.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update draft status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return &domain.ConflictError{
			Message:      fmt.Sprintf("draft %s is no longer %s", id, from),
			ResourceType: "draft",
			ResourceID:   id,
		}
	}
	return nil
}

// Delete removes a draft; missing drafts are not an error
func (r *PostgresDraftRepository) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Drafts)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete draft: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanDraft(row pgx.Row) (*models.Draft, error) {
	var (
		d             models.Draft
		date          *string
		transcription *string
		author        *string
		recipient     *string
		location      *string
		summary       *string
		tags          []string
	)
	err := row.Scan(
		&d.ID,
		&d.Status,
		&d.MergedKey,
		&date,
		&author,
		&recipient,
		&location,
		&transcription,
		&summary,
		&tags,
		&d.ErrorMessage,
		&d.RequestedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if transcription != nil || date != nil {
		d.Parsed = &models.ParsedLetter{
			Author:    author,
			Recipient: recipient,
			Location:  location,
			Summary:   summary,
			Tags:      tags,
		}
		if date != nil {
			d.Parsed.Date = *date
		}
		if transcription != nil {
			d.Parsed.Transcription = *transcription
		}
	}
	return &d, nil
}
