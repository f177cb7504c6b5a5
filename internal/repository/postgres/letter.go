package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
)

// PostgresLetterRepository implements the LetterRepository interface
type PostgresLetterRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewLetterRepository creates a new letter repository
func NewLetterRepository(config *RepositoryConfig) repositories.LetterRepository {
	return &PostgresLetterRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const letterColumns = `id, letter_date::text, title, original_title, content, author, recipient,
	location, summary, tags, word_count, pdf_key, version_count, last_edited_by, created_at, updated_at`

// Create inserts a new letter
func (r *PostgresLetterRepository) Create(ctx context.Context, letter *models.Letter) error {
	tags := letter.Tags
	if tags == nil {
		tags = []string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, letter_date, title, original_title, content, author, recipient,
			location, summary, tags, word_count, pdf_key, version_count, last_edited_by,
			created_at, updated_at)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING created_at, updated_at
	`, r.tables.Letters)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		letter.ID,
		letter.Date,
		letter.Title,
		letter.OriginalTitle,
		letter.Content,
		letter.Author,
		letter.Recipient,
		letter.Location,
		letter.Summary,
		tags,
		letter.WordCount,
		letter.PDFKey,
		letter.VersionCount,
		letter.LastEditedBy,
		letter.CreatedAt,
	).Scan(&letter.CreatedAt, &letter.UpdatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("letter '%s' already exists", letter.ID),
				ResourceType: "letter",
				ResourceID:   letter.ID,
			}
		}
		if IsPgInvalidDateError(err) {
			return fmt.Errorf("%w: invalid letter date %q", domain.ErrValidation, letter.Date)
		}
		return fmt.Errorf("create letter: %w", err)
	}

	letter.Tags = tags
	return nil
}

// GetByID retrieves a letter by ID
func (r *PostgresLetterRepository) GetByID(ctx context.Context, id string) (*models.Letter, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves a letter and locks its row until the transaction ends
func (r *PostgresLetterRepository) GetForUpdate(ctx context.Context, id string) (*models.Letter, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *PostgresLetterRepository) get(ctx context.Context, id, lock string) (*models.Letter, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 %s`, letterColumns, r.tables.Letters, lock)

	executor := GetExecutor(ctx, r.pool)
	letter, err := scanLetter(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("letter %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get letter: %w", err)
	}
	return letter, nil
}

// Exists reports whether a letter ID is taken
func (r *PostgresLetterRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.tables.Letters)

	var exists bool
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check letter exists: %w", err)
	}
	return exists, nil
}

// ListIDsWithPrefix returns IDs equal to prefix or starting with prefix + "-"
func (r *PostgresLetterRepository) ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = $1 OR starts_with(id, $1 || '-')
		ORDER BY id
	`, r.tables.Letters)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("list letter ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect letter ids: %w", err)
	}
	return ids, nil
}

// List returns a page of letters, newest date first
func (r *PostgresLetterRepository) List(ctx context.Context, after *repositories.LetterCursor, limit int) ([]models.LetterSummary, error) {
	where := ""
	args := []any{limit}
	if after != nil {
		where = "WHERE (letter_date, id) < ($2::date, $3)"
		args = append(args, after.Date, after.ID)
	}

	query := fmt.Sprintf(`
		SELECT id, letter_date::text, title, author, summary, tags, pdf_key IS NOT NULL,
			version_count, updated_at
		FROM %s
		%s
		ORDER BY letter_date DESC, id DESC
		LIMIT $1
	`, r.tables.Letters, where)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		if IsPgInvalidDateError(err) {
			return nil, fmt.Errorf("%w: invalid cursor", domain.ErrValidation)
		}
		return nil, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	letters := []models.LetterSummary{}
	for rows.Next() {
		var s models.LetterSummary
		if err := rows.Scan(
			&s.ID,
			&s.Date,
			&s.Title,
			&s.Author,
			&s.Summary,
			&s.Tags,
			&s.HasPDF,
			&s.VersionCount,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		letters = append(letters, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate letters: %w", err)
	}
	return letters, nil
}

// UpdateContent overwrites the editable fields and version count
func (r *PostgresLetterRepository) UpdateContent(ctx context.Context, letter *models.Letter) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			title = $2,
			content = $3,
			word_count = $4,
			version_count = $5,
			last_edited_by = $6,
			updated_at = $7
		WHERE id = $1
	`, r.tables.Letters)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		letter.ID,
		letter.Title,
		letter.Content,
		letter.WordCount,
		letter.VersionCount,
		letter.LastEditedBy,
		letter.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("letter %s: %w", letter.ID, domain.ErrNotFound)
	}
	return nil
}

// CreateVersion appends a snapshot to a letter's history
func (r *PostgresLetterRepository) CreateVersion(ctx context.Context, v *models.LetterVersion) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (letter_id, snapshot_at, version_number, title, content, edited_by, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.LetterVersions)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		v.LetterID,
		v.SnapshotAt,
		v.VersionNumber,
		v.Title,
		v.Content,
		v.EditedBy,
		v.EditedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("letter '%s' changed concurrently", v.LetterID),
				ResourceType: "letter_version",
				ResourceID:   v.LetterID,
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("letter %s: %w", v.LetterID, domain.ErrNotFound)
		}
		return fmt.Errorf("create letter version: %w", err)
	}
	return nil
}

// GetVersion retrieves one snapshot by its timestamp
func (r *PostgresLetterRepository) GetVersion(ctx context.Context, letterID string, snapshotAt time.Time) (*models.LetterVersion, error) {
	query := fmt.Sprintf(`
		SELECT letter_id, snapshot_at, version_number, title, content, edited_by, edited_at
		FROM %s
		WHERE letter_id = $1 AND snapshot_at = $2
	`, r.tables.LetterVersions)

	var v models.LetterVersion
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, letterID, snapshotAt).Scan(
		&v.LetterID,
		&v.SnapshotAt,
		&v.VersionNumber,
		&v.Title,
		&v.Content,
		&v.EditedBy,
		&v.EditedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("version %s of letter %s: %w",
				snapshotAt.Format(time.RFC3339Nano), letterID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get letter version: %w", err)
	}
	return &v, nil
}

// ListVersions returns a letter's history, newest first
func (r *PostgresLetterRepository) ListVersions(ctx context.Context, letterID string) ([]models.LetterVersion, error) {
	query := fmt.Sprintf(`
		SELECT letter_id, snapshot_at, version_number, title, content, edited_by, edited_at
		FROM %s
		WHERE letter_id = $1
		ORDER BY snapshot_at DESC
	`, r.tables.LetterVersions)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, letterID)
	if err != nil {
		return nil, fmt.Errorf("list letter versions: %w", err)
	}
	defer rows.Close()

	versions := []models.LetterVersion{}
	for rows.Next() {
		var v models.LetterVersion
		if err := rows.Scan(
			&v.LetterID,
			&v.SnapshotAt,
			&v.VersionNumber,
			&v.Title,
			&v.Content,
			&v.EditedBy,
			&v.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("scan letter version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate letter versions: %w", err)
	}
	return versions, nil
}

// CountVersions returns the number of snapshots stored for a letter
func (r *PostgresLetterRepository) CountVersions(ctx context.Context, letterID string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE letter_id = $1`, r.tables.LetterVersions)

	var n int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, letterID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count letter versions: %w", err)
	}
	return n, nil
}

func scanLetter(row pgx.Row) (*models.Letter, error) {
	var l models.Letter
	err := row.Scan(
		&l.ID,
		&l.Date,
		&l.Title,
		&l.OriginalTitle,
		&l.Content,
		&l.Author,
		&l.Recipient,
		&l.Location,
		&l.Summary,
		&l.Tags,
		&l.WordCount,
		&l.PDFKey,
		&l.VersionCount,
		&l.LastEditedBy,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
