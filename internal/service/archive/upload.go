package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"letterarchive/internal/config"
	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/services"
)

// AllowedUploadTypes are the content types the merge step understands.
var AllowedUploadTypes = []any{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/tiff",
	"image/webp",
}

type uploadService struct {
	store  services.ObjectStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewUploadService creates the service behind POST /api/upload-request
func NewUploadService(store services.ObjectStore, ttl time.Duration, logger *slog.Logger) services.UploadService {
	return &uploadService{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// CreateSession allocates an upload ID and presigns one PUT per file.
// Nothing is persisted; the keys are the only record of the session.
func (s *uploadService) CreateSession(ctx context.Context, req *services.CreateUploadRequest) (*models.UploadSession, error) {
	if err := validateUploadRequest(req); err != nil {
		return nil, err
	}

	uploadID := uuid.NewString()
	expiresAt := s.now().Add(s.ttl).UTC()

	files := make([]models.UploadFile, 0, len(req.Files))
	for i, f := range req.Files {
		key := models.UploadObjectKey(uploadID, i+1, safeFileName(f.Name))
		contentType := strings.ToLower(f.ContentType)

		url, err := s.store.PresignPut(ctx, key, contentType, s.ttl)
		if err != nil {
			return nil, fmt.Errorf("presign upload %s: %w", key, err)
		}
		files = append(files, models.UploadFile{
			Key:         key,
			URL:         url,
			ContentType: contentType,
			ExpiresAt:   expiresAt,
		})
	}

	s.logger.Info("upload session created",
		"upload_id", uploadID,
		"file_count", len(files),
	)

	return &models.UploadSession{
		UploadID:  uploadID,
		FileCount: len(files),
		Files:     files,
		ExpiresAt: expiresAt,
	}, nil
}

func validateUploadRequest(req *services.CreateUploadRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Files,
			validation.Required.Error("at least one file is required"),
			validation.Length(1, config.MaxUploadFiles),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	for i := range req.Files {
		f := &req.Files[i]
		f.ContentType = strings.ToLower(strings.TrimSpace(f.ContentType))
		err := validation.ValidateStruct(f,
			validation.Field(&f.Name, validation.Required, validation.Length(1, config.MaxUploadFileNameLength)),
			validation.Field(&f.ContentType, validation.Required, validation.In(AllowedUploadTypes...)),
		)
		if err != nil {
			return fmt.Errorf("%w: files[%d]: %v", domain.ErrValidation, i, err)
		}
	}
	return nil
}

// safeFileName keeps the base name readable inside an object key.
func safeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	safe := strings.Trim(b.String(), "._")
	if safe == "" {
		return "file"
	}
	return safe
}

// ValidateUploadID rejects IDs that were not issued by CreateSession before
// they reach object storage or the database.
func ValidateUploadID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: upload id is required", domain.ErrValidation)
	}
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return fmt.Errorf("%w: invalid upload id %q", domain.ErrValidation, id)
	}
	return nil
}
