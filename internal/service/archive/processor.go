package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
	"letterarchive/internal/domain/services"
	"letterarchive/internal/service/merge"
	"letterarchive/internal/service/retry"
)

// maxParallelFetches bounds concurrent object reads within one run.
const maxParallelFetches = 8

// errNoUploads is stored on the draft when the upload prefix is empty.
var errNoUploads = errors.New("no uploaded files found")

// errRunPanicked marks a run that panicked; the draft gets a generic message.
var errRunPanicked = errors.New("processor run panicked")

type letterProcessor struct {
	drafts    repositories.DraftRepository
	store     services.ObjectStore
	extractor services.LetterExtractor
	logger    *slog.Logger
	now       func() time.Time
}

// NewLetterProcessor creates the merge and extraction pipeline
func NewLetterProcessor(
	drafts repositories.DraftRepository,
	store services.ObjectStore,
	extractor services.LetterExtractor,
	logger *slog.Logger,
) services.LetterProcessor {
	return &letterProcessor{
		drafts:    drafts,
		store:     store,
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

// Process runs one ingestion to completion. The draft always leaves
// PROCESSING: REVIEW with parsed fields on success, ERROR with a message
// otherwise. The returned error is non-nil only when the upload ID is
// invalid or the draft itself could not be written.
func (p *letterProcessor) Process(ctx context.Context, req services.ProcessRequest) error {
	if err := ValidateUploadID(req.UploadID); err != nil {
		return err
	}

	// The run outlives the HTTP request that triggered it.
	ctx = context.WithoutCancel(ctx)
	start := p.now()
	logger := p.logger.With("upload_id", req.UploadID)

	processorInFlight.Inc()
	defer processorInFlight.Dec()
	defer func() { processorDuration.Observe(time.Since(start).Seconds()) }()

	draft := &models.Draft{
		ID:          req.UploadID,
		Status:      models.DraftStatusProcessing,
		RequestedBy: req.RequesterID,
		CreatedAt:   start.UTC(),
	}
	if err := p.drafts.Upsert(ctx, draft); err != nil {
		processorRuns.WithLabelValues("failed").Inc()
		return fmt.Errorf("create draft: %w", err)
	}
	logger.Info("processing started", "requested_by", req.RequesterID)

	parsed, mergedKey, err := p.run(ctx, req.UploadID, logger)
	if err != nil {
		return p.fail(ctx, req.UploadID, mergedKey, err, logger)
	}

	err = p.drafts.Transition(ctx, req.UploadID, models.DraftStatusProcessing, &repositories.DraftUpdate{
		Status:    models.DraftStatusReview,
		MergedKey: mergedKey,
		Parsed:    parsed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			// Another run reset or removed the draft; it owns the outcome.
			logger.Warn("draft changed during processing", "error", err)
			return nil
		}
		return p.fail(ctx, req.UploadID, mergedKey, fmt.Errorf("save parsed letter: %w", err), logger)
	}

	processorRuns.WithLabelValues(string(models.DraftStatusReview)).Inc()
	logger.Info("draft ready for review",
		"letter_date", parsed.Date,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// run fetches, merges, stores and extracts. mergedKey is set as soon as the
// merged PDF is stored so a failed extraction still exposes it for review.
// A panic in any step is returned as errRunPanicked.
func (p *letterProcessor) run(ctx context.Context, uploadID string, logger *slog.Logger) (parsed *models.ParsedLetter, mergedKey *string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("processing panicked", "panic", r, "stack", string(debug.Stack()))
			parsed, err = nil, fmt.Errorf("%w: %v", errRunPanicked, r)
		}
	}()

	files, err := p.fetchUploads(ctx, uploadID)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("uploads fetched", "count", len(files))

	merged, err := merge.Files(files)
	if err != nil {
		return nil, nil, err
	}

	key := models.MergedKey(uploadID)
	if err := p.store.Put(ctx, key, "application/pdf", merged); err != nil {
		return nil, nil, fmt.Errorf("store merged pdf: %w", err)
	}
	mergedKey = &key
	logger.Debug("merged pdf stored", "key", key, "bytes", len(merged))

	parsed, err = p.extractor.ParseLetter(ctx, merged)
	if err != nil {
		return nil, mergedKey, err
	}
	return parsed, mergedKey, nil
}

// fetchUploads reads every object under the upload prefix, keeping the
// listing order, which is the upload order.
func (p *letterProcessor) fetchUploads(ctx context.Context, uploadID string) ([]merge.File, error) {
	keys, err := p.store.List(ctx, models.UploadPrefix(uploadID))
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	if len(keys) == 0 {
		return nil, errNoUploads
	}

	files := make([]merge.File, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, key := range keys {
		g.Go(func() error {
			obj, err := p.store.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", path.Base(key), err)
			}
			files[i] = merge.File{Name: path.Base(key), ContentType: obj.ContentType, Data: obj.Data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (p *letterProcessor) fail(ctx context.Context, uploadID string, mergedKey *string, cause error, logger *slog.Logger) error {
	msg := failureMessage(cause)
	logger.Error("processing failed", "error", cause)

	err := p.drafts.Transition(ctx, uploadID, models.DraftStatusProcessing, &repositories.DraftUpdate{
		Status:       models.DraftStatusError,
		MergedKey:    mergedKey,
		ErrorMessage: &msg,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			logger.Warn("draft changed during processing", "error", err)
			return nil
		}
		processorRuns.WithLabelValues("failed").Inc()
		return fmt.Errorf("record processing failure: %w", err)
	}

	processorRuns.WithLabelValues(string(models.DraftStatusError)).Inc()
	return nil
}

// failureMessage is what an admin sees on the draft.
func failureMessage(err error) string {
	var mergeErr *merge.Error
	var exhausted *retry.MaxRetriesExceededError
	switch {
	case errors.Is(err, errNoUploads):
		return err.Error()
	case errors.Is(err, errRunPanicked):
		return "processing failed unexpectedly"
	case errors.As(err, &mergeErr):
		return mergeErr.Error()
	case errors.As(err, &exhausted):
		return fmt.Sprintf("extraction failed after %d attempts: %v", exhausted.Attempts, exhausted.LastErr)
	default:
		return err.Error()
	}
}
