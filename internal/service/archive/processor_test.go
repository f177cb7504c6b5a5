package archive

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/services"
	"letterarchive/internal/service/merge"
	"letterarchive/internal/service/retry"
)

type processorFixture struct {
	db        *memDB
	store     *memStore
	processor services.LetterProcessor
}

func newProcessorFixture(t *testing.T, extractor services.LetterExtractor) *processorFixture {
	t.Helper()
	db := newMemDB()
	store := newMemStore()
	return &processorFixture{
		db:        db,
		store:     store,
		processor: NewLetterProcessor(&memDraftRepo{db: db}, store, extractor, testLogger()),
	}
}

func (f *processorFixture) upload(t *testing.T, uploadID string, files ...models.StoredObject) {
	t.Helper()
	for i, obj := range files {
		key := models.UploadObjectKey(uploadID, i+1, obj.Key)
		require.NoError(t, f.store.Put(context.Background(), key, obj.ContentType, obj.Data))
	}
}

func (f *processorFixture) draft(t *testing.T, id string) models.Draft {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d, ok := f.db.drafts[id]
	require.True(t, ok, "draft %s missing", id)
	return d
}

func parsedLetter() *models.ParsedLetter {
	return &models.ParsedLetter{
		Date:          "1948-05-14",
		Author:        ptr("Rosa"),
		Transcription: "Dear Anna, the harvest came in early this year.",
		Tags:          []string{"harvest"},
	}
}

func TestProcess_Success(t *testing.T) {
	var gotPages int
	f := newProcessorFixture(t, extractorFunc(func(_ context.Context, pdf []byte) (*models.ParsedLetter, error) {
		n, err := merge.PageCount(pdf)
		if err != nil {
			return nil, err
		}
		gotPages = n
		return parsedLetter(), nil
	}))

	id := uuid.NewString()
	f.upload(t, id,
		models.StoredObject{Key: "page1.png", ContentType: "image/png", Data: pngPage(t, 250)},
		models.StoredObject{Key: "page2.png", ContentType: "image/png", Data: pngPage(t, 20)},
	)

	err := f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "user-1"})
	require.NoError(t, err)

	d := f.draft(t, id)
	assert.Equal(t, models.DraftStatusReview, d.Status)
	assert.Equal(t, "user-1", d.RequestedBy)
	require.NotNil(t, d.Parsed)
	assert.Equal(t, "1948-05-14", d.Parsed.Date)
	require.NotNil(t, d.MergedKey)
	assert.Equal(t, models.MergedKey(id), *d.MergedKey)
	assert.Nil(t, d.ErrorMessage)
	assert.Equal(t, 2, gotPages)

	exists, err := f.store.Exists(context.Background(), models.MergedKey(id))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProcess_NoUploadsEndsInError(t *testing.T) {
	called := false
	f := newProcessorFixture(t, extractorFunc(func(context.Context, []byte) (*models.ParsedLetter, error) {
		called = true
		return parsedLetter(), nil
	}))

	id := uuid.NewString()
	require.NoError(t, f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "u"}))

	d := f.draft(t, id)
	assert.Equal(t, models.DraftStatusError, d.Status)
	require.NotNil(t, d.ErrorMessage)
	assert.Equal(t, "no uploaded files found", *d.ErrorMessage)
	assert.Nil(t, d.MergedKey)
	assert.False(t, called)
}

func TestProcess_UnsupportedFileEndsInError(t *testing.T) {
	f := newProcessorFixture(t, extractorFunc(func(context.Context, []byte) (*models.ParsedLetter, error) {
		t.Fatal("extractor must not run when merge fails")
		return nil, nil
	}))

	id := uuid.NewString()
	f.upload(t, id, models.StoredObject{Key: "notes.txt", ContentType: "text/plain", Data: []byte("hello")})

	require.NoError(t, f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "u"}))

	d := f.draft(t, id)
	assert.Equal(t, models.DraftStatusError, d.Status)
	require.NotNil(t, d.ErrorMessage)
	assert.Contains(t, *d.ErrorMessage, "notes.txt")
}

func TestProcess_TransientExtractionFailureExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	extractor := extractorFunc(func(ctx context.Context, _ []byte) (*models.ParsedLetter, error) {
		return retry.Do(ctx, func(context.Context) (*models.ParsedLetter, error) {
			calls.Add(1)
			return nil, &retry.StatusError{Status: 503, Err: errors.New("overloaded")}
		}, retry.Options{
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			BackoffMultiplier: 1,
			MaxDelay:          time.Millisecond,
		})
	})
	f := newProcessorFixture(t, extractor)

	id := uuid.NewString()
	f.upload(t, id, models.StoredObject{Key: "p.png", ContentType: "image/png", Data: pngPage(t, 128)})

	require.NoError(t, f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "u"}))

	assert.Equal(t, int32(3), calls.Load())
	d := f.draft(t, id)
	assert.Equal(t, models.DraftStatusError, d.Status)
	require.NotNil(t, d.ErrorMessage)
	assert.Contains(t, *d.ErrorMessage, "after 3 attempts")
	require.NotNil(t, d.MergedKey, "merged pdf stays reviewable")
	assert.Nil(t, d.Parsed)
	assert.Empty(t, f.db.letters)
}

func TestProcess_StoreFailureEndsInError(t *testing.T) {
	f := newProcessorFixture(t, extractorFunc(func(context.Context, []byte) (*models.ParsedLetter, error) {
		return parsedLetter(), nil
	}))

	id := uuid.NewString()
	f.upload(t, id, models.StoredObject{Key: "p.png", ContentType: "image/png", Data: pngPage(t, 128)})
	f.store.putErr = errors.New("bucket unavailable")

	require.NoError(t, f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "u"}))
	d := f.draft(t, id)
	assert.Equal(t, models.DraftStatusError, d.Status)
	assert.Contains(t, *d.ErrorMessage, "bucket unavailable")
}

func TestProcess_InvalidUploadIDTouchesNothing(t *testing.T) {
	f := newProcessorFixture(t, extractorFunc(func(context.Context, []byte) (*models.ParsedLetter, error) {
		return parsedLetter(), nil
	}))

	for _, id := range []string{"", "../etc", "abc", "uploads/x"} {
		err := f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id})
		assert.ErrorIs(t, err, domain.ErrValidation, id)
	}
	assert.Empty(t, f.db.drafts)
}

func TestProcess_ReRunResetsDraft(t *testing.T) {
	fail := true
	f := newProcessorFixture(t, extractorFunc(func(context.Context, []byte) (*models.ParsedLetter, error) {
		if fail {
			return nil, errors.New("model refused")
		}
		return parsedLetter(), nil
	}))

	id := uuid.NewString()
	f.upload(t, id, models.StoredObject{Key: "p.png", ContentType: "image/png", Data: pngPage(t, 90)})

	require.NoError(t, f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "u"}))
	assert.Equal(t, models.DraftStatusError, f.draft(t, id).Status)

	fail = false
	require.NoError(t, f.processor.Process(context.Background(), services.ProcessRequest{UploadID: id, RequesterID: "u"}))
	d := f.draft(t, id)
	assert.Equal(t, models.DraftStatusReview, d.Status)
	assert.Nil(t, d.ErrorMessage)
}

func TestProcess_SurvivesCanceledRequestContext(t *testing.T) {
	f := newProcessorFixture(t, extractorFunc(func(ctx context.Context, _ []byte) (*models.ParsedLetter, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return parsedLetter(), nil
	}))

	id := uuid.NewString()
	f.upload(t, id, models.StoredObject{Key: "p.png", ContentType: "image/png", Data: pngPage(t, 60)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.processor.Process(ctx, services.ProcessRequest{UploadID: id, RequesterID: "u"}))
	assert.Equal(t, models.DraftStatusReview, f.draft(t, id).Status)
}

func TestProcess_PanicEndsInError(t *testing.T) {
	f := newProcessorFixture(t, extractorFunc(func(context.Context, []byte) (*models.ParsedLetter, error) {
		panic("malformed xref table")
	}))

	id := uuid.NewString()
	f.upload(t, id, models.StoredObject{Key: "p.png", ContentType: "image/png", Data: pngPage(t, 70)})

	d := NewDispatcher(f.processor, 1, testLogger())
	require.NoError(t, d.Submit(services.ProcessRequest{UploadID: id, RequesterID: "u"}))
	require.NoError(t, d.Shutdown(context.Background()))

	draft := f.draft(t, id)
	assert.Equal(t, models.DraftStatusError, draft.Status)
	require.NotNil(t, draft.ErrorMessage)
	assert.Equal(t, "processing failed unexpectedly", *draft.ErrorMessage)
	require.NotNil(t, draft.MergedKey, "merged PDF stays available for manual review")
	assert.Equal(t, models.MergedKey(id), *draft.MergedKey)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no uploads", errNoUploads, "no uploaded files found"},
		{"panic", fmt.Errorf("%w: index out of range", errRunPanicked), "processing failed unexpectedly"},
		{"merge", &merge.Error{File: "a.txt", Reason: "unsupported file type"}, "merge a.txt: unsupported file type"},
		{"exhausted", &retry.MaxRetriesExceededError{Attempts: 4, LastErr: errors.New("503")}, "extraction failed after 4 attempts: 503"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureMessage(tt.err))
		})
	}
}
