package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/services"
)

type publishFixture struct {
	db    *memDB
	store *memStore
	tx    *memTx
	svc   services.PublishService
}

func newPublishFixture() *publishFixture {
	db := newMemDB()
	store := newMemStore()
	tx := &memTx{db: db}
	return &publishFixture{
		db:    db,
		store: store,
		tx:    tx,
		svc: NewPublishService(&memDraftRepo{db: db}, &memLetterRepo{db: db}, tx, store,
			NewContentAnalyzer(), testLogger()),
	}
}

// reviewDraft stores a finished draft with a merged PDF.
func (f *publishFixture) reviewDraft(id string) {
	key := models.MergedKey(id)
	f.db.drafts[id] = models.Draft{
		ID:          id,
		Status:      models.DraftStatusReview,
		MergedKey:   &key,
		Parsed:      parsedLetter(),
		RequestedBy: "user-1",
		CreatedAt:   time.Now(),
	}
	f.store.objects[key] = models.StoredObject{Key: key, ContentType: "application/pdf", Data: []byte("%PDF-1.7")}
}

func publishRequest(date, title string) *services.PublishRequest {
	return &services.PublishRequest{
		Date:    date,
		Title:   title,
		Content: "Dear Anna,\n\nThe harvest came in early.",
		Author:  ptr("  Rosa "),
		Summary: ptr(""),
		Tags:    []string{"harvest", "family"},
	}
}

func TestPublish_CreatesLetterAndRemovesDraft(t *testing.T) {
	f := newPublishFixture()
	f.reviewDraft("d1")

	letter, err := f.svc.Publish(context.Background(), "d1", "admin-1", publishRequest("1948-05-14", "Harvest letter"))
	require.NoError(t, err)

	assert.Equal(t, "1948-05-14", letter.ID)
	assert.Equal(t, "Harvest letter", letter.Title)
	assert.Equal(t, "Harvest letter", letter.OriginalTitle)
	assert.Equal(t, 0, letter.VersionCount)
	assert.Equal(t, "admin-1", letter.LastEditedBy)
	assert.Equal(t, "Rosa", *letter.Author)
	assert.Nil(t, letter.Summary)
	assert.Equal(t, 7, letter.WordCount)
	require.NotNil(t, letter.PDFKey)
	assert.Equal(t, "letters/1948-05-14.pdf", *letter.PDFKey)

	assert.NotContains(t, f.db.drafts, "d1")
	assert.Contains(t, f.db.letters, "1948-05-14")
	assert.Empty(t, f.db.versions["1948-05-14"])
	assert.Equal(t, []string{models.MergedKey("d1") + "->letters/1948-05-14.pdf"}, f.store.copies)
}

func TestPublish_DateCollisionIsSuffixed(t *testing.T) {
	f := newPublishFixture()
	f.db.letters["2020-01-01"] = models.Letter{ID: "2020-01-01", Date: "2020-01-01"}

	f.reviewDraft("d1")
	first, err := f.svc.Publish(context.Background(), "d1", "admin", publishRequest("2020-01-01", "New Year's Greetings"))
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01-new-year-s-greetings", first.ID)

	f.reviewDraft("d2")
	second, err := f.svc.Publish(context.Background(), "d2", "admin", publishRequest("2020-01-01", "New Year's Greetings"))
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01-2", second.ID)

	// The existing letter was not touched.
	assert.Equal(t, models.Letter{ID: "2020-01-01", Date: "2020-01-01"}, f.db.letters["2020-01-01"])
	assert.Len(t, f.db.letters, 3)
}

// staleIDs hides existing letters from the first ID lookup, as when another
// publish commits between derivation and insert.
type staleIDs struct {
	*memLetterRepo
	lookups int
}

func (r *staleIDs) ListIDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, nil
	}
	return r.memLetterRepo.ListIDsWithPrefix(ctx, prefix)
}

func TestPublish_LostIDRaceKeepsExistingPDF(t *testing.T) {
	f := newPublishFixture()
	letters := &staleIDs{memLetterRepo: &memLetterRepo{db: f.db}}
	f.svc = NewPublishService(&memDraftRepo{db: f.db}, letters, f.tx, f.store, NewContentAnalyzer(), testLogger())

	existingKey := models.LetterPDFKey("2020-01-01")
	f.db.letters["2020-01-01"] = models.Letter{ID: "2020-01-01", Date: "2020-01-01", PDFKey: &existingKey}
	f.store.objects[existingKey] = models.StoredObject{Key: existingKey, Data: []byte("%PDF ORIGINAL")}

	f.reviewDraft("d1")
	f.store.objects[models.MergedKey("d1")] = models.StoredObject{Key: models.MergedKey("d1"), Data: []byte("%PDF NEW DRAFT")}

	letter, err := f.svc.Publish(context.Background(), "d1", "admin", publishRequest("2020-01-01", "Second"))
	require.NoError(t, err)

	assert.Equal(t, "2020-01-01-second", letter.ID)
	assert.Equal(t, 2, letters.lookups)
	assert.Equal(t, []byte("%PDF ORIGINAL"), f.store.objects[existingKey].Data)
	assert.Equal(t, []byte("%PDF NEW DRAFT"), f.store.objects["letters/2020-01-01-second.pdf"].Data)
}

func TestPublish_IsAtomic(t *testing.T) {
	f := newPublishFixture()
	f.reviewDraft("d1")
	f.db.deleteDraftErr = errors.New("connection lost")

	_, err := f.svc.Publish(context.Background(), "d1", "admin", publishRequest("1950-02-02", "Winter"))
	require.Error(t, err)

	assert.Contains(t, f.db.drafts, "d1", "draft must survive a failed publish")
	assert.Empty(t, f.db.letters, "no half-published letter")
}

func TestPublish_WithoutMergedPDF(t *testing.T) {
	f := newPublishFixture()
	msg := "extraction failed"
	f.db.drafts["d1"] = models.Draft{ID: "d1", Status: models.DraftStatusError, ErrorMessage: &msg}

	letter, err := f.svc.Publish(context.Background(), "d1", "admin", publishRequest("1950-02-02", "Winter"))
	require.NoError(t, err)
	assert.Nil(t, letter.PDFKey)
	assert.Empty(t, f.store.copies)
}

func TestPublish_MergedPDFGone(t *testing.T) {
	f := newPublishFixture()
	f.reviewDraft("d1")
	delete(f.store.objects, models.MergedKey("d1"))

	letter, err := f.svc.Publish(context.Background(), "d1", "admin", publishRequest("1950-02-02", "Winter"))
	require.NoError(t, err)
	assert.Nil(t, letter.PDFKey)
	assert.Empty(t, f.store.copies)
	assert.NotContains(t, f.db.drafts, "d1")
}

func TestPublish_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *publishFixture)
		req     *services.PublishRequest
		wantErr error
	}{
		{
			name:    "missing draft",
			req:     publishRequest("1950-02-02", "Winter"),
			wantErr: domain.ErrNotFound,
		},
		{
			name: "still processing",
			setup: func(f *publishFixture) {
				f.db.drafts["d1"] = models.Draft{ID: "d1", Status: models.DraftStatusProcessing}
			},
			req:     publishRequest("1950-02-02", "Winter"),
			wantErr: domain.ErrConflict,
		},
		{
			name:    "placeholder date",
			setup:   func(f *publishFixture) { f.reviewDraft("d1") },
			req:     publishRequest("0000-01-01", "Winter"),
			wantErr: domain.ErrValidation,
		},
		{
			name:    "malformed date",
			setup:   func(f *publishFixture) { f.reviewDraft("d1") },
			req:     publishRequest("1950-13-40", "Winter"),
			wantErr: domain.ErrValidation,
		},
		{
			name:    "blank title",
			setup:   func(f *publishFixture) { f.reviewDraft("d1") },
			req:     publishRequest("1950-02-02", "   "),
			wantErr: domain.ErrValidation,
		},
		{
			name:  "empty content",
			setup: func(f *publishFixture) { f.reviewDraft("d1") },
			req: &services.PublishRequest{
				Date: "1950-02-02", Title: "Winter", Content: "",
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPublishFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.svc.Publish(context.Background(), "d1", "admin", tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.db.letters)
			assert.Empty(t, f.store.copies)
		})
	}
}
