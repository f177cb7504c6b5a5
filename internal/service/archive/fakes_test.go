package archive

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"letterarchive/internal/domain"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memDB backs the in-memory repositories. memTx restores it wholesale when
// a transaction function fails.
type memDB struct {
	mu       sync.Mutex
	drafts   map[string]models.Draft
	letters  map[string]models.Letter
	versions map[string][]models.LetterVersion

	// deleteDraftErr makes the next Delete fail
	deleteDraftErr error
}

func newMemDB() *memDB {
	return &memDB{
		drafts:   map[string]models.Draft{},
		letters:  map[string]models.Letter{},
		versions: map[string][]models.LetterVersion{},
	}
}

type memState struct {
	drafts   map[string]models.Draft
	letters  map[string]models.Letter
	versions map[string][]models.LetterVersion
}

func (db *memDB) snapshot() memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	versions := make(map[string][]models.LetterVersion, len(db.versions))
	for k, v := range db.versions {
		versions[k] = slices.Clone(v)
	}
	return memState{
		drafts:   maps.Clone(db.drafts),
		letters:  maps.Clone(db.letters),
		versions: versions,
	}
}

func (db *memDB) restore(s memState) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.drafts, db.letters, db.versions = s.drafts, s.letters, s.versions
}

type memTx struct {
	db    *memDB
	calls int
}

func (m *memTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	m.calls++
	state := m.db.snapshot()
	if err := fn(ctx); err != nil {
		m.db.restore(state)
		return err
	}
	return nil
}

type memDraftRepo struct{ db *memDB }

func (r *memDraftRepo) Upsert(_ context.Context, d *models.Draft) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	created := d.CreatedAt
	if old, ok := r.db.drafts[d.ID]; ok {
		created = old.CreatedAt
	}
	r.db.drafts[d.ID] = models.Draft{
		ID:          d.ID,
		Status:      d.Status,
		RequestedBy: d.RequestedBy,
		CreatedAt:   created,
		UpdatedAt:   d.CreatedAt,
	}
	d.CreatedAt = created
	return nil
}

func (r *memDraftRepo) GetByID(_ context.Context, id string) (*models.Draft, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	return &d, nil
}

func (r *memDraftRepo) List(_ context.Context) ([]models.Draft, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := slices.Collect(maps.Values(r.db.drafts))
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memDraftRepo) Transition(_ context.Context, id string, from models.DraftStatus, u *repositories.DraftUpdate) error {
	if err := models.ValidateDraftTransition(from, u.Status); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.drafts[id]
	if !ok {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	if d.Status != from {
		return &domain.ConflictError{Message: "status changed", ResourceType: "draft", ResourceID: id}
	}
	d.Status = u.Status
	if u.MergedKey != nil {
		d.MergedKey = u.MergedKey
	}
	d.Parsed = u.Parsed
	d.ErrorMessage = u.ErrorMessage
	r.db.drafts[id] = d
	return nil
}

func (r *memDraftRepo) Delete(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.deleteDraftErr; err != nil {
		r.db.deleteDraftErr = nil
		return false, err
	}
	_, ok := r.db.drafts[id]
	delete(r.db.drafts, id)
	return ok, nil
}

type memLetterRepo struct{ db *memDB }

func (r *memLetterRepo) Create(_ context.Context, l *models.Letter) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.letters[l.ID]; ok {
		return &domain.ConflictError{Message: "exists", ResourceType: "letter", ResourceID: l.ID}
	}
	r.db.letters[l.ID] = *l
	return nil
}

func (r *memLetterRepo) GetByID(_ context.Context, id string) (*models.Letter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.letters[id]
	if !ok {
		return nil, fmt.Errorf("letter %s: %w", id, domain.ErrNotFound)
	}
	return &l, nil
}

func (r *memLetterRepo) GetForUpdate(ctx context.Context, id string) (*models.Letter, error) {
	return r.GetByID(ctx, id)
}

func (r *memLetterRepo) Exists(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.letters[id]
	return ok, nil
}

func (r *memLetterRepo) ListIDsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []string
	for id := range r.db.letters {
		if id == prefix || strings.HasPrefix(id, prefix+"-") {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memLetterRepo) List(_ context.Context, after *repositories.LetterCursor, limit int) ([]models.LetterSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := slices.Collect(maps.Values(r.db.letters))
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date > all[j].Date
		}
		return all[i].ID > all[j].ID
	})

	out := []models.LetterSummary{}
	for _, l := range all {
		if after != nil && !(l.Date < after.Date || (l.Date == after.Date && l.ID < after.ID)) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, models.LetterSummary{
			ID: l.ID, Date: l.Date, Title: l.Title, Tags: l.Tags,
			HasPDF: l.PDFKey != nil, VersionCount: l.VersionCount, UpdatedAt: l.UpdatedAt,
		})
	}
	return out, nil
}

func (r *memLetterRepo) UpdateContent(_ context.Context, l *models.Letter) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.letters[l.ID]
	if !ok {
		return fmt.Errorf("letter %s: %w", l.ID, domain.ErrNotFound)
	}
	cur.Title, cur.Content, cur.WordCount = l.Title, l.Content, l.WordCount
	cur.VersionCount, cur.LastEditedBy, cur.UpdatedAt = l.VersionCount, l.LastEditedBy, l.UpdatedAt
	r.db.letters[l.ID] = cur
	return nil
}

func (r *memLetterRepo) CreateVersion(_ context.Context, v *models.LetterVersion) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.letters[v.LetterID]; !ok {
		return fmt.Errorf("letter %s: %w", v.LetterID, domain.ErrNotFound)
	}
	for _, existing := range r.db.versions[v.LetterID] {
		if existing.SnapshotAt.Equal(v.SnapshotAt) || existing.VersionNumber == v.VersionNumber {
			return &domain.ConflictError{Message: "duplicate", ResourceType: "letter_version", ResourceID: v.LetterID}
		}
	}
	r.db.versions[v.LetterID] = append(r.db.versions[v.LetterID], *v)
	return nil
}

func (r *memLetterRepo) GetVersion(_ context.Context, letterID string, at time.Time) (*models.LetterVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, v := range r.db.versions[letterID] {
		if v.SnapshotAt.Equal(at) {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("version of %s: %w", letterID, domain.ErrNotFound)
}

func (r *memLetterRepo) ListVersions(_ context.Context, letterID string) ([]models.LetterVersion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := slices.Clone(r.db.versions[letterID])
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotAt.After(out[j].SnapshotAt) })
	if out == nil {
		out = []models.LetterVersion{}
	}
	return out, nil
}

func (r *memLetterRepo) CountVersions(_ context.Context, letterID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.versions[letterID]), nil
}

// memStore is an in-memory object store.
type memStore struct {
	mu      sync.Mutex
	objects map[string]models.StoredObject
	putErr  error
	copies  []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]models.StoredObject{}}
}

func (s *memStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.test/%s?method=PUT&type=%s&ttl=%d", key, contentType, int(ttl.Seconds())), nil
}

func (s *memStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (s *memStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) Get(_ context.Context, key string) (*models.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return &obj, nil
}

func (s *memStore) Put(_ context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = models.StoredObject{Key: key, ContentType: contentType, Data: slices.Clone(data)}
	return nil
}

func (s *memStore) Copy(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[src]
	if !ok {
		return fmt.Errorf("object %s: %w", src, domain.ErrNotFound)
	}
	obj.Key = dst
	s.objects[dst] = obj
	s.copies = append(s.copies, src+"->"+dst)
	return nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

type extractorFunc func(ctx context.Context, pdf []byte) (*models.ParsedLetter, error)

func (f extractorFunc) ParseLetter(ctx context.Context, pdf []byte) (*models.ParsedLetter, error) {
	return f(ctx, pdf)
}

// stepClock advances a fixed amount on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func pngPage(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 60))
	for x := 0; x < 40; x++ {
		for y := 0; y < 60; y++ {
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }
