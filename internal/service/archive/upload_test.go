package archive

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letterarchive/internal/config"
	"letterarchive/internal/domain"
	"letterarchive/internal/domain/services"
)

func TestCreateSession(t *testing.T) {
	svc := NewUploadService(newMemStore(), 15*time.Minute, testLogger())

	session, err := svc.CreateSession(context.Background(), &services.CreateUploadRequest{
		Files: []services.UploadFileRequest{
			{Name: "Page One.JPG", ContentType: "image/jpeg"},
			{Name: "scans/page two.png", ContentType: "IMAGE/PNG"},
			{Name: "rest.pdf", ContentType: "application/pdf"},
		},
	})
	require.NoError(t, err)

	_, err = uuid.Parse(session.UploadID)
	require.NoError(t, err)
	assert.Equal(t, 3, session.FileCount)
	require.Len(t, session.Files, 3)

	prefix := "uploads/" + session.UploadID + "/"
	assert.Equal(t, prefix+"001-Page_One.JPG", session.Files[0].Key)
	assert.Equal(t, prefix+"002-page_two.png", session.Files[1].Key)
	assert.Equal(t, prefix+"003-rest.pdf", session.Files[2].Key)
	assert.Equal(t, "image/png", session.Files[1].ContentType)

	for _, f := range session.Files {
		assert.Contains(t, f.URL, f.Key)
		assert.Contains(t, f.URL, "ttl=900")
		assert.Equal(t, session.ExpiresAt, f.ExpiresAt)
	}
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), session.ExpiresAt, 5*time.Second)
}

func TestCreateSession_Validation(t *testing.T) {
	tooMany := make([]services.UploadFileRequest, config.MaxUploadFiles+1)
	for i := range tooMany {
		tooMany[i] = services.UploadFileRequest{Name: fmt.Sprintf("p%d.png", i), ContentType: "image/png"}
	}

	tests := []struct {
		name  string
		files []services.UploadFileRequest
	}{
		{"no files", nil},
		{"too many files", tooMany},
		{"missing name", []services.UploadFileRequest{{ContentType: "image/png"}}},
		{"long name", []services.UploadFileRequest{{Name: strings.Repeat("a", config.MaxUploadFileNameLength+1), ContentType: "image/png"}}},
		{"unsupported type", []services.UploadFileRequest{{Name: "a.docx", ContentType: "application/msword"}}},
		{"missing type", []services.UploadFileRequest{{Name: "a.png"}}},
	}

	svc := NewUploadService(newMemStore(), time.Minute, testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(context.Background(), &services.CreateUploadRequest{Files: tt.files})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestSafeFileName(t *testing.T) {
	tests := map[string]string{
		"letter.pdf":           "letter.pdf",
		"My Letter (1).png":    "My_Letter__1_.png",
		"../../etc/passwd":     "passwd",
		`C:\scans\page 3.tiff`: "page_3.tiff",
		"été.jpg":              "t_.jpg",
		"...":                  "file",
		"":                     "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeFileName(in), in)
	}
}

func TestValidateUploadID(t *testing.T) {
	assert.NoError(t, ValidateUploadID(uuid.NewString()))
	for _, id := range []string{"", "x", "{" + uuid.NewString() + "}", "urn:uuid:" + uuid.NewString(), "../" + uuid.NewString()} {
		assert.ErrorIs(t, ValidateUploadID(id), domain.ErrValidation, id)
	}
}
