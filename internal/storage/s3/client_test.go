package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopySource(t *testing.T) {
	assert.Equal(t, "archive/processing/abc/merged.pdf", copySource("archive", "processing/abc/merged.pdf"))
	assert.Equal(t, "archive/uploads/abc/001-my%20scan.png", copySource("archive", "uploads/abc/001-my scan.png"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestPresign_UsesBucketAndExpiry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(context.Background(), Options{
		Bucket:       "family-letters",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
		UsePathStyle: true,
	}, logger)
	require.NoError(t, err)

	putURL, err := client.PresignPut(context.Background(), "uploads/u1/000-page.png", "image/png", 15*time.Minute)
	require.NoError(t, err)

	parsed, err := url.Parse(putURL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", parsed.Host)
	assert.True(t, strings.HasPrefix(parsed.Path, "/family-letters/uploads/u1/"))
	assert.Equal(t, "900", parsed.Query().Get("X-Amz-Expires"))

	getURL, err := client.PresignGet(context.Background(), "letters/2020-01-01.pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, getURL, "letters/2020-01-01.pdf")
	assert.Contains(t, getURL, "X-Amz-Expires=300")
}

func TestNewClient_RequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Region: "us-east-1"}, slog.Default())
	assert.Error(t, err)
}
