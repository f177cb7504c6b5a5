package models

import (
	"fmt"
	"time"
)

// Object storage layout.
const (
	UploadsPrefix    = "uploads/"
	ProcessingPrefix = "processing/"
	LettersPrefix    = "letters/"
)

// UploadPrefix is where the client puts the files of one upload.
func UploadPrefix(uploadID string) string {
	return UploadsPrefix + uploadID + "/"
}

// MergedKey is where the processor stores the merged PDF of an upload.
func MergedKey(uploadID string) string {
	return ProcessingPrefix + uploadID + "/merged.pdf"
}

// LetterPDFKey is the permanent location of a letter's PDF.
func LetterPDFKey(letterID string) string {
	return LettersPrefix + letterID + ".pdf"
}

// UploadObjectKey keeps listing order equal to upload order.
func UploadObjectKey(uploadID string, index int, safeName string) string {
	return fmt.Sprintf("%s%03d-%s", UploadPrefix(uploadID), index, safeName)
}

// UploadFile is one presigned PUT target.
type UploadFile struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// UploadSession groups the files a user submits for one ingestion run.
// It is never persisted.
type UploadSession struct {
	UploadID  string       `json:"uploadId"`
	FileCount int          `json:"fileCount"`
	Files     []UploadFile `json:"files"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// StoredObject is a blob fetched from object storage.
type StoredObject struct {
	Key         string
	ContentType string
	Data        []byte
}
