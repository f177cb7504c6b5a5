// Package merge combines scanned page images and PDFs into one PDF.
package merge

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise writes a config dir under the user's home on first use.
	api.DisableConfigDir()
}

// File is one uploaded object, in upload order.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Error is returned when the inputs cannot be combined.
type Error struct {
	File   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.File == "" {
		return "merge: " + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("merge %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("merge %s: %s", e.File, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

type kind int

const (
	kindUnsupported kind = iota
	kindImage
	kindPDF
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/tiff": true,
	"image/webp": true,
}

// Files merges the inputs into a single PDF. Each image becomes one full page;
// each PDF contributes all its pages. Output page order follows input order.
func Files(files []File) ([]byte, error) {
	if len(files) == 0 {
		return nil, &Error{Reason: "no input files"}
	}

	parts := make([][]byte, 0, len(files))
	for _, f := range files {
		part, err := toPDF(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	var out []byte
	if len(parts) == 1 {
		out = parts[0]
	} else {
		readers := make([]io.ReadSeeker, len(parts))
		for i, part := range parts {
			readers[i] = bytes.NewReader(part)
		}
		var buf bytes.Buffer
		if err := api.MergeRaw(readers, &buf, false, model.NewDefaultConfiguration()); err != nil {
			return nil, &Error{Reason: "combine documents", Err: err}
		}
		out = buf.Bytes()
	}

	pages, err := PageCount(out)
	if err != nil {
		return nil, &Error{Reason: "read merged document", Err: err}
	}
	if pages == 0 {
		return nil, &Error{Reason: "merged document is empty"}
	}
	return out, nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(pdf []byte) (int, error) {
	return api.PageCount(bytes.NewReader(pdf), model.NewDefaultConfiguration())
}

func toPDF(f File) ([]byte, error) {
	if len(f.Data) == 0 {
		return nil, &Error{File: f.Name, Reason: "file is empty"}
	}

	switch classify(f) {
	case kindImage:
		var buf bytes.Buffer
		imp := pdfcpu.DefaultImportConfig()
		err := api.ImportImages(nil, &buf, []io.Reader{bytes.NewReader(f.Data)}, imp, model.NewDefaultConfiguration())
		if err != nil {
			return nil, &Error{File: f.Name, Reason: "embed image", Err: err}
		}
		return buf.Bytes(), nil
	case kindPDF:
		if err := api.Validate(bytes.NewReader(f.Data), model.NewDefaultConfiguration()); err != nil {
			return nil, &Error{File: f.Name, Reason: "invalid PDF", Err: err}
		}
		return f.Data, nil
	default:
		return nil, &Error{File: f.Name, Reason: fmt.Sprintf("unsupported content type %q", f.ContentType)}
	}
}

// classify trusts the declared type when it is specific, then falls back to
// sniffing and the file extension.
func classify(f File) kind {
	ct := normalizeType(f.ContentType)
	if ct == "" || ct == "application/octet-stream" || ct == "binary/octet-stream" {
		ct = normalizeType(http.DetectContentType(f.Data))
	}
	if ct == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".tif", ".tiff":
			ct = "image/tiff"
		case ".pdf":
			ct = "application/pdf"
		}
	}

	switch {
	case ct == "application/pdf":
		return kindPDF
	case imageTypes[ct]:
		return kindImage
	default:
		return kindUnsupported
	}
}

func normalizeType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
