package merge

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngPage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFiles_PageCountMatchesInputCount(t *testing.T) {
	files := []File{
		{Name: "001-page1.png", ContentType: "image/png", Data: pngPage(t, 60, 80, color.White)},
		{Name: "002-page2.png", ContentType: "image/png", Data: pngPage(t, 80, 60, color.Black)},
		{Name: "003-page3.png", ContentType: "", Data: pngPage(t, 40, 40, color.Gray{Y: 128})},
	}

	out, err := Files(files)
	require.NoError(t, err)

	pages, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestFiles_ConcatenatesPDFInputs(t *testing.T) {
	twoPage, err := Files([]File{
		{Name: "a.png", ContentType: "image/png", Data: pngPage(t, 20, 20, color.White)},
		{Name: "b.png", ContentType: "image/png", Data: pngPage(t, 20, 20, color.Black)},
	})
	require.NoError(t, err)

	out, err := Files([]File{
		{Name: "scan.pdf", ContentType: "application/pdf", Data: twoPage},
		{Name: "photo.png", ContentType: "image/png", Data: pngPage(t, 30, 30, color.White)},
	})
	require.NoError(t, err)

	pages, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestFiles_SingleImage(t *testing.T) {
	out, err := Files([]File{{Name: "only.png", ContentType: "image/png", Data: pngPage(t, 10, 10, color.White)}})
	require.NoError(t, err)

	pages, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestFiles_SinglePDFPassesThrough(t *testing.T) {
	scan, err := Files([]File{
		{Name: "a.png", ContentType: "image/png", Data: pngPage(t, 20, 20, color.White)},
		{Name: "b.png", ContentType: "image/png", Data: pngPage(t, 20, 20, color.Black)},
	})
	require.NoError(t, err)

	out, err := Files([]File{{Name: "scan.pdf", ContentType: "application/pdf", Data: scan}})
	require.NoError(t, err)
	assert.Equal(t, scan, out)

	pages, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestFiles_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files []File
	}{
		{"no files", nil},
		{"empty file", []File{{Name: "x.png", ContentType: "image/png"}}},
		{"unsupported type", []File{{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}}},
		{"corrupt pdf", []File{{Name: "bad.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 garbage")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Files(tt.files)
			var mergeErr *Error
			require.True(t, errors.As(err, &mergeErr), "expected *merge.Error, got %v", err)
		})
	}
}

func TestClassify(t *testing.T) {
	pngData := pngPage(t, 2, 2, color.White)

	assert.Equal(t, kindImage, classify(File{ContentType: "image/jpeg"}))
	assert.Equal(t, kindImage, classify(File{ContentType: "IMAGE/PNG; charset=binary"}))
	assert.Equal(t, kindPDF, classify(File{ContentType: "application/pdf"}))
	assert.Equal(t, kindImage, classify(File{ContentType: "application/octet-stream", Data: pngData}))
	assert.Equal(t, kindPDF, classify(File{Name: "scan.PDF", Data: []byte{0x00, 0x01}}))
	assert.Equal(t, kindUnsupported, classify(File{ContentType: "text/plain"}))
}
