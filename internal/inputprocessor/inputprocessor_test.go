package inputprocessor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturereader/internal/models"
)

var pngImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

func TestProcess_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngImage, 0o600))

	res, err := New().Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, pngImage, res.Image)
	assert.Equal(t, "image/png", res.ContentType)
	require.NotNil(t, res.FilePath)
	assert.Equal(t, path, *res.FilePath)
	assert.Equal(t, path, res.Source)
	assert.NotNil(t, res.Mtime)
	assert.Nil(t, res.URL)
}

func TestProcess_RejectsNonImages(t *testing.T) {
	dir := t.TempDir()
	textFile := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("hello"), 0o600))
	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	p := New()
	_, err := p.Process(context.Background(), textFile)
	assert.ErrorIs(t, err, models.ErrUnsupportedImage)

	_, err = p.Process(context.Background(), empty)
	assert.ErrorIs(t, err, models.ErrUnsupportedImage)

	_, err = p.Process(context.Background(), dir)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = p.Process(context.Background(), "a cat on a windowsill")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = p.Process(context.Background(), "  ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestProcess_SizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(path, append(pngImage, make([]byte, 64)...), 0o600))

	_, err := New(WithMaxBytes(32)).Process(context.Background(), path)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestProcess_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(pngImage)
	}))
	defer srv.Close()

	p := New(WithHTTPClient(srv.Client()))
	res, err := p.Process(context.Background(), srv.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, pngImage, res.Image)
	require.NotNil(t, res.URL)
	assert.Equal(t, srv.URL+"/cat.png", *res.URL)
	assert.Nil(t, res.FilePath)

	_, err = p.Process(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "status code 404")
}

func TestProcess_Stdin(t *testing.T) {
	res, err := New(WithStdin(bytes.NewReader(pngImage))).Process(context.Background(), "-")
	require.NoError(t, err)
	assert.Equal(t, "stdin", res.Source)
	assert.Equal(t, pngImage, res.Image)
}
