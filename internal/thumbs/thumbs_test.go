package thumbs

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-civitai-scrape/internal/fetch"
	"go-civitai-scrape/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAcquirer(t *testing.T) (*Acquirer, string) {
	t.Helper()
	dir := t.TempDir()
	client := fetch.NewClient(&http.Client{Timeout: 5 * time.Second}, models.Config{
		Retries:      1,
		BackoffMinMs: 1,
		BackoffMaxMs: 2,
	})
	return NewAcquirer(client, dir), dir
}

func TestAcquireImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("fake-jpeg-bytes"))
	}))
	defer srv.Close()

	a, dir := newTestAcquirer(t)
	remote, local := a.Acquire(srv.URL+"/img/preview.jpeg?width=450", "A0001_T1")

	assert.Equal(t, srv.URL+"/img/preview.jpeg?width=450", remote)
	assert.Equal(t, filepath.Join(dir, "A0001_T1.jpeg"), local)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg-bytes", string(data))
}

func TestAcquireFailureReturnsEmptyLocalPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a, dir := newTestAcquirer(t)
	remote, local := a.Acquire(srv.URL+"/gone.png", "A0002_T1")

	assert.Equal(t, srv.URL+"/gone.png", remote)
	assert.Empty(t, local)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file should be written on failure")
}

func TestAcquireEmptyURL(t *testing.T) {
	a, _ := newTestAcquirer(t)
	remote, local := a.Acquire("", "A0003_T1")
	assert.Empty(t, remote)
	assert.Empty(t, local)
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		want        string
	}{
		{"image ext kept", "https://x.example/a.png", "image/png", ".png"},
		{"image ext from query ignored", "https://x.example/a.png?f=.webp", "image/png", ".png"},
		{"unknown ext corrected for image", "https://x.example/a.bin", "image/jpeg", ".jpg"},
		{"missing ext corrected for image", "https://x.example/a", "image/webp", ".jpg"},
		{"video ext kept", "https://x.example/a.webm", "video/webm", ".webm"},
		{"unknown ext corrected for video", "https://x.example/a.gifv", "video/mp4", ".mp4"},
		{"no hint at all", "https://x.example/a", "application/octet-stream", ".dat"},
		{"unknown type keeps url ext", "https://x.example/a.gif", "application/octet-stream", ".gif"},
		{"uppercase ext lowered", "https://x.example/a.JPG", "image/jpeg", ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extensionFor(tt.url, tt.contentType))
		})
	}
}
