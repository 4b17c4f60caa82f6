// Package thumbs downloads preview media for registry records. Failures are
// soft: a record without a local thumbnail is still a valid record.
package thumbs

import (
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go-civitai-scrape/internal/fetch"
	"go-civitai-scrape/internal/helpers"

	log "github.com/sirupsen/logrus"
)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".webm": true}
)

// Acquirer streams thumbnails into a local directory.
type Acquirer struct {
	client *fetch.Client
	dir    string
}

// NewAcquirer creates an acquirer writing into dir.
func NewAcquirer(client *fetch.Client, dir string) *Acquirer {
	return &Acquirer{client: client, dir: dir}
}

// Acquire downloads remoteURL as <idBase>.<ext> under the acquirer's
// directory and returns (remote URL, local path). Any failure returns the
// remote URL with an empty local path; the caller records what it got.
func (a *Acquirer) Acquire(remoteURL, idBase string) (string, string) {
	if remoteURL == "" {
		return "", ""
	}
	if !helpers.CheckAndMakeDir(a.dir) {
		return remoteURL, ""
	}

	resp, err := a.client.GetStream(remoteURL)
	if err != nil {
		log.WithError(err).Warnf("Thumbnail download failed: %s", remoteURL)
		return remoteURL, ""
	}
	defer resp.Body.Close()

	ext := extensionFor(remoteURL, resp.Header.Get("Content-Type"))
	localPath := filepath.Join(a.dir, idBase+ext)

	f, err := os.Create(localPath)
	if err != nil {
		log.WithError(err).Errorf("Failed to create thumbnail file %s", localPath)
		return remoteURL, ""
	}
	defer f.Close()

	counter := &helpers.CounterWriter{Writer: f}
	if _, err := io.Copy(counter, resp.Body); err != nil {
		log.WithError(err).Warnf("Thumbnail write failed: %s", localPath)
		// A partial file is worse than none.
		os.Remove(localPath)
		return remoteURL, ""
	}

	log.Infof("Saved thumbnail %s (%s)", filepath.Base(localPath), helpers.BytesToSize(uint64(counter.Total)))
	return remoteURL, localPath
}

// extensionFor picks the local file extension from the URL path, corrected by
// the response media type when the path extension does not fit it.
func extensionFor(remoteURL, contentType string) string {
	ext := ""
	if u, err := url.Parse(remoteURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	ct := strings.ToLower(contentType)

	switch {
	case strings.Contains(ct, "image"):
		if !imageExts[ext] {
			ext = ".jpg"
		}
	case strings.Contains(ct, "video"):
		if !videoExts[ext] {
			ext = ".mp4"
		}
	default:
		if ext == "" {
			ext = ".dat"
		}
	}
	return ext
}
