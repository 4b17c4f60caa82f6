// Package api resolves Civitai model page URLs into registry records using
// the public REST API, with an optional raw-page fallback when the API path
// cannot produce a record.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go-civitai-scrape/internal/fetch"
	"go-civitai-scrape/internal/helpers"
	"go-civitai-scrape/internal/models"
	"go-civitai-scrape/internal/page"

	log "github.com/sirupsen/logrus"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://civitai.com/api/v1"

// Custom Error Types
var (
	ErrNoModelID  = errors.New("no model ID found in URL")
	ErrNoVersions = errors.New("model has no versions")
)

var (
	modelIDPattern   = regexp.MustCompile(`/models/(\d+)`)
	versionIDPattern = regexp.MustCompile(`modelVersionId=(\d+)`)
)

// Resolver turns one (name, page URL) pair into a populated ModelRecord plus
// the version's gallery images for thumbnail selection.
type Resolver struct {
	client         *fetch.Client
	baseURL        string
	scrapeFallback bool
}

// NewResolver builds a resolver on top of the given fetch client.
func NewResolver(client *fetch.Client, cfg models.Config) *Resolver {
	return &Resolver{
		client:         client,
		baseURL:        DefaultBaseURL,
		scrapeFallback: cfg.ScrapeFallback,
	}
}

// SetBaseURL overrides the API root. Used against local test servers.
func (r *Resolver) SetBaseURL(u string) {
	r.baseURL = strings.TrimRight(u, "/")
}

// Resolve fetches the model version behind url and maps it onto a record.
// When the URL names no explicit version the model endpoint is consulted
// first and its latest version taken. A failed API resolution falls back to
// scraping the page itself if that is enabled.
func (r *Resolver) Resolve(name, url string) (models.ModelRecord, []models.ModelImage, error) {
	rec, images, err := r.resolveAPI(name, url)
	if err == nil {
		return rec, images, nil
	}
	if !r.scrapeFallback {
		return models.ModelRecord{}, nil, err
	}

	log.WithError(err).Warnf("API resolution failed for %s, scraping page instead", name)
	rec, scrapeErr := r.resolvePage(name, url)
	if scrapeErr != nil {
		// The API error is the more descriptive of the two.
		return models.ModelRecord{}, nil, fmt.Errorf("%w (page fallback also failed: %v)", err, scrapeErr)
	}
	return rec, nil, nil
}

func (r *Resolver) resolveAPI(name, url string) (models.ModelRecord, []models.ModelImage, error) {
	modelID := firstGroup(modelIDPattern, url)
	versionID := firstGroup(versionIDPattern, url)

	if modelID == "" {
		return models.ModelRecord{}, nil, fmt.Errorf("%w: %s", ErrNoModelID, url)
	}

	if versionID == "" {
		var m models.Model
		if err := r.client.GetJSON(fmt.Sprintf("%s/models/%s", r.baseURL, modelID), &m); err != nil {
			return models.ModelRecord{}, nil, fmt.Errorf("fetching model %s: %w", modelID, err)
		}
		if len(m.ModelVersions) == 0 {
			return models.ModelRecord{}, nil, fmt.Errorf("%w: model %s", ErrNoVersions, modelID)
		}
		versionID = fmt.Sprint(m.ModelVersions[0].ID)
	}

	var v models.ModelVersion
	if err := r.client.GetJSON(fmt.Sprintf("%s/model-versions/%s", r.baseURL, versionID), &v); err != nil {
		return models.ModelRecord{}, nil, fmt.Errorf("fetching version %s: %w", versionID, err)
	}

	rec := models.NewModelRecord(name)
	rec.Title = strings.Trim(fmt.Sprintf("%s - %s", v.Model.Name, v.Name), " -")
	rec.Type = strings.ToLower(strings.TrimSpace(v.Model.Type))
	rec.BaseModel = v.BaseModel
	rec.BaseModelType = v.BaseModelType
	rec.ModelLink = r.modelLink(v.ModelId, url)

	rec.Metadata.TrainedWords = strings.Join(v.TrainedWords, ", ")
	rec.Metadata.Description = v.Description
	rec.Metadata.DownloadLink = url
	rec.Metadata.PublishedOn = strings.SplitN(v.CreatedAt, "T", 2)[0]

	if len(v.Files) > 0 {
		f := v.Files[0]
		if f.SizeKB > 0 {
			rec.Size = helpers.FormatKB(f.SizeKB)
		}
		if f.Hashes != nil {
			rec.Metadata.Hashes = f.Hashes
		}
		if f.DownloadUrl != "" {
			rec.Metadata.DownloadLink = f.DownloadUrl
		}
	}

	return rec, v.Images, nil
}

// modelLink derives the canonical page link, preferring the numeric ID the
// API reports over whatever the input URL carried.
func (r *Resolver) modelLink(modelID int, url string) string {
	if modelID > 0 {
		return fmt.Sprintf("https://civitai.com/models/%d", modelID)
	}
	if id := firstGroup(modelIDPattern, url); id != "" {
		return fmt.Sprintf("https://civitai.com/models/%s", id)
	}
	return url
}

// resolvePage fetches the page markup and maps the extractor's fields onto a
// record. All fields are best effort; only the fetch itself can fail.
func (r *Resolver) resolvePage(name, url string) (models.ModelRecord, error) {
	body, err := r.client.Get(url)
	if err != nil {
		return models.ModelRecord{}, fmt.Errorf("fetching page %s: %w", url, err)
	}
	p, err := page.Parse(url, bytes.NewReader(body))
	if err != nil {
		return models.ModelRecord{}, err
	}
	f := p.Extract()

	rec := models.NewModelRecord(name)
	rec.Title = f.Title
	rec.Type = f.Type
	rec.BaseModel = f.BaseModel
	rec.Size = f.Size
	rec.Thumbnail = f.Thumbnail
	rec.ModelLink = r.modelLink(0, url)
	if f.Thumbnail != "" {
		rec.ThumbnailsAll = append(rec.ThumbnailsAll, f.Thumbnail)
	}
	// A video-lead page yields a poster plus the clip itself; both are media
	// worth keeping.
	if f.Video != "" {
		rec.ThumbnailsAll = append(rec.ThumbnailsAll, f.Video)
	}

	rec.Metadata.TrainedWords = f.TriggerWords
	rec.Metadata.Description = f.Description
	rec.Metadata.AboutVersion = f.AboutVersion
	rec.Metadata.DownloadLink = f.DownloadLink
	rec.Metadata.PublishedOn = f.PublishedOn
	return rec, nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
