package models

type (
	Config struct {
		// Connection/Auth
		ApiKey string `toml:"ApiKey"`

		// Paths
		LinkFile       string `toml:"LinkFile"`
		OutputPath     string `toml:"OutputPath"`
		ThumbnailPath  string `toml:"ThumbnailPath"`
		DatabasePath   string `toml:"DatabasePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// Fetch behavior
		ApiClientTimeoutSec  int `toml:"ApiClientTimeoutSec"`
		ThumbTimeoutSec      int `toml:"ThumbTimeoutSec"`
		Retries              int `toml:"Retries"`
		BackoffMinMs         int `toml:"BackoffMinMs"`
		BackoffMaxMs         int `toml:"BackoffMaxMs"`
		RateLimitCooldownSec int `toml:"RateLimitCooldownSec"`

		// Pipeline behavior
		DelayMinMs     int  `toml:"DelayMinMs"` // politeness pause between entries
		DelayMaxMs     int  `toml:"DelayMaxMs"`
		MaxThumbnails  int  `toml:"MaxThumbnails"`
		RandomIds      bool `toml:"RandomIds"`
		ScrapeFallback bool `toml:"ScrapeFallback"` // page scrape when the API fails; on unless disabled

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// LinkEntry is one (name, url) pair produced by the link loader.
	// Slice order defines processing order and identifier assignment order.
	LinkEntry struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}

	// --- Civitai API structures (/models/{id} and /model-versions/{id}) ---

	Model struct {
		ID            int            `json:"id"`
		Name          string         `json:"name"`
		Description   string         `json:"description"`
		Type          string         `json:"type"`
		Nsfw          bool           `json:"nsfw"`
		Tags          []string       `json:"tags"`
		Creator       Creator        `json:"creator"`
		ModelVersions []ModelVersion `json:"modelVersions"`
	}

	Creator struct {
		Username string `json:"username"`
		Image    string `json:"image"`
	}

	// VersionModelInfo is the nested 'model' field in the
	// /model-versions/{id} response.
	VersionModelInfo struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Nsfw bool   `json:"nsfw"`
		Poi  bool   `json:"poi"`
		Mode string `json:"mode"` // null, "Archived" or "TakenDown"
	}

	ModelVersion struct {
		ID            int              `json:"id"`
		ModelId       int              `json:"modelId"`
		Name          string           `json:"name"`
		CreatedAt     string           `json:"createdAt"`
		PublishedAt   string           `json:"publishedAt"`
		TrainedWords  []string         `json:"trainedWords"`
		BaseModel     string           `json:"baseModel"`
		BaseModelType string           `json:"baseModelType"`
		Description   string           `json:"description"`
		Files         []File           `json:"files"`
		Images        []ModelImage     `json:"images"`
		DownloadUrl   string           `json:"downloadUrl"`
		Model         VersionModelInfo `json:"model"`
	}

	File struct {
		Name        string            `json:"name"`
		ID          int               `json:"id"`
		SizeKB      float64           `json:"sizeKB"`
		Type        string            `json:"type"`
		Primary     bool              `json:"primary"`
		Hashes      map[string]string `json:"hashes"`
		DownloadUrl string            `json:"downloadUrl"`
	}

	ModelImage struct {
		ID     int    `json:"id"`
		URL    string `json:"url"`
		Hash   string `json:"hash"` // Blurhash
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Type   string `json:"type"` // "image" or "video"
	}

	// --- Registry structures ---

	// ModelRecord is the persisted unit, keyed by an allocated identifier.
	// Every field serializes as an empty string/collection rather than being
	// absent; consumers treat "missing" and "empty" as the same state.
	ModelRecord struct {
		Filename        string         `json:"filename"`
		Title           string         `json:"title"`
		Type            string         `json:"type"`
		BaseModel       string         `json:"base_model"`
		BaseModelType   string         `json:"base_model_type"`
		Size            string         `json:"size"`
		Thumbnail       string         `json:"thumbnail"`
		ThumbnailLocal  string         `json:"thumbnail_local"`
		ThumbnailsAll   []string       `json:"thumbnails_all"`
		ThumbnailsLocal []string       `json:"thumbnails_local"`
		ModelLink       string         `json:"model_link"`
		Metadata        RecordMetadata `json:"metadata"`
	}

	RecordMetadata struct {
		TrainedWords string            `json:"trained_words"`
		Hashes       map[string]string `json:"hashes"`
		Description  string            `json:"description"`
		AboutVersion string            `json:"about_version"`
		DownloadLink string            `json:"download_link"`
		PublishedOn  string            `json:"published_on"`
	}
)

// NewModelRecord returns a record with its collections initialized so that
// serialization always emits every field.
func NewModelRecord(filename string) ModelRecord {
	return ModelRecord{
		Filename:        filename,
		ThumbnailsAll:   []string{},
		ThumbnailsLocal: []string{},
		Metadata: RecordMetadata{
			Hashes: map[string]string{},
		},
	}
}
