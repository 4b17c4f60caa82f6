package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-civitai-scrape/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadRoundTrip(t *testing.T) {
	rec := models.NewModelRecord("Example Model")
	rec.Title = "Example Model - v1.0"
	rec.Type = "lora"
	rec.BaseModel = "SDXL 1.0"
	rec.Size = "1.5 MB"
	rec.ModelLink = "https://civitai.com/models/123"
	rec.ThumbnailsAll = []string{"https://image.example/1.jpeg"}
	rec.ThumbnailsLocal = []string{"thumbs/A0001_T1.jpeg"}
	rec.Metadata.TrainedWords = "alpha, beta"
	rec.Metadata.Hashes["SHA256"] = "abc123"

	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	require.NoError(t, Write(path, map[string]models.ModelRecord{"A0001": rec}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.ModelRecord{"A0001": rec}, loaded)
}

func TestWriteEmitsEveryField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, Write(path, map[string]models.ModelRecord{"A0001": models.NewModelRecord("x")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	for _, key := range []string{
		`"filename"`, `"title"`, `"type"`, `"base_model"`, `"base_model_type"`,
		`"size"`, `"thumbnail"`, `"thumbnail_local"`, `"thumbnails_all"`,
		`"thumbnails_local"`, `"model_link"`, `"metadata"`, `"trained_words"`,
		`"hashes"`, `"description"`, `"about_version"`, `"download_link"`, `"published_on"`,
	} {
		assert.Contains(t, out, key)
	}
	assert.True(t, strings.HasPrefix(out, "{\n  "), "output should be indented")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
