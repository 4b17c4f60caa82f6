package page

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageWithState = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Fallback Title"/>
<meta property="og:image" content="https://image.example.com/a.jpeg"/>
<script type="application/ld+json">{"datePublished":"2024-03-15T10:00:00Z","description":"short"}</script>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{
  "modelVersion":{
    "name":"v2.0",
    "baseModel":"SDXL 1.0",
    "baseModelType":"LORA",
    "trainedWords":[" neon ","","cityscape"],
    "descriptionHtml":"<p>A long rich description of this model that easily passes the length floor.</p>",
    "files":[{"sizeKB":2048}]
  },
  "model":{"description":"plain"}
}}}</script>
</head><body><h1>  State   Model  </h1></body></html>`

func TestExtractPrefersPageState(t *testing.T) {
	p, err := Parse("https://civitai.com/models/123", strings.NewReader(pageWithState))
	require.NoError(t, err)

	f := p.Extract()
	assert.Equal(t, "State Model", f.Title)
	assert.Equal(t, "lora", f.Type)
	assert.Equal(t, "SDXL 1.0", f.BaseModel)
	assert.Equal(t, "2024-03-15", f.PublishedOn)
	assert.Equal(t, "v2.0", f.Version)
	assert.Contains(t, f.Description, "length floor")
	assert.Equal(t, "neon, cityscape", f.TriggerWords)
	assert.Equal(t, "2 MB", f.Size)
	assert.Equal(t, "https://image.example.com/a.jpeg", f.Thumbnail)
	assert.Equal(t, "https://civitai.com/models/123", f.DownloadLink)
}

const pageStructural = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Structural Model v1.5"/>
</head><body>
<h1></h1>
<abbr title="Created: 2023-11-02T08:30:00.000Z">1 year ago</abbr>
<button data-variant="filled" class="mantine-active m-x">icon v1.5</button>
<table><tbody>
<tr><td><p>Type</p></td><td><p>Checkpoints</p></td></tr>
<tr><td><p>File Size</p></td><td><p>1.99 GB</p></td></tr>
<tr><td><p>Base  Model</p></td><td><p>SD 1.5</p></td></tr>
<tr><td></td><td>
  <div class="mantine-Badge-root">masterwork</div>
  <code>trigger_one</code>
  <code>trigger_one</code>
</td></tr>
</tbody></table>
<div class="mantine-Spoiler-content">
  <div class="RenderHtml_htmlRenderer__abc"><p>Spoiler description body that is comfortably over fifty characters long.</p></div>
</div>
<button>About this version</button>
<div class="mantine-Accordion-panel"><p>Version notes here.</p></div>
<div class="EdgeMedia_container__x">
  <img class="EdgeImage_image__y" src="/images/thumb.png?width=450&amp;x=1"/>
</div>
</body></html>`

func TestExtractStructuralFallbacks(t *testing.T) {
	p, err := Parse("https://civitai.com/models/456", strings.NewReader(pageStructural))
	require.NoError(t, err)

	f := p.Extract()
	assert.Equal(t, "Structural Model v1.5", f.Title, "meta title when h1 empty")
	assert.Equal(t, "checkpoint", f.Type)
	assert.Equal(t, "SD 1.5", f.BaseModel)
	assert.Equal(t, "2023-11-02", f.PublishedOn)
	assert.Equal(t, "v1.5", f.Version, "last token of a short selector label")
	assert.Contains(t, f.Description, "Spoiler description body")
	assert.Contains(t, f.AboutVersion, "Version notes here.")
	assert.Equal(t, "masterwork, trigger_one", f.TriggerWords, "positional row, deduplicated")
	assert.Equal(t, "1.99 GB", f.Size)
}

func TestVersionLongLabelKeptWhole(t *testing.T) {
	html := `<html><body>
<button data-variant="filled" class="mantine-Button-root">SDXL Turbo Final Release Candidate</button>
</body></html>`
	p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "SDXL Turbo Final Release Candidate", p.Extract().Version)
}

func TestVersionFromTitleLastResort(t *testing.T) {
	html := `<html><body><h1>Great Model V3.1 Pruned</h1></body></html>`
	p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "V3.1", p.Extract().Version)
}

func TestLabeledTriggerRow(t *testing.T) {
	html := `<html><body><table>
<tr><td><p>Trigger Words</p></td><td><code>alpha</code><kbd>beta</kbd></td></tr>
</table></body></html>`
	p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "alpha, beta", p.Extract().TriggerWords)
}

func TestMediaResolution(t *testing.T) {
	t.Run("non image og falls through to gallery image", func(t *testing.T) {
		html := `<html><head><meta property="og:image" content="https://x.example/card"/></head><body>
<div class="mantine-AspectRatio-root">
  <img class="EdgeImage_image__a" src="https://img.example/b.webp?w=450&amp;q=80"/>
</div></body></html>`
		p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
		require.NoError(t, err)
		f := p.Extract()
		assert.Equal(t, "https://img.example/b.webp?w=450&q=80", f.Thumbnail, "ampersand unescaped")
		assert.Empty(t, f.Video)
	})

	t.Run("video lead media yields poster and mp4 source", func(t *testing.T) {
		html := `<html><body>
<div class="EdgeMedia_container__a">
  <video class="EdgeMedia_responsive__b" poster="/posters/p.jpg">
    <source src="https://vid.example/clip.webm"/>
    <source src="https://vid.example/clip.mp4"/>
  </video>
</div></body></html>`
		p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
		require.NoError(t, err)
		f := p.Extract()
		assert.Equal(t, "https://civitai.com/posters/p.jpg", f.Thumbnail, "relative poster resolved against page URL")
		assert.Equal(t, "https://vid.example/clip.mp4", f.Video, "mp4 preferred over webm")
	})

	t.Run("structured data image as array", func(t *testing.T) {
		html := `<html><head>
<script type="application/ld+json">{"image":["https://sd.example/first.png","https://sd.example/second.png"]}</script>
</head><body></body></html>`
		p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
		require.NoError(t, err)
		assert.Equal(t, "https://sd.example/first.png", p.Extract().Thumbnail)
	})
}

func TestExtractEmptyPage(t *testing.T) {
	p, err := Parse("https://civitai.com/models/1", strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)

	f := p.Extract()
	assert.Empty(t, f.Title)
	assert.Empty(t, f.Type)
	assert.Empty(t, f.TriggerWords)
	assert.Equal(t, "https://civitai.com/models/1", f.DownloadLink, "page URL survives even when nothing extracts")
}

func TestMalformedEmbeddedJSONTolerated(t *testing.T) {
	html := `<html><head>
<script id="__NEXT_DATA__" type="application/json">{not json</script>
</head><body><h1>Still Works</h1></body></html>`
	p, err := Parse("https://civitai.com/models/1", strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Still Works", p.Extract().Title)
}
