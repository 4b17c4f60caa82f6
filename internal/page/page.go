// Package page extracts model metadata from raw Civitai page markup. It is
// the fallback path behind the structured API: every field is resolved by an
// ordered list of pure heuristics over the parsed document, first non-empty
// result wins. The page-state JSON (__NEXT_DATA__) is always preferred, then
// progressively more brittle structural rules.
package page

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"go-civitai-scrape/internal/helpers"

	"github.com/PuerkitoBio/goquery"
)

// Fields holds everything the fallback extractor can recover from one page.
// Absent values are empty strings; absence is not an error.
type Fields struct {
	Title        string
	Type         string
	BaseModel    string
	PublishedOn  string
	Version      string
	Description  string
	AboutVersion string
	TriggerWords string
	Size         string
	Thumbnail    string
	Video        string
	DownloadLink string
}

// nextData is the subset of the __NEXT_DATA__ page state this extractor reads.
type nextData struct {
	Props struct {
		PageProps struct {
			ModelVersion struct {
				Name            string   `json:"name"`
				BaseModel       string   `json:"baseModel"`
				BaseModelType   string   `json:"baseModelType"`
				TrainedWords    []string `json:"trainedWords"`
				Description     string   `json:"description"`
				DescriptionHtml string   `json:"descriptionHtml"`
				Notes           string   `json:"notes"`
				Changelog       string   `json:"changelog"`
				Files           []struct {
					SizeKB float64 `json:"sizeKB"`
				} `json:"files"`
			} `json:"modelVersion"`
			Model struct {
				Description     string `json:"description"`
				DescriptionHtml string `json:"descriptionHtml"`
			} `json:"model"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ldData is the subset of the application/ld+json structured data block.
type ldData struct {
	DatePublished string          `json:"datePublished"`
	Description   string          `json:"description"`
	Image         json.RawMessage `json:"image"` // string or array of strings
}

// Page is a parsed model page plus its embedded JSON blocks.
type Page struct {
	base string
	doc  *goquery.Document
	next nextData
	ld   ldData
}

var (
	dateRe         = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	baseModelRe    = regexp.MustCompile(`(?i)\bBase\s*Model\b`)
	versionTitleRe = regexp.MustCompile(`(?i)\bv[\d.]+`)
	activeBtnRe    = regexp.MustCompile(`mantine-(active|Button-root)`)
	aboutLabelRe   = regexp.MustCompile(`(?i)About\s+this\s+version`)
	panelSpaceRe   = regexp.MustCompile(`\n\s+`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Parse builds a Page from raw markup. Malformed embedded JSON blocks are
// tolerated; the structural heuristics still run without them.
func Parse(baseURL string, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page markup: %w", err)
	}
	p := &Page{base: baseURL, doc: doc}

	if s := doc.Find("script#__NEXT_DATA__").First(); s.Length() > 0 {
		_ = json.Unmarshal([]byte(s.Text()), &p.next)
	}
	if s := doc.Find(`script[type="application/ld+json"]`).First(); s.Length() > 0 {
		_ = json.Unmarshal([]byte(s.Text()), &p.ld)
	}
	return p, nil
}

// source is one extraction rule for a single field.
type source func(*Page) string

// first runs sources in priority order and returns the first non-empty value.
func first(p *Page, sources ...source) string {
	for _, s := range sources {
		if v := s(p); v != "" {
			return v
		}
	}
	return ""
}

// Extract resolves every field through its cascade. It has no side effects
// and may be called repeatedly.
func (p *Page) Extract() Fields {
	f := Fields{}
	f.Title = first(p, titleHeading, titleMeta)
	f.Type = normalizeType(first(p, typeFromState, typeFromTable))
	f.BaseModel = collapseSpace(first(p, baseModelFromState, baseModelFromTable))
	f.PublishedOn = first(p, dateFromStructured, dateFromTooltip)
	f.Version = strings.TrimSpace(first(p, versionFromState, versionFromControl,
		func(*Page) string { return versionTitleRe.FindString(f.Title) }))
	f.Description = first(p, descriptionFromState, descriptionFromSpoiler, descriptionLegacy)
	f.AboutVersion = cleanPanel(first(p, aboutFromState, aboutFromAccordion, aboutAnyPanel))
	f.TriggerWords = normalizeCommaList(first(p, triggersFromState, triggersFromLabeledRow, triggersFromPosition))
	f.Size = strings.TrimSpace(first(p, sizeFromState, sizeFromTable))
	f.Thumbnail, f.Video = p.media()
	// The download link is always the page URL we were asked about, never
	// something scraped out of the markup.
	f.DownloadLink = strings.TrimSpace(p.base)
	return f
}

// --- Title ---

func titleHeading(p *Page) string {
	return collapseSpace(p.doc.Find("h1").First().Text())
}

func titleMeta(p *Page) string {
	return strings.TrimSpace(p.doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
}

// --- Type ---

func typeFromState(p *Page) string {
	return p.next.Props.PageProps.ModelVersion.BaseModelType
}

func typeFromTable(p *Page) string {
	return tableValue(p.doc, "Type")
}

func normalizeType(t string) string {
	t = strings.TrimSpace(t)
	switch strings.ToLower(t) {
	case "lora", "loras":
		return "lora"
	case "checkpoint", "checkpoints":
		return "checkpoint"
	}
	return t
}

// --- Base model ---

func baseModelFromState(p *Page) string {
	return p.next.Props.PageProps.ModelVersion.BaseModel
}

func baseModelFromTable(p *Page) string {
	return tableValueMatch(p.doc, baseModelRe)
}

// --- Published date ---

func dateFromStructured(p *Page) string {
	if p.ld.DatePublished == "" {
		return ""
	}
	return strings.SplitN(p.ld.DatePublished, "T", 2)[0]
}

func dateFromTooltip(p *Page) string {
	var out string
	p.doc.Find("abbr[title]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := s.AttrOr("title", "")
		if d := dateRe.FindString(title); d != "" {
			out = d
			return false
		}
		return true
	})
	return out
}

// --- Version ---

func versionFromState(p *Page) string {
	return p.next.Props.PageProps.ModelVersion.Name
}

// versionFromControl reads the active (filled) version selector button. Short
// labels are icon + name, so the last token is the version; longer labels are
// taken whole.
func versionFromControl(p *Page) string {
	var out string
	p.doc.Find(`button[data-variant="filled"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !activeBtnRe.MatchString(s.AttrOr("class", "")) {
			return true
		}
		txt := collapseSpace(s.Text())
		if txt == "" {
			return true
		}
		tokens := strings.Fields(txt)
		if len(tokens) <= 3 {
			out = tokens[len(tokens)-1]
		} else {
			out = txt
		}
		return false
	})
	return out
}

// --- Description ---

func descriptionFromState(p *Page) string {
	mv := p.next.Props.PageProps.ModelVersion
	model := p.next.Props.PageProps.Model

	var candidates []string
	for _, v := range []string{
		mv.DescriptionHtml, mv.Description,
		model.DescriptionHtml, model.Description,
		p.ld.Description,
	} {
		v = strings.TrimSpace(v)
		if len(v) >= 50 {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	// Prefer a candidate that looks like markup.
	for _, c := range candidates {
		if strings.Contains(c, "<") && strings.Contains(c, ">") {
			return c
		}
	}
	return candidates[0]
}

func descriptionFromSpoiler(p *Page) string {
	spoiler := p.doc.Find(`div[class*="Spoiler-content"]`).First()
	if spoiler.Length() == 0 {
		return ""
	}
	if inner := spoiler.Find(`div[class*="RenderHtml_htmlRenderer"]`).First(); inner.Length() > 0 {
		return outerHTML(inner)
	}
	return outerHTML(spoiler)
}

func descriptionLegacy(p *Page) string {
	return outerHTML(p.doc.Find(`div[data-testid="model-description"]`).First())
}

// --- About this version ---

func aboutFromState(p *Page) string {
	mv := p.next.Props.PageProps.ModelVersion
	for _, v := range []string{mv.Description, mv.DescriptionHtml, mv.Notes, mv.Changelog} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func aboutFromAccordion(p *Page) string {
	var out string
	p.doc.Find("button").EachWithBreak(func(_ int, btn *goquery.Selection) bool {
		if !aboutLabelRe.MatchString(btn.Text()) {
			return true
		}
		panel := btn.NextAllFiltered(`div[class*="Accordion-panel"]`).First()
		if panel.Length() == 0 {
			return true
		}
		if spoiler := panel.Find(`div[class*="Spoiler-content"]`).First(); spoiler.Length() > 0 {
			out = outerHTML(spoiler)
		} else {
			out = outerHTML(panel)
		}
		return false
	})
	return out
}

func aboutAnyPanel(p *Page) string {
	return outerHTML(p.doc.Find(`div[class*="Accordion-panel"]`).First())
}

func cleanPanel(s string) string {
	return strings.TrimSpace(panelSpaceRe.ReplaceAllString(s, "\n"))
}

// --- Trigger words ---

func triggersFromState(p *Page) string {
	var words []string
	for _, w := range p.next.Props.PageProps.ModelVersion.TrainedWords {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, ", ")
}

func triggersFromLabeledRow(p *Page) string {
	var out string
	p.doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return true
		}
		left := tds.Eq(0).Find("p").First()
		if left.Length() == 0 || strings.TrimSpace(left.Text()) != "Trigger Words" {
			return true
		}
		out = strings.Join(collectBadgeWords(tds.Eq(1)), ", ")
		return false
	})
	return out
}

// triggersFromPosition applies the positional rule: the row immediately after
// the "Base Model" row carries trigger words when its label cell is empty.
func triggersFromPosition(p *Page) string {
	rows := p.doc.Find("tr")
	var out string
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		firstTd := tr.Find("td").First()
		if firstTd.Length() == 0 || !strings.Contains(strings.TrimSpace(firstTd.Text()), "Base Model") {
			return true
		}
		if i+1 >= rows.Length() {
			return false
		}
		next := rows.Eq(i + 1)
		tds := next.Find("td")
		if tds.Length() < 2 || strings.TrimSpace(tds.Eq(0).Text()) != "" {
			return false
		}
		out = strings.Join(collectBadgeWords(tds.Eq(1)), ", ")
		return false
	})
	return out
}

// collectBadgeWords gathers badge and code-like child texts, deduplicated in
// encounter order. Overlong texts are ignored; badges hold short tokens.
func collectBadgeWords(td *goquery.Selection) []string {
	var words []string
	add := func(txt string) {
		txt = collapseSpace(txt)
		if txt != "" && len(txt) < 40 {
			words = append(words, txt)
		}
	}
	td.Find(`div[class*="Badge-root"]`).Each(func(_ int, s *goquery.Selection) { add(s.Text()) })
	td.Find("code, kbd").Each(func(_ int, s *goquery.Selection) { add(s.Text()) })

	seen := make(map[string]struct{}, len(words))
	uniq := words[:0]
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		uniq = append(uniq, w)
	}
	return uniq
}

// --- Size ---

func sizeFromState(p *Page) string {
	files := p.next.Props.PageProps.ModelVersion.Files
	if len(files) == 0 {
		return ""
	}
	return helpers.FormatKB(files[0].SizeKB)
}

func sizeFromTable(p *Page) string {
	return tableValue(p.doc, "File Size")
}

// --- Thumbnail / video ---

var imageSuffixes = []string{".jpg", ".jpeg", ".png", ".webp"}

func hasImageSuffix(u string) bool {
	lower := strings.ToLower(u)
	for _, s := range imageSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// media resolves the primary thumbnail URL and, when the lead media is a
// video, its source URL. HTML entities are unescaped before use.
func (p *Page) media() (thumb, video string) {
	if c := p.doc.Find(`meta[property="og:image"]`).AttrOr("content", ""); c != "" {
		thumb = p.joinAbs(strings.TrimSpace(c))
	}

	if thumb == "" || !hasImageSuffix(thumb) {
		container := p.doc.Find(`div[class*="EdgeMedia_container"], div[class*="mantine-AspectRatio-root"]`).First()
		if container.Length() > 0 {
			if src := container.Find(`img[class*="EdgeImage_image"]`).First().AttrOr("src", ""); src != "" {
				thumb = p.joinAbs(strings.TrimSpace(src))
			}
			if thumb == "" {
				vid := container.Find(`video[class*="EdgeMedia_responsive"]`).First()
				if vid.Length() > 0 {
					if poster := vid.AttrOr("poster", ""); poster != "" {
						thumb = p.joinAbs(strings.TrimSpace(poster))
					}
					video = p.videoSource(vid)
				}
			}
		}
	}

	if thumb == "" {
		thumb = p.joinAbs(ldImage(p.ld.Image))
	}

	return unescapeAmp(thumb), unescapeAmp(video)
}

// videoSource picks the best <source> of a video element, preferring mp4.
func (p *Page) videoSource(vid *goquery.Selection) string {
	var srcs []string
	vid.Find("source").Each(func(_ int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); src != "" {
			srcs = append(srcs, src)
		}
	})
	if len(srcs) == 0 {
		return ""
	}
	for _, s := range srcs {
		if strings.HasSuffix(strings.ToLower(s), ".mp4") {
			return p.joinAbs(s)
		}
	}
	return p.joinAbs(srcs[0])
}

// ldImage handles the structured-data image field being either a string or
// an array of strings.
func ldImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// --- Shared helpers ---

// tableValue finds the <tr> whose first cell's <p> text exactly equals label
// and returns the text of the second cell (its <p> if present).
func tableValue(doc *goquery.Document, label string) string {
	var out string
	doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return true
		}
		left := tds.Eq(0).Find("p").First()
		if left.Length() == 0 || strings.TrimSpace(left.Text()) != label {
			return true
		}
		out = cellText(tds.Eq(1))
		return false
	})
	return out
}

// tableValueMatch is tableValue with a pattern match on the label cell.
func tableValueMatch(doc *goquery.Document, re *regexp.Regexp) string {
	var out string
	doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return true
		}
		left := tds.Eq(0).Find("p").First()
		if left.Length() == 0 || !re.MatchString(collapseSpace(left.Text())) {
			return true
		}
		out = cellText(tds.Eq(1))
		return false
	})
	return out
}

func cellText(td *goquery.Selection) string {
	if p := td.Find("p").First(); p.Length() > 0 {
		return strings.TrimSpace(p.Text())
	}
	return strings.TrimSpace(td.Text())
}

func outerHTML(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h)
}

func (p *Page) joinAbs(ref string) string {
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.Scheme != "" {
		return ref
	}
	baseURL, err := url.Parse(p.base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func unescapeAmp(u string) string {
	return strings.TrimSpace(strings.ReplaceAll(u, "&amp;", "&"))
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func normalizeCommaList(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ",")
	var cleaned []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, ", ")
}
