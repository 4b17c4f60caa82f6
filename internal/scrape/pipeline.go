// Package scrape drives the end-to-end run: resolve every link entry into a
// record, pull its thumbnails, and hand the results to the optional history
// store and search index.
package scrape

import (
	"fmt"
	"math/rand"
	"time"

	idx "go-civitai-scrape/index"
	"go-civitai-scrape/internal/database"
	"go-civitai-scrape/internal/ident"
	"go-civitai-scrape/internal/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
)

// Resolver turns one link entry into a record plus its gallery images.
type Resolver interface {
	Resolve(name, url string) (models.ModelRecord, []models.ModelImage, error)
}

// ThumbnailAcquirer downloads one thumbnail and reports (remote, local).
type ThumbnailAcquirer interface {
	Acquire(remoteURL, idBase string) (string, string)
}

// Summary is the outcome of one run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Pipeline processes link entries strictly in order. One failing entry never
// aborts the run; it is counted and skipped.
type Pipeline struct {
	Resolver Resolver
	Thumbs   ThumbnailAcquirer
	IDs      ident.Allocator

	MaxThumbnails int
	DelayMin      time.Duration
	DelayMax      time.Duration

	// Optional sinks; nil disables them.
	DB     *database.DB
	Index  bleve.Index
	Writer *uilive.Writer

	sleep func(time.Duration)
}

// NewPipeline wires a pipeline from config, applying the default politeness
// window (0.6-1.2s) and thumbnail cap (5) for unset values.
func NewPipeline(cfg models.Config, resolver Resolver, thumbs ThumbnailAcquirer, ids ident.Allocator) *Pipeline {
	p := &Pipeline{
		Resolver:      resolver,
		Thumbs:        thumbs,
		IDs:           ids,
		MaxThumbnails: cfg.MaxThumbnails,
		DelayMin:      time.Duration(cfg.DelayMinMs) * time.Millisecond,
		DelayMax:      time.Duration(cfg.DelayMaxMs) * time.Millisecond,
		sleep:         time.Sleep,
	}
	if p.MaxThumbnails <= 0 {
		p.MaxThumbnails = 5
	}
	if p.DelayMin <= 0 {
		p.DelayMin = 600 * time.Millisecond
	}
	if p.DelayMax <= p.DelayMin {
		p.DelayMax = p.DelayMin + 600*time.Millisecond
	}
	return p
}

// Run processes entries in order and returns the summary together with the
// identifier-to-record registry map.
func (p *Pipeline) Run(entries []models.LinkEntry) (Summary, map[string]models.ModelRecord) {
	sum := Summary{Total: len(entries)}
	out := make(map[string]models.ModelRecord, len(entries))

	for i, entry := range entries {
		p.progress("[%d/%d] Fetching %s...", i+1, len(entries), entry.Name)
		start := time.Now()

		rec, images, err := p.Resolver.Resolve(entry.Name, entry.URL)
		if err != nil {
			log.WithError(err).Errorf("Failed to resolve %s", entry.Name)
			sum.Failed++
			continue
		}

		id := p.IDs.Next()
		p.attachThumbnails(&rec, id, images)
		out[id] = rec
		sum.Succeeded++

		log.Infof("Parsed %s in %.1fs (%s / %s / %s)",
			entry.Name, time.Since(start).Seconds(), rec.Type, rec.BaseModel, rec.Size)

		if p.DB != nil {
			if err := p.DB.StoreRecord(rec); err != nil {
				log.WithError(err).Warnf("Failed to store record for %s", entry.Name)
			}
		}
		if p.Index != nil {
			if err := idx.IndexItem(p.Index, idx.FromRecord(id, rec)); err != nil {
				log.WithError(err).Warnf("Failed to index record for %s", entry.Name)
			}
		}

		if i < len(entries)-1 {
			p.politenessDelay()
		}
	}

	p.progress("Done: %d succeeded, %d failed", sum.Succeeded, sum.Failed)
	return sum, out
}

// attachThumbnails downloads up to MaxThumbnails gallery images, naming them
// <id>_T<n> with n starting at 1, and fills the record's thumbnail fields.
// A record resolved without gallery images still gets its page-level media
// (poster and, for video-lead pages, the clip) fetched.
func (p *Pipeline) attachThumbnails(rec *models.ModelRecord, id string, images []models.ModelImage) {
	if len(images) == 0 {
		for _, u := range rec.ThumbnailsAll {
			images = append(images, models.ModelImage{URL: u})
		}
		if len(images) == 0 && rec.Thumbnail != "" {
			images = []models.ModelImage{{URL: rec.Thumbnail}}
		}
	}
	rec.Thumbnail = ""
	rec.ThumbnailsAll = []string{}
	rec.ThumbnailsLocal = []string{}

	if p.Thumbs == nil {
		return
	}

	n := len(images)
	if n > p.MaxThumbnails {
		n = p.MaxThumbnails
	}
	for j := 0; j < n; j++ {
		if images[j].URL == "" {
			continue
		}
		remote, local := p.Thumbs.Acquire(images[j].URL, fmt.Sprintf("%s_T%d", id, j+1))
		if remote != "" {
			rec.ThumbnailsAll = append(rec.ThumbnailsAll, remote)
		}
		if local != "" {
			rec.ThumbnailsLocal = append(rec.ThumbnailsLocal, local)
		}
	}

	if len(rec.ThumbnailsAll) > 0 {
		rec.Thumbnail = rec.ThumbnailsAll[0]
	}
	if len(rec.ThumbnailsLocal) > 0 {
		rec.ThumbnailLocal = rec.ThumbnailsLocal[0]
	}
}

// politenessDelay pauses for a uniformly random duration between entries so
// the run never hammers the remote host.
func (p *Pipeline) politenessDelay() {
	span := int64(p.DelayMax - p.DelayMin)
	p.sleep(p.DelayMin + time.Duration(rand.Int63n(span)))
}

func (p *Pipeline) progress(format string, args ...interface{}) {
	if p.Writer == nil {
		return
	}
	fmt.Fprintf(p.Writer, format+"\n", args...)
}
