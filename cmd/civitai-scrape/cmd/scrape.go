package cmd

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-civitai-scrape/index"
	"go-civitai-scrape/internal/api"
	"go-civitai-scrape/internal/database"
	"go-civitai-scrape/internal/fetch"
	"go-civitai-scrape/internal/ident"
	"go-civitai-scrape/internal/links"
	"go-civitai-scrape/internal/registry"
	"go-civitai-scrape/internal/scrape"
	"go-civitai-scrape/internal/thumbs"
)

// scrapeCmd is the main workhorse: link file in, registry JSON out.
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape model metadata for every link in the link file",
	Long: `Reads the JSON link file, resolves each model page through the Civitai
API (falling back to scraping the page markup when enabled), downloads up to
five thumbnails per model and writes the resulting registry as indented JSON.`,
	Run: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringP("links", "l", "", "Path to the JSON link file (overrides config)")
	scrapeCmd.Flags().StringP("output", "o", "", "Path of the output registry JSON (overrides config)")
	scrapeCmd.Flags().String("thumb-dir", "", "Directory for downloaded thumbnails (overrides config)")
	scrapeCmd.Flags().Int("limit", 0, "Process only the first N entries (0 = all)")
	scrapeCmd.Flags().Bool("random-ids", false, "Allocate random A1000-A9999 identifiers instead of sequential ones")
	scrapeCmd.Flags().Bool("scrape-fallback", false, "Scrape the page markup when the API cannot resolve a link")

	// Bind flags to viper keys so config file values act as defaults
	viper.BindPFlag("scrape.links", scrapeCmd.Flags().Lookup("links"))
	viper.BindPFlag("scrape.output", scrapeCmd.Flags().Lookup("output"))
	viper.BindPFlag("scrape.thumbdir", scrapeCmd.Flags().Lookup("thumb-dir"))
	viper.BindPFlag("scrape.limit", scrapeCmd.Flags().Lookup("limit"))
	viper.BindPFlag("scrape.randomids", scrapeCmd.Flags().Lookup("random-ids"))
	viper.BindPFlag("scrape.fallback", scrapeCmd.Flags().Lookup("scrape-fallback"))
}

func runScrape(cmd *cobra.Command, args []string) {
	cfg := globalConfig
	if v := viper.GetString("scrape.links"); v != "" {
		cfg.LinkFile = v
	}
	if v := viper.GetString("scrape.output"); v != "" {
		cfg.OutputPath = v
	}
	if v := viper.GetString("scrape.thumbdir"); v != "" {
		cfg.ThumbnailPath = v
	}
	if cmd.Flags().Changed("random-ids") {
		cfg.RandomIds = viper.GetBool("scrape.randomids")
	}
	if cmd.Flags().Changed("scrape-fallback") {
		cfg.ScrapeFallback = viper.GetBool("scrape.fallback")
	}
	limit := viper.GetInt("scrape.limit")

	if cfg.LinkFile == "" {
		log.Fatal("No link file specified (set LinkFile in config or use --links)")
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "output/models.json"
	}
	if cfg.ThumbnailPath == "" {
		cfg.ThumbnailPath = "thumbnails"
	}

	// A broken link file is the one fatal input error; everything after this
	// point degrades per entry.
	entries, err := links.Load(cfg.LinkFile)
	if err != nil {
		log.WithError(err).Fatalf("Error loading link file %s", cfg.LinkFile)
	}
	if len(entries) == 0 {
		log.Warn("No valid links found in file.")
		return
	}

	if limit > 0 && len(entries) > limit {
		log.Infof("Limiting run to first %d of %d entries", limit, len(entries))
		entries = entries[:limit]
	}

	apiClient := fetch.NewClient(&http.Client{
		Timeout:   time.Duration(cfg.ApiClientTimeoutSec) * time.Second,
		Transport: globalHttpTransport,
	}, cfg)
	thumbClient := fetch.NewClient(&http.Client{
		Timeout:   time.Duration(cfg.ThumbTimeoutSec) * time.Second,
		Transport: globalHttpTransport,
	}, cfg)

	resolver := api.NewResolver(apiClient, cfg)
	acquirer := thumbs.NewAcquirer(thumbClient, cfg.ThumbnailPath)

	var alloc ident.Allocator
	if cfg.RandomIds {
		alloc = ident.NewRandom(rand.New(rand.NewSource(time.Now().UnixNano())))
	} else {
		alloc = ident.NewSequential()
	}

	pipeline := scrape.NewPipeline(cfg, resolver, acquirer, alloc)

	if cfg.DatabasePath != "" {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			log.WithError(err).Warn("Failed to open history database, continuing without it")
		} else {
			defer db.Close()
			pipeline.DB = db
		}
	}
	if cfg.BleveIndexPath != "" {
		bleveIndex, err := index.OpenOrCreateIndex(cfg.BleveIndexPath)
		if err != nil {
			log.WithError(err).Warn("Failed to open search index, continuing without it")
		} else {
			defer bleveIndex.Close()
			pipeline.Index = bleveIndex
		}
	}

	writer := uilive.New()
	writer.Start()
	pipeline.Writer = writer

	log.Infof("Starting scrape: %d models", len(entries))
	summary, records := pipeline.Run(entries)
	writer.Stop()

	// A failed registry write must not erase the run from the log; the
	// thumbnails and database entries already exist on disk.
	if err := registry.Write(cfg.OutputPath, records); err != nil {
		log.WithError(err).Errorf("Failed to save registry to %s", cfg.OutputPath)
	} else {
		log.Infof("Registry saved: %s", cfg.OutputPath)
	}

	fmt.Println("\n--- Scrape Summary ---")
	fmt.Printf("Entries processed: %d\n", summary.Total)
	fmt.Printf("Succeeded:         %d\n", summary.Succeeded)
	fmt.Printf("Failed:            %d\n", summary.Failed)
	fmt.Printf("Records written:   %d\n", len(records))
	fmt.Println("----------------------")
}
