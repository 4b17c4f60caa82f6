package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-civitai-scrape/index"
)

// searchCmd queries the Bleve index built during scrape runs.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index of scraped models",
	Long: `Searches the Bleve index populated by the scrape command. The query uses
Bleve query string syntax, e.g. '+type:lora +baseModel:"SDXL 1.0"'.`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	if globalConfig.BleveIndexPath == "" {
		log.Fatal("No search index configured (set BleveIndexPath in config)")
	}

	bleveIndex, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		log.WithError(err).Fatalf("Failed to open search index at %s", globalConfig.BleveIndexPath)
	}
	defer bleveIndex.Close()

	results, err := index.SearchIndex(bleveIndex, args[0])
	if err != nil {
		log.WithError(err).Fatal("Search failed")
	}

	fmt.Printf("%d matches (%d returned)\n\n", results.Total, len(results.Hits))
	for _, hit := range results.Hits {
		fmt.Printf("%s (score %.3f)\n", hit.ID, hit.Score)
		for _, field := range []string{"title", "type", "baseModel", "modelLink", "size"} {
			if v, ok := hit.Fields[field]; ok && v != "" {
				fmt.Printf("  %-10s %v\n", field+":", v)
			}
		}
		fmt.Println()
	}
}
