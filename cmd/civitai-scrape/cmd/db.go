package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-civitai-scrape/internal/database"
	"go-civitai-scrape/internal/models"
)

// dbCmd groups inspection commands for the scrape history database.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the scrape history database",
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all records stored in the history database",
	Run:   runDbList,
}

var dbGetCmd = &cobra.Command{
	Use:   "get <model-link>",
	Short: "Show the stored record for a canonical model link",
	Args:  cobra.ExactArgs(1),
	Run:   runDbGet,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbGetCmd)
}

func openHistoryDB() *database.DB {
	if globalConfig.DatabasePath == "" {
		log.Fatal("No history database configured (set DatabasePath in config)")
	}
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		log.WithError(err).Fatalf("Failed to open database at %s", globalConfig.DatabasePath)
	}
	return db
}

func runDbList(cmd *cobra.Command, args []string) {
	db := openHistoryDB()
	defer db.Close()

	var count int
	err := db.FoldRecords(func(link string, rec models.ModelRecord) error {
		count++
		fmt.Printf("%s\n  %s (%s / %s / %s)\n", link, rec.Title, rec.Type, rec.BaseModel, rec.Size)
		return nil
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to iterate database")
	}
	fmt.Printf("\n%d records\n", count)
}

func runDbGet(cmd *cobra.Command, args []string) {
	db := openHistoryDB()
	defer db.Close()

	rec, err := db.GetRecord(args[0])
	if err != nil {
		log.WithError(err).Fatalf("No record for %s", args[0])
	}

	fmt.Printf("Filename:     %s\n", rec.Filename)
	fmt.Printf("Title:        %s\n", rec.Title)
	fmt.Printf("Type:         %s\n", rec.Type)
	fmt.Printf("Base model:   %s\n", rec.BaseModel)
	fmt.Printf("Size:         %s\n", rec.Size)
	fmt.Printf("Published:    %s\n", rec.Metadata.PublishedOn)
	fmt.Printf("Model link:   %s\n", rec.ModelLink)
	fmt.Printf("Download:     %s\n", rec.Metadata.DownloadLink)
	fmt.Printf("Trigger words: %s\n", rec.Metadata.TrainedWords)
	fmt.Printf("Thumbnails:   %d remote, %d local\n", len(rec.ThumbnailsAll), len(rec.ThumbnailsLocal))
}
