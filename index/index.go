package index

import (
	"log"
	"os"

	"github.com/blevesearch/bleve/v2"

	"go-civitai-scrape/internal/models"
)

const defaultIndexPath = "civitai-scrape.bleve"

// Item is one scraped model record flattened for indexing. All fields are
// searchable by their lowercase JSON tag names (e.g. '+type:lora' or
// '+baseModel:"SDXL 1.0"').
type Item struct {
	ID           string `json:"id"`                     // Allocated registry identifier (e.g. A0001)
	Filename     string `json:"filename"`               // Display name from the link file
	Title        string `json:"title"`                  // "<model> - <version>"
	Type         string `json:"type"`                   // lora, checkpoint, ...
	BaseModel    string `json:"baseModel,omitempty"`    // Base model (e.g. SDXL 1.0)
	TriggerWords string `json:"triggerWords,omitempty"` // Comma-joined trained words
	Description  string `json:"description,omitempty"`  // Raw description markup
	ModelLink    string `json:"modelLink,omitempty"`    // Canonical model page URL
	PublishedOn  string `json:"publishedOn,omitempty"`  // YYYY-MM-DD
	Size         string `json:"size,omitempty"`         // Human-readable file size
}

// FromRecord flattens a registry record into an indexable item.
func FromRecord(id string, rec models.ModelRecord) Item {
	return Item{
		ID:           id,
		Filename:     rec.Filename,
		Title:        rec.Title,
		Type:         rec.Type,
		BaseModel:    rec.BaseModel,
		TriggerWords: rec.Metadata.TrainedWords,
		Description:  rec.Metadata.Description,
		ModelLink:    rec.ModelLink,
		PublishedOn:  rec.Metadata.PublishedOn,
		Size:         rec.Size,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Printf("Creating new index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		index, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Printf("Opened existing index at: %s", indexPath)
	}
	return index, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(index bleve.Index, item Item) error {
	return index.Index(item.ID, item)
}

// SearchIndex performs a search query against the index.
func SearchIndex(index bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"}
	return index.Search(searchRequest)
}

// DeleteIndex removes the index directory. Use with caution!
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Printf("Attempting to delete index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
