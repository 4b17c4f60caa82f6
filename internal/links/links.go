// Package links loads the input mapping of model names to page URLs and
// flattens it into an ordered list of (name, url) pairs.
package links

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go-civitai-scrape/internal/models"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidFormat is returned when the link file is not a JSON object.
var ErrInvalidFormat = errors.New("link file must be a JSON object of name to url(s)")

// placeholderName is used when an entry has a blank key and its URL carries
// no usable path segment.
const placeholderName = "unnamed"

// Load reads and parses the link file at path. A missing or malformed file is
// a fatal load error; malformed individual values are tolerated and skipped.
func Load(path string) ([]models.LinkEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading link file %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing link file %s: %w", path, err)
	}
	return entries, nil
}

// Parse flattens a JSON object mapping names to a URL string, a
// comma-separated URL string, or an array of URL strings. Key order in the
// document is preserved, which is why this walks decoder tokens instead of
// unmarshalling into a map.
func Parse(data []byte) ([]models.LinkEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrInvalidFormat
	}

	var entries []models.LinkEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		name := strings.TrimSpace(keyTok.(string))

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}

		urls := extractURLs(value)
		if len(urls) == 0 {
			if value != nil {
				log.Debugf("Skipping entry %q: no usable URLs", name)
			}
			continue
		}

		if name == "" {
			// Blank key: each URL becomes its own entry named after the
			// URL's last path segment.
			for _, u := range urls {
				entries = append(entries, models.LinkEntry{Name: nameFromURL(u), URL: u})
			}
			continue
		}

		// Non-blank key fans out to one entry per URL sharing the name.
		for _, u := range urls {
			entries = append(entries, models.LinkEntry{Name: name, URL: u})
		}
	}

	return entries, nil
}

// extractURLs normalizes a raw mapping value into a list of URL strings.
// Values that are neither strings nor arrays, commented-out tokens (leading
// '#') and tokens without an http scheme marker are dropped silently.
func extractURLs(value interface{}) []string {
	var tokens []string
	switch v := value.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			tokens = append(tokens, strings.TrimSpace(part))
		}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			tokens = append(tokens, strings.TrimSpace(s))
		}
	default:
		return nil
	}

	var urls []string
	for _, tok := range tokens {
		if tok == "" || strings.HasPrefix(tok, "#") || !strings.Contains(tok, "http") {
			continue
		}
		urls = append(urls, tok)
	}
	return urls
}

// nameFromURL derives an entry name from the last path segment of a URL.
func nameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return placeholderName
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return placeholderName
	}
	return last
}
