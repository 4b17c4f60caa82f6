// Package database wraps a bitcask key-value store used to remember every
// record a scrape run has produced, keyed by the canonical model page link so
// repeat runs can tell new models from already-seen ones.
package database

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go-civitai-scrape/internal/models"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not found in the database.
var ErrNotFound = errors.New("key not found")

// gzipMagicBytes are the first two bytes of a gzip file.
var gzipMagicBytes = []byte{0x1f, 0x8b}

// DB wraps the bitcask database instance and provides helper methods.
// Values are stored gzip-compressed; reads transparently decompress.
type DB struct {
	db           *bitcask.Bitcask
	sync.RWMutex // Embed mutex for concurrent access control
}

// Open initializes and returns a DB instance.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dbInstance, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask database at %s: %w", path, err)
	}
	log.Infof("Database opened successfully at %s", path)
	return &DB{db: dbInstance}, nil
}

// Close safely closes the database connection.
func (d *DB) Close() error {
	d.Lock()
	defer d.Unlock()
	return d.db.Close()
}

// Has checks if a key exists in the database.
func (d *DB) Has(key []byte) bool {
	d.RLock()
	defer d.RUnlock()
	return d.db.Has(key)
}

// Get retrieves the value associated with a key and decompresses it if necessary.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.RLock()
	value, err := d.db.Get(key)
	d.RUnlock()

	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting key %s: %w", string(key), err)
	}
	return decompressIfGzipped(value)
}

// Put compresses and stores a key-value pair in the database.
func (d *DB) Put(key []byte, value []byte) error {
	compressedValue, err := compressGzip(value, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("error compressing value for key %s: %w", string(key), err)
	}

	d.Lock()
	err = d.db.Put(key, compressedValue)
	d.Unlock()
	if err != nil {
		return fmt.Errorf("error putting compressed key %s: %w", string(key), err)
	}
	return nil
}

// Delete removes a key from the database.
func (d *DB) Delete(key []byte) error {
	d.Lock()
	err := d.db.Delete(key)
	d.Unlock()
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("error deleting key %s: %w", string(key), err)
	}
	return nil
}

// Fold iterates over all key-value pairs, decompresses each value, and calls
// the provided function.
func (d *DB) Fold(fn func(key []byte, value []byte) error) error {
	d.RLock()
	defer d.RUnlock()

	return d.db.Fold(func(key []byte) error {
		rawValue, err := d.db.Get(key)
		if err != nil {
			log.WithError(err).Warnf("Fold: Error getting value for key %s", string(key))
			return nil
		}
		value, err := decompressIfGzipped(rawValue)
		if err != nil {
			log.WithError(err).Warnf("Fold: Error decompressing value for key %s", string(key))
			return nil
		}
		return fn(key, value)
	})
}

// --- Record Helpers ---

// StoreRecord serializes and stores a record under its canonical model link.
func (d *DB) StoreRecord(rec models.ModelRecord) error {
	if rec.ModelLink == "" {
		return errors.New("cannot store record: model link is empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error marshalling record %s: %w", rec.Filename, err)
	}
	log.Debugf("Storing record with key %s", rec.ModelLink)
	return d.Put([]byte(rec.ModelLink), data)
}

// GetRecord retrieves the record stored under a canonical model link.
func (d *DB) GetRecord(modelLink string) (models.ModelRecord, error) {
	data, err := d.Get([]byte(modelLink))
	if err != nil {
		return models.ModelRecord{}, err
	}
	var rec models.ModelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.ModelRecord{}, fmt.Errorf("error unmarshalling record %s: %w", modelLink, err)
	}
	return rec, nil
}

// HasRecord reports whether a record exists for the given model link.
func (d *DB) HasRecord(modelLink string) bool {
	return d.Has([]byte(modelLink))
}

// FoldRecords iterates over every stored record.
func (d *DB) FoldRecords(fn func(modelLink string, rec models.ModelRecord) error) error {
	return d.Fold(func(key, value []byte) error {
		var rec models.ModelRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			log.WithError(err).Warnf("Skipping malformed record for key %s", string(key))
			return nil
		}
		return fn(string(key), rec)
	})
}

// --- Compression Helpers ---

// decompressIfGzipped decompresses the value if it is gzipped.
func decompressIfGzipped(value []byte) ([]byte, error) {
	if bytes.HasPrefix(value, gzipMagicBytes) {
		gReader, err := gzip.NewReader(bytes.NewReader(value))
		if err != nil {
			log.WithError(err).Warnf("Error creating gzip reader for value, returning raw data.")
			return value, nil
		}
		defer gReader.Close()

		decompressedValue, err := io.ReadAll(gReader)
		if err != nil {
			log.WithError(err).Warnf("Error decompressing value, returning raw data.")
			return value, nil
		}
		return decompressedValue, nil
	}
	return value, nil
}

// compressGzip compresses the value using gzip with the specified compression level.
func compressGzip(value []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	gWriter, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("error creating gzip writer for value: %w", err)
	}
	if _, err = gWriter.Write(value); err != nil {
		_ = gWriter.Close()
		return nil, fmt.Errorf("error writing compressed data for value: %w", err)
	}
	// Close must be called to flush buffers.
	if err = gWriter.Close(); err != nil {
		return nil, fmt.Errorf("error closing gzip writer for value: %w", err)
	}
	return buf.Bytes(), nil
}
