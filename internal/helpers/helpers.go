package helpers

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// CounterWriter tracks the number of bytes written to the underlying writer.
// Used to report thumbnail download sizes.
type CounterWriter struct {
	Total  uint64
	Writer io.Writer
}

// Write implements the io.Writer interface for CounterWriter.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1 // Handle very large sizes
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// FormatKB converts a kilobyte count (the unit the Civitai API reports file
// sizes in) into the largest unit that keeps the value >= 1. MB and GB values
// are rounded to 2 decimals with trailing zeros dropped; KB stays integral.
// A zero or negative size yields an empty string.
func FormatKB(kb float64) string {
	switch {
	case kb <= 0:
		return ""
	case kb >= 1024*1024:
		return trimFloat(kb/1024/1024) + " GB"
	case kb >= 1024:
		return trimFloat(kb/1024) + " MB"
	default:
		return fmt.Sprintf("%d KB", int(kb))
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
// Uses standard directory permissions (0700).
func CheckAndMakeDir(dir string) bool {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}
