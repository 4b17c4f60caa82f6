package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport wraps an http.RoundTripper to log request and response
// details to a file. Enabled via the LogApiRequests config flag.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

// NewLoggingTransport creates a LoggingTransport appending to logFilePath.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

// RoundTrip executes a single HTTP transaction, logging details. JSON bodies
// are captured and restored for the caller; anything else logs headers only.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	startTime := time.Now()

	reqDump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		log.WithError(err).Error("Failed to dump API request for logging")
	} else {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", startTime.Format(time.RFC3339), string(reqDump)))
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(startTime)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (Duration: %v) ---\n%s", duration, err.Error()))
		t.writer.Flush()
		return resp, err
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			log.WithError(readErr).Error("Failed to read response body for logging")
		} else {
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			t.writeLog(fmt.Sprintf("--- Response (Status: %s, Duration: %v) ---\n%s", resp.Status, duration, string(bodyBytes)))
		}
	} else {
		t.writeLog(fmt.Sprintf("--- Response (Status: %s, Duration: %v, Type: %s) ---\n(Body not logged)", resp.Status, duration, contentType))
	}

	t.writer.Flush()
	return resp, err
}

func (t *LoggingTransport) writeLog(logString string) {
	if _, err := t.writer.WriteString(logString + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
	}
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", err)
	}
	return t.logFile.Close()
}
