// Package fetch implements the retrying HTTP GET layer shared by the API
// resolver and the thumbnail acquirer.
package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go-civitai-scrape/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrRateLimited = errors.New("rate limited by remote host")
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client performs GET requests with bounded retries, randomized backoff
// between attempts and a long fixed cooldown on HTTP 429.
type Client struct {
	httpClient *http.Client
	apiKey     string
	userAgent  string
	retries    int
	backoffMin time.Duration
	backoffMax time.Duration
	cooldown   time.Duration
	sleep      func(time.Duration)
}

// NewClient creates a fetch client. Zero config values fall back to the
// default policy: 3 attempts, 0.8-1.8s backoff, 30s rate-limit cooldown.
func NewClient(httpClient *http.Client, cfg models.Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		httpClient: httpClient,
		apiKey:     cfg.ApiKey,
		userAgent:  defaultUserAgent,
		retries:    cfg.Retries,
		backoffMin: time.Duration(cfg.BackoffMinMs) * time.Millisecond,
		backoffMax: time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		cooldown:   time.Duration(cfg.RateLimitCooldownSec) * time.Second,
		sleep:      time.Sleep,
	}
	if c.retries <= 0 {
		c.retries = 3
	}
	if c.backoffMin <= 0 {
		c.backoffMin = 800 * time.Millisecond
	}
	if c.backoffMax <= c.backoffMin {
		c.backoffMax = c.backoffMin + time.Second
	}
	if c.cooldown <= 0 {
		c.cooldown = 30 * time.Second
	}
	return c
}

// Get fetches url and returns the full response body. Exhausting all attempts
// surfaces the last observed error; callers wanting graceful degradation must
// handle it themselves.
func (c *Client) Get(url string) ([]byte, error) {
	resp, err := c.GetStream(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body from %s: %w", url, err)
	}
	return body, nil
}

// GetJSON fetches url and unmarshals the JSON body into target.
func (c *Client) GetJSON(url string, target interface{}) error {
	body, err := c.Get(url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("unmarshalling response from %s: %w", url, err)
	}
	return nil
}

// GetStream fetches url and returns the response with its body still open,
// for callers that stream large payloads to disk. The same retry policy as
// Get applies; only a 200 response is returned.
func (c *Client) GetStream(url string) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			// Not retryable; the URL itself is broken.
			return nil, fmt.Errorf("%w: creating request for %s: %v", ErrHttpRequest, url, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: GET %s (attempt %d/%d): %v", ErrHttpRequest, url, attempt, c.retries, err)
			log.WithError(err).Warnf("Request failed (attempt %d/%d), backing off...", attempt, c.retries)
			c.backoff(attempt)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: GET %s", ErrRateLimited, url)
			if attempt < c.retries {
				log.Warnf("Rate limited (429) on %s. Cooling down for %s...", url, c.cooldown)
				c.sleep(c.cooldown)
			}
			continue
		}

		lastErr = fmt.Errorf("%w: %d from %s", ErrHttpStatus, resp.StatusCode, url)
		log.Warnf("HTTP %d for %s (attempt %d/%d)", resp.StatusCode, url, attempt, c.retries)
		c.backoff(attempt)
	}

	return nil, lastErr
}

// backoff sleeps for a uniformly random duration in the configured range.
// Skipped after the final attempt since no retry follows.
func (c *Client) backoff(attempt int) {
	if attempt >= c.retries {
		return
	}
	span := int64(c.backoffMax - c.backoffMin)
	c.sleep(c.backoffMin + time.Duration(rand.Int63n(span)))
}
