package fetch

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-civitai-scrape/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client with a recording sleep function so tests can
// observe cooldown and backoff pauses without waiting for them.
func newTestClient(t *testing.T, cooldowns *int, backoffs *int) *Client {
	t.Helper()
	c := NewClient(&http.Client{Timeout: 5 * time.Second}, models.Config{
		Retries:              3,
		RateLimitCooldownSec: 30,
	})
	c.sleep = func(d time.Duration) {
		if d == c.cooldown {
			*cooldowns++
		} else {
			*backoffs++
		}
	}
	return c
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	var cooldowns, backoffs int
	c := newTestClient(t, &cooldowns, &backoffs)

	body, err := c.Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Zero(t, cooldowns)
	assert.Zero(t, backoffs)
}

func TestGetRateLimitedOnceThenOK(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var cooldowns, backoffs int
	c := newTestClient(t, &cooldowns, &backoffs)

	body, err := c.Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 1, cooldowns, "exactly one cooldown pause expected")
	assert.Zero(t, backoffs)
}

func TestGetServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var cooldowns, backoffs int
	c := newTestClient(t, &cooldowns, &backoffs)

	_, err := c.Get(srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHttpStatus)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "should stop after 3 attempts")
	assert.Equal(t, 2, backoffs, "backoff between attempts, none after the last")
	assert.Zero(t, cooldowns)
}

func TestGetNetworkErrorSurfacesLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	var cooldowns, backoffs int
	c := newTestClient(t, &cooldowns, &backoffs)

	_, err := c.Get(srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHttpRequest)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 7, "name": "test"}`))
	}))
	defer srv.Close()

	var cooldowns, backoffs int
	c := newTestClient(t, &cooldowns, &backoffs)

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(srv.URL, &out))
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "test", out.Name)

	srvBad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srvBad.Close()
	assert.Error(t, c.GetJSON(srvBad.URL, &out))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil, models.Config{})
	assert.Equal(t, 3, c.retries)
	assert.Equal(t, 800*time.Millisecond, c.backoffMin)
	assert.Greater(t, c.backoffMax, c.backoffMin)
	assert.Equal(t, 30*time.Second, c.cooldown)
}
