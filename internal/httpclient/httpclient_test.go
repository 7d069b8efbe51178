package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(srvURL, token string) *Client {
	return New(srvURL, token, WithBackoff(time.Millisecond))
}

func TestGetJSON(t *testing.T) {
	var gotAuth, gotQuery, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		w.Write([]byte(`[{"sequence":1},{"sequence":2}]`))
	}))
	defer srv.Close()

	var dest []struct {
		Sequence int `json:"sequence"`
	}
	err := fast(srv.URL+"/", "key-1").GetJSON(context.Background(), "/FIFO", url.Values{"limit": {"2"}}, &dest)
	require.NoError(t, err)
	assert.Len(t, dest, 2)
	assert.Equal(t, "Bearer key-1", gotAuth)
	assert.Equal(t, "limit=2", gotQuery)
	assert.Equal(t, "/FIFO", gotPath)
}

func TestNoTokenNoAuthHeader(t *testing.T) {
	var hadAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	require.NoError(t, fast(srv.URL, "").GetJSON(context.Background(), "/", nil, &struct{}{}))
	assert.False(t, hadAuth)
}

func TestPostJSON(t *testing.T) {
	var got map[string]any
	var ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := fast(srv.URL, "k").PostJSON(context.Background(), "/FIFO", map[string]any{"site": "north"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", ctype)
	assert.Equal(t, "north", got["site"])
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`bad key`))
	}))
	defer srv.Close()

	err := fast(srv.URL, "k").GetJSON(context.Background(), "/", nil, &struct{}{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad key", apiErr.Body)
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var dest struct{ OK bool }
	require.NoError(t, fast(srv.URL, "k").GetJSON(context.Background(), "/", nil, &dest))
	assert.True(t, dest.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryAfterHonored(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	start := time.Now()
	require.NoError(t, fast(srv.URL, "k").GetJSON(context.Background(), "/", nil, &struct{}{}))
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestMaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(srv.URL, "k", WithBackoff(time.Millisecond), WithMaxRetries(2)).GetJSON(context.Background(), "/", nil, &struct{}{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(srv.URL, "k", WithBackoff(time.Hour)).GetJSON(ctx, "/", nil, &struct{}{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmptyPathUsesBaseURLVerbatim(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, fast(srv.URL+"/ingest/", "").PostJSON(context.Background(), "", map[string]int{"a": 1}, nil))
	assert.Equal(t, "/ingest/", gotPath)

	require.NoError(t, fast(srv.URL+"/api/", "").PostJSON(context.Background(), "/FIFO", map[string]int{"a": 1}, nil))
	assert.Equal(t, "/api/FIFO", gotPath)
}

func TestRetryAfterCapped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "86400")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", WithBackoff(time.Millisecond), WithMaxDelay(20*time.Millisecond))
	start := time.Now()
	require.NoError(t, c.GetJSON(context.Background(), "/", nil, &struct{}{}))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(2), calls.Load())
}
