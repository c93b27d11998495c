package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelab/dashkit/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL}, nil)
	require.NoError(t, err)
	return c, server
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	cfg = Config{BaseURL: "http://localhost:8000"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAPIPrefix, cfg.APIPrefix)
	assert.NotZero(t, cfg.Timeout)
}

func TestGetContent(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/content/abc-123", r.URL.Path)
		json.NewEncoder(w).Encode(Content{ID: "abc-123", Title: "First Article"})
	}))

	content, err := c.GetContent(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", content.ID)
	assert.Equal(t, "First Article", content.Title)

	// The request was measured under the "content" endpoint.
	snap := c.Stats().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "content", snap[0].Endpoint)
	assert.Equal(t, int64(1), snap[0].Count)
	assert.Equal(t, int64(0), snap[0].ErrorCount)
}

func TestGetContentNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.GetContent(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	snap := c.Stats().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].ErrorCount)
}

func TestServerErrorIsTransientAndCounted(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.GetContent(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	snap := c.Stats().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].ErrorCount)
	assert.InDelta(t, 100.0, snap[0].ErrorRate, 0.001)
}

func TestNetworkErrorPassesThroughAfterRecording(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close() // connection refused from here on

	c, err := New(Config{BaseURL: url}, nil)
	require.NoError(t, err)

	_, err = c.GetContent(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	snap := c.Stats().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].ErrorCount)
}

func TestSearch(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/content", r.URL.Path)
		assert.Equal(t, "golang", r.URL.Query().Get("search"))
		assert.Equal(t, "tech", r.URL.Query().Get("category"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(SearchResult{Items: []Content{{ID: "a"}, {ID: "b"}}, Total: 2})
	}))

	result, err := c.Search(context.Background(), "golang", "tech", 10)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)

	// Query strings do not leak into the endpoint name.
	snap := c.Stats().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "content", snap[0].Endpoint)
}

func TestGenerate(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/content/generate", r.URL.Path)

		var req GenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "go generics", req.Topic)

		json.NewEncoder(w).Encode(Content{ID: "gen-1", Title: "On Generics", WordCount: 800})
	}))

	content, err := c.Generate(context.Background(), GenerationRequest{Topic: "go generics"})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", content.ID)
}

func TestGenerateRequiresTopic(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	_, err := c.Generate(context.Background(), GenerationRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Validation failures never reach the network.
	assert.Empty(t, c.Stats().Snapshot())
}

func TestSave(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/content/save", r.URL.Path)
		var content Content
		require.NoError(t, json.NewDecoder(r.Body).Decode(&content))
		content.ID = "saved-1"
		json.NewEncoder(w).Encode(content)
	}))

	saved, err := c.Save(context.Background(), &Content{Title: "Draft"})
	require.NoError(t, err)
	assert.Equal(t, "saved-1", saved.ID)
	assert.Equal(t, "Draft", saved.Title)
}

func TestRateLimiterRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, RateLimit: 0.001, RateBurst: 1}, nil)
	require.NoError(t, err)

	// Burst of 1 admits the first call; the second would wait ~17 min,
	// so a cancelled context must fail it fast.
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = c.GetContent(ctx, "a")
	cancel()

	_, err = c.GetContent(ctx, "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRateLimited)
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Content{ID: "abc-123"})
	}))
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, MaxRetries: 3}, nil)
	require.NoError(t, err)

	content, err := c.GetContent(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", content.ID)
	assert.Equal(t, int64(3), calls.Load())

	// Every attempt was measured, failed ones included.
	snap := c.Stats().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(3), snap[0].Count)
	assert.Equal(t, int64(2), snap[0].ErrorCount)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, MaxRetries: 3}, nil)
	require.NoError(t, err)

	_, err = c.GetContent(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, int64(1), calls.Load())
}
