package openaihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_Complete_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer demo", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "user", req.Messages[1].Role)
		require.Equal(t, 500, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", "")
	out, err := c.Complete(context.Background(), "you are helpful", "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", out)
}

func TestClient_Complete_RetriesOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", "")
	out, err := c.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, int32(2), calls.Load())
}

func TestClient_Complete_NonRetryableStops(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", "")
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad key")
	require.Equal(t, int32(1), calls.Load())
}

func TestClient_Complete_MissingKey(t *testing.T) {
	c := New("http://localhost:0", "", "")
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}
