package generative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.Endpoint = server.URL
	cfg.APIKey = "test-key"
	cfg.SystemPrompt = "You are a film critic."
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func echoHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		answer := "genre of " + strings.TrimPrefix(req.Messages[1].Content, "Categorize genre: ")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": " " + answer + "\n"}}},
		})
	}
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, echoHandler(t))

	answer, err := client.Complete(context.Background(), "Categorize genre: Heat")
	require.NoError(t, err)
	assert.Equal(t, "genre of Heat", answer)
}

func TestCompleteAllKeepsOrder(t *testing.T) {
	client := newTestClient(t, echoHandler(t))

	prompts := []string{"Categorize genre: Toy Story", "Categorize genre: Jumanji", "Categorize genre: Heat", "Categorize genre: Casino", "Categorize genre: Sabrina"}
	answers, err := client.CompleteAll(context.Background(), prompts)
	require.NoError(t, err)
	assert.Equal(t, []string{"genre of Toy Story", "genre of Jumanji", "genre of Heat", "genre of Casino", "genre of Sabrina"}, answers)
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	echo := echoHandler(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		echo(w, r)
	})

	answer, err := client.Complete(context.Background(), "Categorize genre: Casino")
	require.NoError(t, err)
	assert.Equal(t, "genre of Casino", answer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), "hello")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewClientValidates(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "http://localhost", Model: "m"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRenderPrompt(t *testing.T) {
	props := map[string]any{"title": "Heat", "year": 1995, "note": nil}

	out, err := RenderPrompt("Categorize genre: {title} ({year}){note}", props)
	require.NoError(t, err)
	assert.Equal(t, "Categorize genre: Heat (1995)", out)

	_, err = RenderPrompt("{title} by {director}", props)
	assert.ErrorIs(t, err, ErrMissingProperty)

	out, err = RenderPrompt("no placeholders {}", props)
	require.NoError(t, err)
	assert.Equal(t, "no placeholders {}", out)

	assert.Equal(t, []string{"title", "year"}, Placeholders("{title} {year} {title}"))
}
