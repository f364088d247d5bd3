package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linktree-ai-go/internal/config"
)

type sinkWriter struct {
	chunks []string
}

func (w *sinkWriter) WriteMessage(_ int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

func newTestLLMClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(config.LLMConfig{
		APIKey:      "test-key",
		BaseURL:     ts.URL,
		Temperature: 0.1,
		MaxTokens:   256,
	})
}

func TestCompleteReturnsAnswer(t *testing.T) {
	var captured chatRequest
	client := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "the answer"}},
			},
		})
	})

	answer, err := client.Complete(context.Background(), "economy-model", []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "question"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	assert.Equal(t, "economy-model", captured.Model)
	assert.False(t, captured.Stream)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.1, *captured.Temperature, 1e-9)
	require.NotNil(t, captured.MaxTokens)
	assert.Equal(t, 256, *captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := client.Complete(context.Background(), "m", []Message{{Role: "user", Content: "q"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteUpstreamError(t *testing.T) {
	client := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), "m", []Message{{Role: "user", Content: "q"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}

func TestStreamChatForwardsDeltas(t *testing.T) {
	client := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hello", ", ", "world"} {
			chunk, _ := json.Marshal(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"delta": map[string]string{"content": delta}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"never sent\"}}]}\n\n")
	})

	writer := &sinkWriter{}
	err := client.StreamChat(context.Background(), "m", []Message{{Role: "user", Content: "q"}}, writer)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", ", ", "world"}, writer.chunks)
}

func TestStreamChatSkipsMalformedChunks(t *testing.T) {
	client := newTestLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	writer := &sinkWriter{}
	err := client.StreamChat(context.Background(), "m", []Message{{Role: "user", Content: "q"}}, writer)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, writer.chunks)
}
