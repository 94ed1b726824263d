package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/agentswarm/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := openai.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return &client
}

func TestGenerator_Generate(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello\n<"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`)
	})

	g := NewGeneratorFromClient(client)
	resp, err := g.Generate(context.Background(), model.Request{
		Prompt:      "say hello",
		Stop:        []string{">"},
		MaxTokens:   20,
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n<", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, int64(5), resp.Usage.TotalTokens)

	assert.Equal(t, []any{">"}, body["stop"])
	assert.Equal(t, 0.5, body["temperature"])
	assert.Equal(t, float64(20), body["max_completion_tokens"])
}

func TestGenerator_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad"}}`, http.StatusBadRequest)
	})
	_, err := NewGeneratorFromClient(client).Generate(context.Background(), model.Request{Prompt: "x"})
	assert.Error(t, err)
}

func TestBuildParams_StopCap(t *testing.T) {
	g := NewGeneratorFromClient(nil, func(o *Options) { o.System = "be brief" })
	params := g.buildParams(model.Request{Prompt: "p", Stop: []string{"a", "b", "c", "d", "e"}})
	assert.Len(t, params.Stop.OfStringArray, 4)
	assert.Len(t, params.Messages, 2)
	assert.Equal(t, int64(4096), params.MaxCompletionTokens.Value)
}

func TestEmbedder_Embed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	})

	vecs, err := NewEmbedderFromClient(client).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)

	vecs, err = NewEmbedderFromClient(client).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
