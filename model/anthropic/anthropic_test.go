package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/agentswarm/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "ahoy"}],
			"stop_reason": "stop_sequence",
			"stop_sequence": ">",
			"usage": {"input_tokens": 7, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))
	g := NewGeneratorFromClient(&client)

	resp, err := g.Generate(context.Background(), model.Request{Prompt: "hi", Stop: []string{">", " "}, MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "ahoy", resp.Text)
	assert.Equal(t, "stop_sequence", resp.FinishReason)
	assert.Equal(t, int64(9), resp.Usage.TotalTokens)

	assert.Equal(t, []any{">"}, body["stop_sequences"], "whitespace-only stops are dropped")
	assert.Equal(t, float64(50), body["max_tokens"])
}

func TestInfo(t *testing.T) {
	g := NewGenerator(func(o *Options) { o.APIKey = "k" })
	assert.Equal(t, "anthropic", g.Info().Provider)
	assert.NotEmpty(t, g.Info().Name)
}
