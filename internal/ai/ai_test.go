package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletions(t *testing.T, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: openai.GPT3Dot5Turbo,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRespondParsesStructuredReply(t *testing.T) {
	var req openai.ChatCompletionRequest
	ts := fakeCompletions(t, `{"response":"Recursion is a function calling itself.","isMeaningfulQuestion":true}`, &req)

	c, err := New(Config{APIKey: "test", BaseURL: ts.URL + "/v1", Temperature: 0.7})
	require.NoError(t, err)

	history := []Turn{
		{Author: "ada", Content: "hello"},
		{Author: "Prof. Laura", Content: "Hi!", IsNPC: true},
		{Author: "ada", Content: "what is recursion?"},
	}
	reply, err := c.Respond(context.Background(), history, "Prof. Laura", "ada")
	require.NoError(t, err)
	assert.True(t, reply.IsMeaningfulQuestion)
	assert.Equal(t, "Recursion is a function calling itself.", reply.Response)

	require.Len(t, req.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Prof. Laura")
	assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[3].Role)
	assert.Equal(t, 200, req.MaxTokens)
}

func TestRespondAcceptsPlainText(t *testing.T) {
	ts := fakeCompletions(t, "Just plain words.", nil)
	c, err := New(Config{APIKey: "test", BaseURL: ts.URL + "/v1"})
	require.NoError(t, err)

	reply, err := c.Respond(context.Background(), []Turn{{Author: "ada", Content: "hi"}}, "Prof. Laura", "ada")
	require.NoError(t, err)
	assert.False(t, reply.IsMeaningfulQuestion)
	assert.Equal(t, "Just plain words.", reply.Response)
}

func TestRespondEmptyContent(t *testing.T) {
	ts := fakeCompletions(t, "  ", nil)
	c, err := New(Config{APIKey: "test", BaseURL: ts.URL + "/v1"})
	require.NoError(t, err)

	_, err = c.Respond(context.Background(), nil, "Prof. Laura", "ada")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRespondServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	c, err := New(Config{APIKey: "test", BaseURL: ts.URL + "/v1"})
	require.NoError(t, err)
	_, err = c.Respond(context.Background(), nil, "Prof. Laura", "ada")
	assert.Error(t, err)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
