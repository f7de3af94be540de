// Package ai talks to the chat completion API that voices NPCs.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Turn is one line of a conversation transcript.
type Turn struct {
	Author  string
	Content string
	IsNPC   bool
}

// Reply is what the NPC answers, together with the evaluation of the last
// player message.
type Reply struct {
	Response             string `json:"response"`
	IsMeaningfulQuestion bool   `json:"isMeaningfulQuestion"`
}

// Responder produces NPC replies.
type Responder interface {
	Respond(ctx context.Context, history []Turn, npcName, playerName string) (*Reply, error)
}

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("ai: empty response")

// Config holds client settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Client implements Responder on top of the OpenAI chat completions API.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New builds a client. An empty API key is an error so callers can
// disable NPC chat instead.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: api key is not set")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 200
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

const systemPrompt = `You are %s, a knowledgeable and approachable university professor. You are passionate about teaching and helping students learn. Your responses should be:
- Professional yet friendly and encouraging
- Clear and educational, explaining concepts thoroughly
- Supportive and patient with students
- Concise but comprehensive (aim for 2-4 sentences unless more detail is needed)

You are in a virtual office space where students can approach you for help with their studies, course questions, academic guidance, or general mentorship. The student talking to you is called %s.

Answer with a JSON object of the form {"response": string, "isMeaningfulQuestion": boolean}. Set isMeaningfulQuestion to true only when the student's latest message is a genuine question about a learning topic, not small talk or a greeting.`

// Respond asks the model for the next NPC line.
func (c *Client) Respond(ctx context.Context, history []Turn, npcName, playerName string) (*Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPrompt, npcName, playerName),
	})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.IsNPC {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return parseReply(resp.Choices[0].Message.Content)
}

// parseReply decodes the structured answer. Plain text is accepted as a
// reply that is not meaningful.
func parseReply(content string) (*Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}
	var reply Reply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return &Reply{Response: content}, nil
	}
	if strings.TrimSpace(reply.Response) == "" {
		return nil, ErrEmptyResponse
	}
	return &reply, nil
}
