// Package upstream adapts the model provider's streaming chat-completion API
// onto the relay's Source interface.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkorolev/sitegate/pkg/config"
	"github.com/mkorolev/sitegate/pkg/relay"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

type Client struct {
	cfg     config.UpstreamConfig
	api     *openai.Client
	persona string
}

// NewClient builds the provider client. persona is prepended as a system
// message when the caller supplies none; empty persona disables that.
func NewClient(cfg config.UpstreamConfig, persona string) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	return &Client{
		cfg:     cfg,
		api:     openai.NewClientWithConfig(oc),
		persona: persona,
	}
}

// Open starts the streaming completion and returns a relay.Source over it.
func (c *Client) Open(ctx context.Context, req Request) (relay.Source, error) {
	msgs := c.withPersona(req.Messages)
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    out,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create completion stream: %w", err)
	}
	return &openaiSource{stream: stream}, nil
}

func (c *Client) withPersona(msgs []Message) []Message {
	if c.persona == "" {
		return msgs
	}
	for _, m := range msgs {
		if m.Role == openai.ChatMessageRoleSystem {
			return msgs
		}
	}
	withSys := make([]Message, 0, len(msgs)+1)
	withSys = append(withSys, Message{Role: openai.ChatMessageRoleSystem, Content: c.persona})
	return append(withSys, msgs...)
}

type openaiSource struct {
	stream *openai.ChatCompletionStream
}

// Next skips empty deltas so the relay only sees real content increments.
// The SDK already drops malformed lines and maps the end sentinel to io.EOF.
func (s *openaiSource) Next(context.Context) (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *openaiSource) Close() error {
	return s.stream.Close()
}
