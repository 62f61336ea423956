// Package completion talks to an OpenAI compatible chat completion endpoint
// (OpenRouter by default).
package completion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

var (
	ErrNoChoices    = errors.New("completion: response has no choices")
	ErrEmptyContent = errors.New("completion: empty message content")
)

type Client struct {
	base  string
	token string
	model string
	http  *http.Client
	chat  *openai.Client
}

// New builds a client for base (".../api/v1"). Timeouts are applied per
// request through the context, so the underlying http.Client has none.
func New(base, token, model string) *Client {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := &http.Client{}
	cfg := openai.DefaultConfig(token)
	cfg.BaseURL = base
	cfg.HTTPClient = hc
	return &Client{
		base:  base,
		token: token,
		model: model,
		http:  hc,
		chat:  openai.NewClientWithConfig(cfg),
	}
}

func (c *Client) Model() string { return c.model }

// Chat sends a system instruction plus one user message and returns the
// assistant content of the first choice, untrimmed.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	log.Debug().Str("model", c.model).Int("chars", len(content)).Msg("completion: chat reply")
	return content, nil
}

// go-openai has no input_audio content part, so audio requests use these.
type audioRequest struct {
	Model    string         `json:"model"`
	Messages []audioMessage `json:"messages"`
}

type audioMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type inputAudio struct {
	Data   string `json:"audio"`
	Format string `json:"format"`
}

// Envelope is the subset of a chat completion response the pipeline reads.
// Content is a pointer so a missing field is distinguishable from "".
type Envelope struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Content returns the first choice's message content.
func (e Envelope) Content() (string, error) {
	if e.Error != nil && e.Error.Message != "" {
		return "", fmt.Errorf("completion: %s", e.Error.Message)
	}
	if len(e.Choices) == 0 {
		return "", ErrNoChoices
	}
	c := e.Choices[0].Message.Content
	if c == nil || strings.TrimSpace(*c) == "" {
		return "", ErrEmptyContent
	}
	return *c, nil
}

// ChatAudio sends raw audio inline (base64) with a system instruction and
// returns the assistant content, untrimmed.
func (c *Client) ChatAudio(ctx context.Context, system string, audio []byte, format string) (string, error) {
	payload := audioRequest{
		Model: c.model,
		Messages: []audioMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: []contentPart{{
				Type: "input_audio",
				InputAudio: &inputAudio{
					Data:   base64.StdEncoding.EncodeToString(audio),
					Format: format,
				},
			}}},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	log.Debug().Int("audio_bytes", len(audio)).Int("payload_bytes", len(b)).Msg("completion: sending audio")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return env.Content()
}
