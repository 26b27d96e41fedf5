package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
)

var ErrEmptyCompletion = errors.New("completion returned no text")

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpclient.New(cfg.Timeout)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Complete runs a single system+user chat completion and returns the first
// choice. maxTokens <= 0 uses the configured limit.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	const op = "openai chat completion"
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", &httpclient.RequestError{Op: op, Err: errors.New("api key is not configured")}
	}

	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", payload)
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	body, err := httpclient.Do(c.http, op, req)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(gjson.GetBytes(body, "choices.0.message.content").String())
	if text == "" {
		return "", &httpclient.RequestError{Op: op, Err: ErrEmptyCompletion}
	}
	return text, nil
}
