package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "aura-asteria-en"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpclient.New(cfg.Timeout)}
}

func (c *Client) ContentType() string {
	return "audio/mpeg"
}

// Synthesize returns mp3 audio for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	const op = "deepgram speak"
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, &httpclient.RequestError{Op: op, Err: errors.New("api key is not configured")}
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal speak request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/speak?model=" + url.QueryEscape(c.cfg.Model)
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("build speak request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Accept", "audio/mpeg")

	audio, err := httpclient.Do(c.http, op, req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, &httpclient.RequestError{Op: op, Err: errors.New("empty audio response")}
	}
	return audio, nil
}
