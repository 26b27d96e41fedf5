package did

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
)

const presenterBase = "https://create-images-results.d-id.com/DefaultPresenters/Noelle_f/"

type Config struct {
	APIKey  string
	BaseURL string
	Voice   string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

type TalkStatus struct {
	Status      enums.VideoStatus
	ResultURL   string
	DurationSec int
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.d-id.com"
	}
	if cfg.Voice == "" {
		cfg.Voice = "en-US-JennyNeural"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpclient.New(cfg.Timeout)}
}

type talkRequest struct {
	Script struct {
		Type     string `json:"type"`
		Input    string `json:"input"`
		Provider struct {
			Type    string `json:"type"`
			VoiceID string `json:"voice_id"`
		} `json:"provider"`
	} `json:"script"`
	Config struct {
		Fluent   bool    `json:"fluent"`
		PadAudio float64 `json:"pad_audio"`
	} `json:"config"`
	SourceURL string `json:"source_url"`
}

// Submit starts a talking-avatar render and returns the provider's talk id.
func (c *Client) Submit(ctx context.Context, text, avatarID string) (string, error) {
	const op = "d-id create talk"
	if err := c.ready(op); err != nil {
		return "", err
	}

	var body talkRequest
	body.Script.Type = "text"
	body.Script.Input = text
	body.Script.Provider.Type = "microsoft"
	body.Script.Provider.VoiceID = c.cfg.Voice
	body.Config.Fluent = true
	body.SourceURL = presenterBase + url.PathEscape(avatarID) + ".jpg"

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal talk request: %w", err)
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/talks", payload)
	if err != nil {
		return "", fmt.Errorf("build talk request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.cfg.APIKey)

	resp, err := httpclient.Do(c.http, op, req)
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(resp, "id").String()
	if id == "" {
		return "", &httpclient.RequestError{Op: op, Err: errors.New("response has no talk id")}
	}
	return id, nil
}

func (c *Client) Poll(ctx context.Context, talkID string) (TalkStatus, error) {
	const op = "d-id get talk"
	if err := c.ready(op); err != nil {
		return TalkStatus{}, err
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, c.cfg.BaseURL+"/talks/"+url.PathEscape(talkID), nil)
	if err != nil {
		return TalkStatus{}, fmt.Errorf("build talk status request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.cfg.APIKey)

	resp, err := httpclient.Do(c.http, op, req)
	if err != nil {
		return TalkStatus{}, err
	}

	fields := gjson.GetManyBytes(resp, "status", "result_url", "duration")
	status := TalkStatus{
		Status:    mapStatus(fields[0].String()),
		ResultURL: fields[1].String(),
	}
	if fields[2].Exists() {
		status.DurationSec = int(math.Round(fields[2].Float()))
	}
	return status, nil
}

func (c *Client) ready(op string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return &httpclient.RequestError{Op: op, Err: errors.New("api key is not configured")}
	}
	return nil
}

func mapStatus(raw string) enums.VideoStatus {
	switch strings.ToLower(raw) {
	case "done":
		return enums.VideoStatusDone
	case "error", "rejected":
		return enums.VideoStatusError
	default:
		return enums.VideoStatusProcessing
	}
}
