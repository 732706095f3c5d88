package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reelqueue/platform/pkg/common/logger"
)

// GenerationError is returned for any failed caption generation: transport errors,
// non-2xx responses, undecodable bodies and empty completions.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("caption generation failed: %s: %v", e.Reason, e.Err)
	}
	return "caption generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client generates captions through an OpenAI-compatible chat/completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Generate writes an Instagram caption for a video from its title and description.
func (c *Client) Generate(ctx context.Context, title, description string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := logger.Log.WithFields(map[string]interface{}{
		"req_id": rid,
		"model":  c.cfg.Model,
	})

	body := map[string]interface{}{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": BuildPrompt(title, description)},
		},
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		log.WithError(err).Error("caption request failed")
		return "", &GenerationError{Reason: "request failed", Err: err}
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.WithError(err).Error("caption response undecodable")
		return "", &GenerationError{Reason: "invalid response", Err: err}
	}
	if len(cc.Choices) == 0 {
		return "", &GenerationError{Reason: "no choices in response"}
	}
	text := cleanCaption(cc.Choices[0].Message.Content)
	if text == "" {
		return "", &GenerationError{Reason: "empty completion"}
	}

	log.WithFields(map[string]interface{}{
		"length":     len(text),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("caption generated")
	return text, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
