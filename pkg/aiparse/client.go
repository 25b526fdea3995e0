// Package aiparse extracts a structured proposal from raw OCR text by calling
// an AI-completion service. Two providers are supported: any OpenAI-style
// chat-completion endpoint and the Anthropic API via its SDK.
package aiparse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultModel = "gpt-4o-mini"

// Client performs chat completions for proposal extraction.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config selects and configures a completion provider.
type Config struct {
	Provider string // "openai" (any compatible endpoint) or "anthropic"
	Key      string
	BaseURL  string
	Model    string
}

// NewClient creates a completion client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	if cfg.Key == "" {
		return nil, eris.New("aiparse: provider requires an api key")
	}
	switch cfg.Provider {
	case "openai", "":
		opts := []Option{WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return NewOpenAIClient(cfg.Key, opts...), nil
	case "anthropic":
		return NewAnthropicClient(cfg.Key, cfg.Model), nil
	default:
		return nil, eris.Errorf("aiparse: unknown provider %q", cfg.Provider)
	}
}

// chatRequest is the body for POST /chat/completions.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Option configures the OpenAI-style client.
type Option func(*openAIClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *openAIClient) {
		c.baseURL = u
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *openAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *openAIClient) {
		c.http = hc
	}
}

type openAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible completion API.
func NewOpenAIClient(apiKey string, opts ...Option) Client {
	c := &openAIClient{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		model:   defaultModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *openAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", eris.Wrap(err, "aiparse: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "aiparse: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "aiparse: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "aiparse: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("aiparse: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", eris.Wrap(err, "aiparse: unmarshal response")
	}
	if len(cr.Choices) == 0 {
		return "", eris.New("aiparse: response contained no choices")
	}

	return cr.Choices[0].Message.Content, nil
}
