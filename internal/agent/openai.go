package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/postforge/postforge/internal/logger"
)

// OpenAIConfig holds the connection settings for an OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	Timeout    time.Duration
}

// OpenAIClient talks to an OpenAI-compatible chat-completions and
// image-generation API.
type OpenAIClient struct {
	client     *resty.Client
	model      string
	imageModel string
	baseURL    string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
	Style  string `json:"style,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.APIKey),
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		baseURL:    cfg.BaseURL,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, inv Invocation) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: inv.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: inv.System},
			{Role: "user", Content: inv.Prompt},
		},
	}
	if inv.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if httpResp.IsError() {
		return "", fmt.Errorf("API returned status %d", httpResp.StatusCode())
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in response")
	}

	content := resp.Choices[0].Message.Content
	logger.Debug().Int("length", len(content)).Msg("Model response received")
	return content, nil
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	body := imageRequest{
		Model:  c.imageModel,
		Prompt: req.Prompt,
		N:      1,
		Size:   req.Size,
		Style:  req.Style,
	}

	var resp imageResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(c.baseURL + "/images/generations")
	if err != nil {
		return "", fmt.Errorf("image API request failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("image API error: %s", resp.Error.Message)
	}
	if httpResp.IsError() {
		return "", fmt.Errorf("image API returned status %d", httpResp.StatusCode())
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("no image URL in response")
	}

	return resp.Data[0].URL, nil
}
