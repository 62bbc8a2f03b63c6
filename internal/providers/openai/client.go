// Package openai wraps the two OpenAI endpoints the service uses: image
// generation and chat completions with image inputs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
)

const providerName = "openai"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("openai: api key is required")

type Options struct {
	APIKey         string
	BaseURL        string
	Organization   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

type Client struct {
	apiKey       string
	baseURL      string
	organization string
	httpClient   *http.Client
	logger       *infra.Logger
}

// ImageRequest mirrors the images/generations body. Zero values are omitted.
type ImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// ImageData is one entry of the images/generations response.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type imageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// ContentPart is a multimodal chat message part.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ChatMessage content is either a string or a []ContentPart.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImages calls images/generations and returns the data entries.
// An empty data array is EmptyResult.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([]ImageData, error) {
	var out imageResponse
	if err := c.post(ctx, "/images/generations", req, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, domain.EmptyResult(providerName, "images response has no data entries")
	}
	c.logger.Debug().Str("model", req.Model).Int("images", len(out.Data)).Msg("openai: images generated")
	return out.Data, nil
}

// ChatCompletion runs a chat completion and returns the first choice text.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	var out chatResponse
	if err := c.post(ctx, "/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", domain.EmptyResult(providerName, "chat response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if !c.HasCredentials() {
		return &domain.Error{Kind: domain.KindUpstreamRejected, Provider: providerName, Message: "missing api key", Err: ErrMissingAPIKey}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ClassifyTransport(providerName, fmt.Errorf("http request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ClassifyTransport(providerName, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return classifyError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.Error{Kind: domain.KindEmptyResult, Provider: providerName, Message: "decode response", Diagnostic: string(raw), Err: err}
	}
	return nil
}

func classifyError(status int, raw []byte) error {
	message := strings.TrimSpace(string(raw))
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		message = detail.Error.Message
		if code, ok := detail.Error.Code.(string); ok && code != "" {
			message = fmt.Sprintf("%s (%s)", message, code)
		}
	}
	return domain.ClassifyHTTP(providerName, status, message)
}
