package qwen

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

const providerName = "qwen"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	DefaultSize    string
	Watermark      bool
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope Qwen text-to-image API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	defaultSize string
	watermark   bool
	httpClient  *http.Client
	logger      *infra.Logger
}

// ImageRequest captures the inputs for one generation call.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	PromptExtend   bool
	Seed           int
}

// ImageResult is the remote image location returned by DashScope.
type ImageResult struct {
	URL       string
	RequestID string
	Width     int
	Height    int
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Text string `json:"text,omitempty"`
}

type generationParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	PromptExtend   bool   `json:"prompt_extend"`
	Watermark      bool   `json:"watermark"`
	Seed           *int   `json:"seed,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
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
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image-plus"
	}
	defaultSize := strings.TrimSpace(opts.DefaultSize)
	if defaultSize == "" {
		defaultSize = "1328*1328"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		defaultSize: defaultSize,
		watermark:   opts.Watermark,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// GenerateImage invokes the DashScope API once and returns the image URL.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.KindUpstreamRejected, Provider: providerName, Message: "missing api key", Err: ErrMissingAPIKey}
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.Validation("prompt", "prompt is required")
	}
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = c.defaultSize
	}
	payload := generationRequest{
		Model: c.model,
		Input: generationInput{
			Messages: []generationMessage{{
				Role:    "user",
				Content: []generationContent{{Text: prompt}},
			}},
		},
		Parameters: generationParams{
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			Size:           size,
			PromptExtend:   req.PromptExtend,
			Watermark:      c.watermark,
		},
	}
	if req.Seed > 0 {
		seed := req.Seed
		payload.Parameters.Seed = &seed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}
	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ClassifyTransport(providerName, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ClassifyTransport(providerName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			message = fmt.Sprintf("%s (%s)", detail.Message, detail.Code)
		}
		return nil, domain.ClassifyHTTP(providerName, resp.StatusCode, message)
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.Error{Kind: domain.KindEmptyResult, Provider: providerName, Message: "decode response", Diagnostic: string(raw), Err: err}
	}
	if decoded.Code != "" {
		// DashScope reports some refusals inside a 200 body.
		return nil, domain.ClassifyHTTP(providerName, http.StatusBadRequest, fmt.Sprintf("%s (%s)", decoded.Message, decoded.Code))
	}
	imageURL := firstImageURL(decoded)
	if imageURL == "" {
		return nil, domain.EmptyResult(providerName, string(raw))
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Str("url", imageURL).
		Msg("qwen: generated image")
	return &ImageResult{
		URL:       imageURL,
		RequestID: decoded.RequestID,
		Width:     decoded.Usage.Width,
		Height:    decoded.Usage.Height,
	}, nil
}

func firstImageURL(resp generationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if url := strings.TrimSpace(content.Image); url != "" {
				return url
			}
		}
	}
	return ""
}
