// Package stability calls the Stability AI stable-image REST API.
package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
)

const providerName = "stability"

var ErrMissingAPIKey = errors.New("stability: api key is required")

type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImageRequest holds the multipart fields of a core generation call.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	StylePreset    string
	OutputFormat   string
	Seed           int
}

// ImageStream is an undrained image body. The caller must close Body.
type ImageStream struct {
	Body         io.ReadCloser
	MIMEType     string
	Seed         string
	FinishReason string
}

type errorResponse struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
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
		baseURL = "https://api.stability.ai"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate posts a core generation request and returns the raw image stream.
func (c *Client) Generate(ctx context.Context, req ImageRequest) (*ImageStream, error) {
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.KindUpstreamRejected, Provider: providerName, Message: "missing api key", Err: ErrMissingAPIKey}
	}
	format := req.OutputFormat
	if format == "" {
		format = "png"
	}
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [][2]string{
		{"prompt", strings.TrimSpace(req.Prompt)},
		{"negative_prompt", strings.TrimSpace(req.NegativePrompt)},
		{"aspect_ratio", req.AspectRatio},
		{"style_preset", req.StylePreset},
		{"output_format", format},
	}
	if req.Seed > 0 {
		fields = append(fields, [2]string{"seed", fmt.Sprint(req.Seed)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("stability: write field %s: %w", f[0], err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("stability: close form: %w", err)
	}

	endpoint := c.baseURL + "/v2beta/stable-image/generate/core"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("stability: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ClassifyTransport(providerName, fmt.Errorf("http request: %w", err))
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		message := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && len(detail.Errors) > 0 {
			message = fmt.Sprintf("%s: %s", detail.Name, strings.Join(detail.Errors, "; "))
		}
		return nil, domain.ClassifyHTTP(providerName, resp.StatusCode, message)
	}
	finish := resp.Header.Get("Finish-Reason")
	if strings.EqualFold(finish, "CONTENT_FILTERED") {
		resp.Body.Close()
		e := domain.ClassifyHTTP(providerName, http.StatusUnprocessableEntity, "output blocked by content moderation")
		e.ContentPolicy = true
		return nil, e
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/" + format
	}
	c.logger.Debug().Str("finish_reason", finish).Str("seed", resp.Header.Get("Seed")).Msg("stability: image stream opened")
	return &ImageStream{
		Body:         resp.Body,
		MIMEType:     mime,
		Seed:         resp.Header.Get("Seed"),
		FinishReason: finish,
	}, nil
}
