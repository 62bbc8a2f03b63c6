// Package replicate is a small client for the Replicate predictions API.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
)

const providerName = "replicate"

// ErrMissingToken indicates that the client was configured without an API token.
var ErrMissingToken = errors.New("replicate: api token is required")

// Options configures the Replicate client.
type Options struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	// WaitSeconds is sent as `Prefer: wait=N`; Replicate caps it at 60.
	WaitSeconds    int
	RequestTimeout time.Duration
}

// Client runs model predictions.
type Client struct {
	token        string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	waitSeconds  int
}

// FileOutput is a lazily-resolved output file. Replicate returns short-lived
// delivery URLs; URL reports an error when the prediction produced none.
type FileOutput struct {
	raw string
}

// URL returns the delivery URL of the file.
func (f *FileOutput) URL() (string, error) {
	if f == nil || strings.TrimSpace(f.raw) == "" {
		return "", errors.New("replicate: file output has no url")
	}
	u, err := url.Parse(strings.TrimSpace(f.raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("replicate: invalid file url %q", f.raw)
	}
	return u.String(), nil
}

type predictionRequest struct {
	Input map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Model  string          `json:"model"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with defaults for base URL and polling.
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
		baseURL = "https://api.replicate.com/v1"
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	wait := opts.WaitSeconds
	if wait <= 0 || wait > 60 {
		wait = 60
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		token:        strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: poll,
		waitSeconds:  wait,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.token != ""
}

// Run creates a prediction for model ("owner/name") and blocks until it
// reaches a terminal state or ctx ends. The output is returned with every
// file URL wrapped as a *FileOutput: a single handle or a []any of handles.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (any, error) {
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.KindUpstreamRejected, Provider: providerName, Message: "missing api token", Err: ErrMissingToken}
	}
	model = strings.Trim(strings.TrimSpace(model), "/")
	if strings.Count(model, "/") != 1 {
		return nil, fmt.Errorf("replicate: model must be owner/name, got %q", model)
	}
	body, err := json.Marshal(predictionRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", fmt.Sprintf("wait=%d", c.waitSeconds))

	pred, err := c.do(req)
	if err != nil {
		return nil, err
	}
	for !terminal(pred.Status) {
		if pred.URLs.Get == "" {
			return nil, domain.UpstreamUnavailable(providerName, fmt.Errorf("prediction %s is %s with no polling url", pred.ID, pred.Status))
		}
		select {
		case <-ctx.Done():
			return nil, domain.ClassifyTransport(providerName, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		pollReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, fmt.Errorf("replicate: build poll request: %w", err)
		}
		if pred, err = c.do(pollReq); err != nil {
			return nil, err
		}
	}

	c.logger.Debug().
		Str("model", model).
		Str("prediction_id", pred.ID).
		Str("status", pred.Status).
		Msg("replicate: prediction finished")

	switch pred.Status {
	case "succeeded":
		return decodeOutput(pred.Output)
	default:
		message := errorText(pred.Error)
		if message == "" {
			message = "prediction " + pred.Status
		}
		// Failed predictions return 200 on the wire; NSFW refusals are rejections.
		if domain.IsContentPolicyMessage(message) {
			return nil, domain.ClassifyHTTP(providerName, http.StatusUnprocessableEntity, message)
		}
		return nil, domain.ClassifyHTTP(providerName, http.StatusBadGateway, message)
	}
}

func (c *Client) do(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
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
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			message = detail.Detail
		}
		return nil, domain.ClassifyHTTP(providerName, resp.StatusCode, message)
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, &domain.Error{Kind: domain.KindEmptyResult, Provider: providerName, Message: "decode prediction", Diagnostic: string(raw), Err: err}
	}
	return &pred, nil
}

func terminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

func decodeOutput(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &domain.Error{Kind: domain.KindEmptyResult, Provider: providerName, Message: "decode output", Diagnostic: string(raw), Err: err}
	}
	return wrapFiles(value), nil
}

func wrapFiles(value any) any {
	switch v := value.(type) {
	case string:
		return &FileOutput{raw: v}
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, wrapFiles(item))
		}
		return out
	default:
		return v
	}
}

func errorText(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(e)
	default:
		b, _ := json.Marshal(e)
		return string(b)
	}
}
