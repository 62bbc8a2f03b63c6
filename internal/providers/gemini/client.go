// Package gemini builds google.golang.org/genai clients and maps their
// failures into the domain error taxonomy.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// ContentGenerator is the subset of *genai.Models the service calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// NewModels returns the Models service of a Gemini API client.
func NewModels(ctx context.Context, opts Options) (ContentGenerator, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return client.Models, nil
}

// ClassifyError maps a genai failure onto the taxonomy. APIError carries the
// HTTP status; everything else is treated as a transport failure.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return domain.ClassifyHTTP(provider, apiErr.Code, apiMessage(apiErr))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return domain.ClassifyHTTP(provider, apiErrPtr.Code, apiMessage(*apiErrPtr))
	}
	return domain.ClassifyTransport(provider, err)
}

func apiMessage(e genai.APIError) string {
	if e.Status != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Status)
	}
	return e.Message
}

var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"IMAGE_SAFETY":       true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
	"RECITATION":         true,
}

// Blocked reports a content-policy refusal carried inside a successful
// response: a prompt-level block or a safety finish reason.
func Blocked(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "prompt blocked: " + string(fb.BlockReason), true
	}
	for _, c := range resp.Candidates {
		if c == nil {
			continue
		}
		if reason := string(c.FinishReason); blockedFinishReasons[reason] {
			return "candidate finished with " + reason, true
		}
	}
	return "", false
}

// Text concatenates the text parts of the first candidate.
func Text(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.Text != "" && !p.Thought {
				b.WriteString(p.Text)
			}
		}
		break
	}
	return strings.TrimSpace(b.String())
}
