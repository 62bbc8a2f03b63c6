// Package vision adapts vision-capable language models to a single
// Complete(system, parts) call.
package vision

import (
	"context"
	"strings"

	"google.golang.org/genai"
	"golang.org/x/sync/errgroup"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/gemini"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/openai"
)

// Part is either text or a canonical image reference.
type Part struct {
	Text     string
	ImageRef string
}

// Completer returns the model's free-text reply.
type Completer interface {
	Complete(ctx context.Context, system string, parts []Part) (string, error)
}

type chatClient interface {
	ChatCompletion(ctx context.Context, req openai.ChatRequest) (string, error)
}

// OpenAICompleter sends images as image_url parts; OpenAI accepts both http
// URLs and data references there, so nothing is fetched locally.
type OpenAICompleter struct {
	client chatClient
	model  string
}

func NewOpenAICompleter(client chatClient, model string) *OpenAICompleter {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o"
	}
	return &OpenAICompleter{client: client, model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system string, parts []Part) (string, error) {
	content := make([]openai.ContentPart, 0, len(parts))
	for _, p := range parts {
		if p.ImageRef != "" {
			content = append(content, openai.ContentPart{Type: "image_url", ImageURL: &openai.ImageURL{URL: p.ImageRef, Detail: "high"}})
			continue
		}
		content = append(content, openai.ContentPart{Type: "text", Text: p.Text})
	}
	return c.client.ChatCompletion(ctx, openai.ChatRequest{
		Model:          c.model,
		Temperature:    0.2,
		MaxTokens:      1200,
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
		Messages: []openai.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
	})
}

// Materializer resolves a canonical reference into bytes.
type Materializer interface {
	Materialize(ctx context.Context, ref string) ([]byte, string, error)
}

// GeminiCompleter inlines image bytes, so every image part is materialized
// first. Fetches run concurrently.
type GeminiCompleter struct {
	models  gemini.ContentGenerator
	fetcher Materializer
	model   string
}

func NewGeminiCompleter(models gemini.ContentGenerator, fetcher Materializer, model string) *GeminiCompleter {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiCompleter{models: models, fetcher: fetcher, model: model}
}

func (c *GeminiCompleter) Complete(ctx context.Context, system string, parts []Part) (string, error) {
	out := make([]*genai.Part, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		if p.ImageRef == "" {
			out[i] = &genai.Part{Text: p.Text}
			continue
		}
		g.Go(func() error {
			data, mime, err := c.fetcher.Materialize(gctx, p.ImageRef)
			if err != nil {
				return err
			}
			out[i] = &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	temperature := float32(0.2)
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: "user", Parts: out}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			ResponseMIMEType:  "application/json",
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return "", gemini.ClassifyError("gemini", err)
	}
	if reason, blocked := gemini.Blocked(resp); blocked {
		return "", gemini.ClassifyError("gemini", genai.APIError{Code: 400, Message: reason, Status: "BLOCKED"})
	}
	return gemini.Text(resp), nil
}

var (
	_ Completer = (*OpenAICompleter)(nil)
	_ Completer = (*GeminiCompleter)(nil)
)
