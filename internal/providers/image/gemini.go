package image

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/gemini"
)

// Materializer resolves a canonical reference into bytes.
type Materializer interface {
	Materialize(ctx context.Context, ref string) ([]byte, string, error)
}

// GeminiGenerator renders with a Gemini image model. Companion images are
// optional and are sent as inline parts after the prompt.
type GeminiGenerator struct {
	models  gemini.ContentGenerator
	fetcher Materializer
	model   string
}

func NewGeminiGenerator(models gemini.ContentGenerator, fetcher Materializer, model string) *GeminiGenerator {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash-image"
	}
	return &GeminiGenerator{models: models, fetcher: fetcher, model: model}
}

func (g *GeminiGenerator) ID() domain.ProviderID { return domain.ProviderGemini }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	refs, err := companionImages(g.ID(), Companions{Min: 0, Max: 3}, params)
	if err != nil {
		return nil, err
	}
	native := nativeFromBag(params, domain.ProviderGemini)
	text := withSuffix(prompt, native.PromptSuffix)
	if ar := pickAspectRatio(params, ""); ar != "" {
		text = fmt.Sprintf("%s\nAspect ratio: %s.", text, ar)
	}
	parts := []*genai.Part{{Text: text}}
	for i, ref := range refs {
		data, mime, err := g.fetcher.Materialize(ctx, ref)
		if err != nil {
			return nil, companionFetchError(g.ID(), i, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}})
	}

	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	)
	if err != nil {
		return nil, tagProvider(g.ID(), gemini.ClassifyError(string(g.ID()), err))
	}
	if reason, blocked := gemini.Blocked(resp); blocked {
		e := domain.ClassifyHTTP(string(g.ID()), http.StatusBadRequest, reason)
		e.ContentPolicy = true
		return nil, e
	}
	blob := firstInlineImage(resp)
	if blob == nil {
		return nil, domain.EmptyResult(string(g.ID()), gemini.Text(resp))
	}
	return finish(ctx, g.ID(), g.model, prompt, "", imageref.Raw{Value: blob.Data, MIMEType: blob.MIMEType})
}

func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData
			}
		}
	}
	return nil
}

var _ Generator = (*GeminiGenerator)(nil)
