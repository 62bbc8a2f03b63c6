package image

import (
	"context"
	"strings"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/openai"
)

type openAIImagesClient interface {
	GenerateImages(ctx context.Context, req openai.ImageRequest) ([]openai.ImageData, error)
}

// DalleGenerator renders with dall-e-3. Output arrives as a hosted URL.
type DalleGenerator struct {
	client openAIImagesClient
	model  string
}

func NewDalleGenerator(client openAIImagesClient, model string) *DalleGenerator {
	if strings.TrimSpace(model) == "" {
		model = "dall-e-3"
	}
	return &DalleGenerator{client: client, model: model}
}

func (g *DalleGenerator) ID() domain.ProviderID { return domain.ProviderDalle }

func (g *DalleGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	native := nativeFromBag(params, domain.ProviderDalle)
	quality, style := native.Quality, native.Style
	if q := params.Quality(); q == "standard" || q == "hd" {
		quality = q
	}
	if s := params.Style(); s == "natural" || s == "vivid" {
		style = s
	}
	data, err := g.client.GenerateImages(ctx, openai.ImageRequest{
		Model:          g.model,
		Prompt:         prompt,
		N:              1,
		Size:           pickSize(params, dalleSizes),
		Quality:        quality,
		Style:          style,
		ResponseFormat: "url",
	})
	if err != nil {
		return nil, tagProvider(g.ID(), err)
	}
	if len(data) == 0 {
		return nil, domain.EmptyResult(string(g.ID()), "images response carried no data")
	}
	first := data[0]
	var value any = first.URL
	if first.URL == "" && first.B64JSON != "" {
		value = first.B64JSON
	}
	return finish(ctx, g.ID(), g.model, prompt, strings.TrimSpace(first.RevisedPrompt), imageref.Raw{Value: value, MIMEType: "image/png"})
}

// GPTImageGenerator renders with gpt-image-1, which always answers with bare
// base64 png data.
type GPTImageGenerator struct {
	client openAIImagesClient
	model  string
}

func NewGPTImageGenerator(client openAIImagesClient, model string) *GPTImageGenerator {
	if strings.TrimSpace(model) == "" {
		model = "gpt-image-1"
	}
	return &GPTImageGenerator{client: client, model: model}
}

func (g *GPTImageGenerator) ID() domain.ProviderID { return domain.ProviderGPTImage }

func (g *GPTImageGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	native := nativeFromBag(params, domain.ProviderGPTImage)
	quality := native.Quality
	switch q := params.Quality(); q {
	case "low", "medium", "high", "auto":
		quality = q
	}
	data, err := g.client.GenerateImages(ctx, openai.ImageRequest{
		Model:   g.model,
		Prompt:  withSuffix(prompt, native.PromptSuffix),
		N:       1,
		Size:    pickSize(params, gptImageSizes),
		Quality: quality,
	})
	if err != nil {
		return nil, tagProvider(g.ID(), err)
	}
	if len(data) == 0 {
		return nil, domain.EmptyResult(string(g.ID()), "images response carried no data")
	}
	first := data[0]
	var value any = first.B64JSON
	if first.B64JSON == "" && first.URL != "" {
		value = first.URL
	}
	return finish(ctx, g.ID(), g.model, prompt, strings.TrimSpace(first.RevisedPrompt), imageref.Raw{Value: value, MIMEType: "image/png"})
}

var (
	_ Generator = (*DalleGenerator)(nil)
	_ Generator = (*GPTImageGenerator)(nil)
)
