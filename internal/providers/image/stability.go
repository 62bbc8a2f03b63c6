package image

import (
	"context"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/stability"
)

type stabilityClient interface {
	Generate(ctx context.Context, req stability.ImageRequest) (*stability.ImageStream, error)
}

// StabilityGenerator renders with Stable Image Core, which streams binary png.
type StabilityGenerator struct {
	client stabilityClient
}

func NewStabilityGenerator(client stabilityClient) *StabilityGenerator {
	return &StabilityGenerator{client: client}
}

func (g *StabilityGenerator) ID() domain.ProviderID { return domain.ProviderStability }

func (g *StabilityGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	native := nativeFromBag(params, domain.ProviderStability)
	stream, err := g.client.Generate(ctx, stability.ImageRequest{
		Prompt:       prompt,
		AspectRatio:  pickAspectRatio(params, "1:1"),
		StylePreset:  native.StylePreset,
		OutputFormat: "png",
	})
	if err != nil {
		return nil, tagProvider(g.ID(), err)
	}
	defer stream.Body.Close()
	return finish(ctx, g.ID(), "stable-image-core", prompt, "", imageref.Raw{Value: stream.Body, MIMEType: stream.MIMEType})
}

var _ Generator = (*StabilityGenerator)(nil)
