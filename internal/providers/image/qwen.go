package image

import (
	"context"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/qwen"
)

type qwenImageClient interface {
	GenerateImage(context.Context, qwen.ImageRequest) (*qwen.ImageResult, error)
	Model() string
}

// QwenGenerator renders through DashScope's Qwen image model.
type QwenGenerator struct {
	client qwenImageClient
}

func NewQwenGenerator(client qwenImageClient) *QwenGenerator {
	return &QwenGenerator{client: client}
}

func (g *QwenGenerator) ID() domain.ProviderID { return domain.ProviderQwen }

// Generate fulfils the Generator interface.
func (g *QwenGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	native := nativeFromBag(params, domain.ProviderQwen)
	result, err := g.client.GenerateImage(ctx, qwen.ImageRequest{
		Prompt:       withSuffix(prompt, native.PromptSuffix),
		Size:         qwenSize(pickAspectRatio(params, "1:1")),
		PromptExtend: native.PromptExtend,
	})
	if err != nil {
		return nil, tagProvider(g.ID(), err)
	}
	return finish(ctx, g.ID(), g.client.Model(), prompt, "", imageref.Raw{Value: result.URL})
}

var _ Generator = (*QwenGenerator)(nil)
