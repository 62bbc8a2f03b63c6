package image

import (
	"context"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
)

type replicateRunner interface {
	Run(ctx context.Context, model string, input map[string]any) (any, error)
}

// fluxVariant describes one Replicate-hosted model: what it needs and how its
// input is assembled.
type fluxVariant struct {
	id         domain.ProviderID
	model      string
	companions Companions
	input      func(prompt string, native NativeParams, refs []string, params domain.ParameterBag) map[string]any
}

var fluxVariants = map[domain.ProviderID]fluxVariant{
	domain.ProviderFlux: {
		id:         domain.ProviderFlux,
		model:      "black-forest-labs/flux-dev",
		companions: Companions{Min: 0, Max: 0},
		input: func(prompt string, native NativeParams, _ []string, params domain.ParameterBag) map[string]any {
			return map[string]any{
				"prompt":        withSuffix(prompt, native.PromptSuffix),
				"guidance":      native.Guidance,
				"aspect_ratio":  pickAspectRatio(params, "1:1"),
				"num_outputs":   1,
				"output_format": "png",
			}
		},
	},
	domain.ProviderFluxImg2Img: {
		id:         domain.ProviderFluxImg2Img,
		model:      "black-forest-labs/flux-dev",
		companions: Companions{Min: 1, Max: 1, Labels: []string{"source image"}},
		input: func(prompt string, native NativeParams, refs []string, params domain.ParameterBag) map[string]any {
			return map[string]any{
				"prompt":          prompt,
				"image":           refs[0],
				"prompt_strength": native.PromptStrength,
				"num_outputs":     1,
				"output_format":   "png",
			}
		},
	},
	domain.ProviderFluxMulti: {
		id:         domain.ProviderFluxMulti,
		model:      "flux-kontext-apps/multi-image-kontext-pro",
		companions: Companions{Min: 2, Max: 2, Labels: []string{"first image", "second image"}},
		input: func(prompt string, native NativeParams, refs []string, params domain.ParameterBag) map[string]any {
			return map[string]any{
				"prompt":        withSuffix(prompt, native.PromptSuffix),
				"input_image_1": refs[0],
				"input_image_2": refs[1],
				"aspect_ratio":  pickAspectRatio(params, "match_input_image"),
				"output_format": "png",
			}
		},
	},
	domain.ProviderFluxDepth: {
		id:         domain.ProviderFluxDepth,
		model:      "black-forest-labs/flux-depth-pro",
		companions: Companions{Min: 1, Max: 1, Labels: []string{"depth control image"}},
		input: func(prompt string, native NativeParams, refs []string, _ domain.ParameterBag) map[string]any {
			return map[string]any{
				"prompt":        prompt,
				"control_image": refs[0],
				"guidance":      native.Guidance,
				"output_format": "png",
			}
		},
	},
	domain.ProviderFluxHeadshot: {
		id:         domain.ProviderFluxHeadshot,
		model:      "flux-kontext-apps/professional-headshot",
		companions: Companions{Min: 1, Max: 1, Labels: []string{"portrait"}},
		input: func(_ string, native NativeParams, refs []string, params domain.ParameterBag) map[string]any {
			return map[string]any{
				"input_image":   refs[0],
				"background":    native.Background,
				"aspect_ratio":  pickAspectRatio(params, "1:1"),
				"output_format": "png",
			}
		},
	},
}

// FluxVariants lists the Replicate-hosted ProviderIDs in catalogue order.
func FluxVariants() []domain.ProviderID {
	var out []domain.ProviderID
	for _, id := range domain.AllProviders {
		if _, ok := fluxVariants[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// FluxGenerator runs one Replicate-hosted flux variant.
type FluxGenerator struct {
	runner  replicateRunner
	variant fluxVariant
}

// NewFluxGenerator returns the adapter for id, or nil when id is not a
// Replicate-hosted variant.
func NewFluxGenerator(runner replicateRunner, id domain.ProviderID) *FluxGenerator {
	v, ok := fluxVariants[id]
	if !ok {
		return nil
	}
	return &FluxGenerator{runner: runner, variant: v}
}

func (g *FluxGenerator) ID() domain.ProviderID { return g.variant.id }

func (g *FluxGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	refs, err := companionImages(g.variant.id, g.variant.companions, params)
	if err != nil {
		return nil, err
	}
	native := nativeFromBag(params, g.variant.id)
	out, err := g.runner.Run(ctx, g.variant.model, g.variant.input(prompt, native, refs, params))
	if err != nil {
		return nil, tagProvider(g.variant.id, err)
	}
	return finish(ctx, g.variant.id, g.variant.model, prompt, "", imageref.Raw{Value: out, MIMEType: "image/png"})
}

var _ Generator = (*FluxGenerator)(nil)
