package image

import (
	"sort"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

// Catalogue is the published description of every provider.
var Catalogue = map[domain.ProviderID]Descriptor{
	domain.ProviderDalle: {
		ID: domain.ProviderDalle, Model: "dall-e-3",
		Description: "OpenAI DALL-E 3; returns a hosted url and a revised prompt",
		Sizes:       dalleSizes,
	},
	domain.ProviderGPTImage: {
		ID: domain.ProviderGPTImage, Model: "gpt-image-1",
		Description: "OpenAI GPT Image; returns base64 png",
		Sizes:       gptImageSizes,
	},
	domain.ProviderGemini: {
		ID: domain.ProviderGemini, Model: "gemini-2.5-flash-image",
		Description:  "Google Gemini image model; optional reference images",
		Companions:   Companions{Min: 0, Max: 3, Labels: []string{"reference image"}},
		AspectRatios: aspectRatios,
	},
	domain.ProviderQwen: {
		ID: domain.ProviderQwen, Model: "qwen-image-plus",
		Description:  "Alibaba DashScope Qwen image",
		AspectRatios: aspectRatios,
	},
	domain.ProviderStability: {
		ID: domain.ProviderStability, Model: "stable-image-core",
		Description:  "Stability AI Stable Image Core; streams png",
		AspectRatios: aspectRatios,
	},
}

func init() {
	for id, v := range fluxVariants {
		Catalogue[id] = Descriptor{
			ID:           id,
			Model:        v.model,
			Description:  "Replicate " + v.model,
			Companions:   v.companions,
			AspectRatios: aspectRatios,
		}
	}
}

// Registry selects an adapter by ProviderID.
type Registry struct {
	generators map[domain.ProviderID]Generator
}

// NewRegistry indexes gens by ID; nil entries are skipped and a later
// generator replaces an earlier one with the same ID.
func NewRegistry(gens ...Generator) *Registry {
	r := &Registry{generators: make(map[domain.ProviderID]Generator, len(gens))}
	for _, g := range gens {
		if g == nil {
			continue
		}
		r.generators[g.ID()] = g
	}
	return r
}

// Get returns the adapter for id. An unknown or unconfigured provider is a
// validation failure on the provider field.
func (r *Registry) Get(id domain.ProviderID) (Generator, error) {
	parsed, ok := domain.ParseProviderID(string(id))
	if !ok {
		return nil, domain.Validation("provider", "unsupported provider %q", id)
	}
	g, ok := r.generators[parsed]
	if !ok {
		return nil, domain.Validation("provider", "provider %q is not configured", parsed)
	}
	return g, nil
}

// Available lists the descriptors of configured providers in catalogue order.
func (r *Registry) Available() []Descriptor {
	out := make([]Descriptor, 0, len(r.generators))
	for _, id := range domain.AllProviders {
		if _, ok := r.generators[id]; ok {
			out = append(out, Catalogue[id])
		}
	}
	return out
}

// Configured returns the configured ids sorted alphabetically.
func (r *Registry) Configured() []string {
	out := make([]string, 0, len(r.generators))
	for id := range r.generators {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}
