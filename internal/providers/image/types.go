// Package image holds the provider adapters that turn a prompt and a
// ParameterBag into a canonical image reference.
package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
)

// Generator is the contract implemented by all image providers. Every error
// it returns is a *domain.Error.
type Generator interface {
	ID() domain.ProviderID
	Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error)
}

// Companions describes the image inputs a provider needs besides the prompt.
type Companions struct {
	Min    int      `json:"min"`
	Max    int      `json:"max"`
	Labels []string `json:"labels,omitempty"`
}

// Descriptor is the catalogue entry published for a provider.
type Descriptor struct {
	ID           domain.ProviderID `json:"id"`
	Model        string            `json:"model"`
	Description  string            `json:"description"`
	Companions   Companions        `json:"companions"`
	Sizes        []string          `json:"sizes,omitempty"`
	AspectRatios []string          `json:"aspectRatios,omitempty"`
}

// companionImages validates the companion references against the provider's
// requirements without touching the network.
func companionImages(id domain.ProviderID, want Companions, params domain.ParameterBag) ([]string, error) {
	if want.Min == 0 && want.Max == 0 {
		return nil, nil
	}
	refs := params.CompanionImages()
	if len(refs) < want.Min {
		return nil, domain.Validation(domain.ParamCompanionImages, "%s requires %d companion image(s), got %d", id, want.Min, len(refs))
	}
	if want.Max >= 0 && len(refs) > want.Max {
		return nil, domain.Validation(domain.ParamCompanionImages, "%s accepts at most %d companion image(s), got %d", id, want.Max, len(refs))
	}
	for i, ref := range refs {
		if !imageref.IsURL(ref) && !imageref.IsData(ref) {
			return nil, domain.Validation(domain.ParamCompanionImages, "companion image %d is neither an http(s) url nor a data reference", i)
		}
		if imageref.IsData(ref) {
			if _, _, err := imageref.Decode(ref); err != nil {
				return nil, domain.Validation(domain.ParamCompanionImages, "companion image %d: %v", i, err)
			}
		}
	}
	return refs, nil
}

// companionFetchError maps a failed companion download onto the adapter
// taxonomy. A reference the origin refuses with 4xx is the caller's mistake;
// everything else is an unavailable upstream.
func companionFetchError(id domain.ProviderID, index int, err error) error {
	var status *imageref.StatusError
	switch {
	case domain.IsKind(err, domain.KindUnsupportedRef):
		return domain.Validation(domain.ParamCompanionImages, "companion image %d: %v", index, err)
	case errors.As(err, &status) && status.StatusCode >= 400 && status.StatusCode < 500:
		return domain.Validation(domain.ParamCompanionImages, "companion image %d could not be fetched: %v", index, status)
	}
	e := domain.UpstreamUnavailable(string(id), fmt.Errorf("companion image %d: %w", index, err))
	e.Message = fmt.Sprintf("companion image %d could not be fetched", index)
	return e
}

// tagProvider makes sure err is classified and attributed to id.
func tagProvider(id domain.ProviderID, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Kind != domain.KindValidation {
			de.Provider = string(id)
		}
		return err
	}
	return domain.ClassifyTransport(string(id), fmt.Errorf("%s: %w", id, err))
}

// finish normalizes raw output and assembles the result. An empty revised
// prompt falls back to the caller's prompt.
func finish(ctx context.Context, id domain.ProviderID, model, prompt, revised string, raw imageref.Raw) (*domain.GenerationResult, error) {
	raw.Provider = string(id)
	ref, err := imageref.Normalize(ctx, raw)
	if err != nil {
		return nil, tagProvider(id, err)
	}
	if revised == "" {
		revised = prompt
	}
	return &domain.GenerationResult{
		CanonicalImageRef: ref,
		RevisedPrompt:     revised,
		Provider:          id,
		Model:             model,
	}, nil
}
