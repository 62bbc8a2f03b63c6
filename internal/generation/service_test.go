package generation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/image"
)

type stubGenerator struct {
	id         domain.ProviderID
	result     *domain.GenerationResult
	err        error
	calls      int
	lastPrompt string
	block      bool
}

func (s *stubGenerator) ID() domain.ProviderID { return s.id }

func (s *stubGenerator) Generate(ctx context.Context, prompt string, params domain.ParameterBag) (*domain.GenerationResult, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.block {
		<-ctx.Done()
		return nil, domain.ClassifyTransport(string(s.id), ctx.Err())
	}
	return s.result, s.err
}

type stubRecorder struct {
	outcomes []string
}

func (r *stubRecorder) ObserveGeneration(provider, outcome string, elapsed time.Duration) {
	r.outcomes = append(r.outcomes, provider+":"+outcome)
}

func TestGenerateValidatesBeforeDispatch(t *testing.T) {
	gen := &stubGenerator{id: domain.ProviderFlux}
	svc := NewService(Options{Registry: image.NewRegistry(gen)})

	cases := []struct {
		name  string
		req   domain.GenerationRequest
		field string
	}{
		{"empty prompt", domain.GenerationRequest{Prompt: "   ", ProviderID: domain.ProviderFlux}, "prompt"},
		{"long prompt", domain.GenerationRequest{Prompt: strings.Repeat("ä", domain.MaxPromptLength+1), ProviderID: domain.ProviderFlux}, "prompt"},
		{"unknown provider", domain.GenerationRequest{Prompt: "x", ProviderID: "midjourney"}, "provider"},
		{"unconfigured provider", domain.GenerationRequest{Prompt: "x", ProviderID: domain.ProviderQwen}, "provider"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), tc.req)
			de, ok := domain.AsError(err)
			require.True(t, ok)
			assert.Equal(t, domain.KindValidation, de.Kind)
			assert.Equal(t, tc.field, de.Field)
		})
	}
	assert.Zero(t, gen.calls)
}

func TestGenerateAcceptsMaxLengthPrompt(t *testing.T) {
	gen := &stubGenerator{id: domain.ProviderFlux, result: &domain.GenerationResult{CanonicalImageRef: "https://x.test/a.png"}}
	svc := NewService(Options{Registry: image.NewRegistry(gen)})
	_, err := svc.Generate(context.Background(), domain.GenerationRequest{Prompt: strings.Repeat("a", domain.MaxPromptLength), ProviderID: domain.ProviderFlux})
	require.NoError(t, err)
}

func TestGenerateTrimsPromptAndRecords(t *testing.T) {
	gen := &stubGenerator{id: domain.ProviderDalle, result: &domain.GenerationResult{CanonicalImageRef: "https://x.test/a.png", Model: "dall-e-3"}}
	rec := &stubRecorder{}
	svc := NewService(Options{Registry: image.NewRegistry(gen), Metrics: rec})

	res, err := svc.Generate(context.Background(), domain.GenerationRequest{Prompt: "  a red bicycle ", ProviderID: domain.ProviderDalle})
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/a.png", res.CanonicalImageRef)
	assert.Equal(t, "a red bicycle", gen.lastPrompt)
	assert.Equal(t, []string{"dalle-3:ok"}, rec.outcomes)
}

func TestGenerateTimeoutIsUnavailable(t *testing.T) {
	gen := &stubGenerator{id: domain.ProviderStability, block: true}
	rec := &stubRecorder{}
	svc := NewService(Options{Registry: image.NewRegistry(gen), Timeout: 10 * time.Millisecond, Metrics: rec})

	_, err := svc.Generate(context.Background(), domain.GenerationRequest{Prompt: "x", ProviderID: domain.ProviderStability})
	assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	assert.Equal(t, []string{"stability:upstream_unavailable"}, rec.outcomes)
}

func TestGenerateNilResultIsEmpty(t *testing.T) {
	gen := &stubGenerator{id: domain.ProviderQwen}
	svc := NewService(Options{Registry: image.NewRegistry(gen)})
	_, err := svc.Generate(context.Background(), domain.GenerationRequest{Prompt: "x", ProviderID: domain.ProviderQwen})
	assert.Equal(t, domain.KindEmptyResult, domain.KindOf(err))
}
