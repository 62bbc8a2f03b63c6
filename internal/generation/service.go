// Package generation validates generation requests and dispatches them to the
// selected provider adapter.
package generation

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/metrics"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/image"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 120 * time.Second

// Lookup resolves a ProviderID to its adapter.
type Lookup interface {
	Get(id domain.ProviderID) (image.Generator, error)
}

// Recorder receives one observation per dispatched call.
type Recorder interface {
	ObserveGeneration(provider, outcome string, elapsed time.Duration)
}

type Options struct {
	Registry Lookup
	Timeout  time.Duration
	Logger   *infra.Logger
	Metrics  Recorder
}

// Service is stateless; it is safe for concurrent use.
type Service struct {
	registry Lookup
	timeout  time.Duration
	logger   *infra.Logger
	metrics  Recorder
}

func NewService(opts Options) *Service {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Service{registry: opts.Registry, timeout: timeout, logger: logger, metrics: opts.Metrics}
}

// Generate validates req, picks the adapter and runs it under the per-call
// timeout. Validation failures never reach a provider.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	gen, err := s.registry.Get(req.ProviderID)
	if err != nil {
		return nil, err
	}
	id := gen.ID()
	prompt := strings.TrimSpace(req.Prompt)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := gen.Generate(callCtx, prompt, req.Params)
	elapsed := time.Since(start)
	if err == nil && result == nil {
		err = domain.EmptyResult(string(id), "adapter returned no result")
	}
	if err != nil {
		if callCtx.Err() != nil && domain.KindOf(err) == "" {
			err = domain.ClassifyTransport(string(id), callCtx.Err())
		}
		kind := domain.KindOf(err)
		s.observe(id, string(kind), err, elapsed)
		event := s.logger.Warn()
		if kind == domain.KindUpstreamUnavailable || kind == domain.KindEmptyResult || kind == "" {
			event = s.logger.Error()
		}
		event.Err(err).
			Str("provider", string(id)).
			Str("error_kind", string(kind)).
			Dur("elapsed", elapsed).
			Msg("generation: provider call failed")
		return nil, err
	}

	s.observe(id, "", nil, elapsed)
	s.logger.Info().
		Str("provider", string(id)).
		Str("model", result.Model).
		Bool("data_ref", strings.HasPrefix(result.CanonicalImageRef, "data:")).
		Dur("elapsed", elapsed).
		Msg("generation: image generated")
	return result, nil
}

func (s *Service) observe(id domain.ProviderID, kind string, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveGeneration(string(id), metrics.Outcome(kind, err), elapsed)
}
