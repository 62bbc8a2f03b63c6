// Package scoring compares a generated image against a reference image with a
// vision-capable language model and validates the verdict it returns.
package scoring

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/metrics"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/vision"
)

const DefaultTimeout = 60 * time.Second

const systemInstruction = `You are an art director grading how closely a generated image matches a reference image.
Compare composition, subject, color, lighting and style. Answer with one JSON object and nothing else:
{"score": <integer 1-10>, "feedback": "<two or three sentences>", "suggestions": "<how to change the prompt>",
 "strengths": ["..."], "areasForImprovement": ["..."], "helpfulKeywords": ["..."], "suggestedPrompt": "<improved prompt>"}
A score of 10 means the images are practically identical in intent; 1 means unrelated.`

type Recorder interface {
	ObserveScore(outcome string, score int)
}

type Options struct {
	Completer vision.Completer
	// Provider names the completer in errors and logs.
	Provider string
	Timeout  time.Duration
	Logger   *infra.Logger
	Metrics  Recorder
}

// Request carries the two canonical references. Locale steers the language
// of the textual fields; the zero tag means English.
type Request struct {
	ReferenceImage string
	GeneratedImage string
	ReferenceTitle string
	UserPrompt     string
	Locale         language.Tag
}

type Engine struct {
	completer vision.Completer
	provider  string
	timeout   time.Duration
	logger    *infra.Logger
	metrics   Recorder
}

func NewEngine(opts Options) *Engine {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	provider := opts.Provider
	if provider == "" {
		provider = "vision"
	}
	return &Engine{completer: opts.Completer, provider: provider, timeout: timeout, logger: logger, metrics: opts.Metrics}
}

// Score asks the model for a verdict. Transport and provider failures surface
// as UpstreamUnavailable; an unusable reply is MalformedVerdict carrying the
// raw text.
func (e *Engine) Score(ctx context.Context, req Request) (*domain.ScoreVerdict, error) {
	verdict, err := e.score(ctx, req)
	if e.metrics != nil {
		score := 0
		if verdict != nil {
			score = verdict.Score
		}
		e.metrics.ObserveScore(metrics.Outcome(string(domain.KindOf(err)), err), score)
	}
	return verdict, err
}

func (e *Engine) score(ctx context.Context, req Request) (*domain.ScoreVerdict, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	reply, err := e.completer.Complete(callCtx, systemInstruction, buildParts(req))
	if err != nil {
		err = e.classify(err)
		e.logger.Error().Err(err).Str("provider", e.provider).Str("error_kind", string(domain.KindOf(err))).Dur("elapsed", time.Since(start)).Msg("scoring: completion failed")
		return nil, err
	}

	verdict, err := parseVerdict(reply, req.UserPrompt)
	if err != nil {
		e.logger.Warn().Err(err).Str("provider", e.provider).Int("reply_len", len(reply)).Msg("scoring: malformed verdict")
		return nil, err
	}
	e.logger.Info().Str("provider", e.provider).Int("score", verdict.Score).Dur("elapsed", time.Since(start)).Msg("scoring: verdict parsed")
	return verdict, nil
}

func (e *Engine) classify(err error) error {
	if de, ok := domain.AsError(err); ok {
		switch de.Kind {
		case domain.KindValidation, domain.KindMalformedVerdict, domain.KindUpstreamUnavailable:
			return err
		}
		provider := de.Provider
		if provider == "" {
			provider = e.provider
		}
		return domain.UpstreamUnavailable(provider, err)
	}
	return domain.UpstreamUnavailable(e.provider, err)
}

func buildParts(req Request) []vision.Part {
	title := strings.TrimSpace(req.ReferenceTitle)
	if title == "" {
		title = "untitled"
	}
	prompt := strings.TrimSpace(req.UserPrompt)
	if prompt == "" {
		prompt = "(none)"
	}
	return []vision.Part{
		{Text: fmt.Sprintf("Reference image (%q):", title)},
		{ImageRef: strings.TrimSpace(req.ReferenceImage)},
		{Text: "Generated image:"},
		{ImageRef: strings.TrimSpace(req.GeneratedImage)},
		{Text: fmt.Sprintf("Prompt the user wrote: %s\nWrite feedback, suggestions, strengths and areasForImprovement in %s. Keep JSON keys in English.", prompt, languageName(req.Locale))},
	}
}

func languageName(tag language.Tag) string {
	if tag == language.Und {
		return "English"
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return "English"
}

func (r Request) validate() error {
	if err := validRef("referenceImage", r.ReferenceImage); err != nil {
		return err
	}
	return validRef("generatedImage", r.GeneratedImage)
}

func validRef(field, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Validation(field, "%s is required", field)
	}
	if !imageref.IsURL(ref) && !imageref.IsData(ref) {
		return domain.Validation(field, "%s must be an http(s) url or a data reference", field)
	}
	return nil
}
