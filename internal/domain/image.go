package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxPromptLength bounds GenerationRequest.Prompt in characters.
const MaxPromptLength = 4000

// ProviderID enumerates the image-generation backends.
type ProviderID string

const (
	ProviderDalle        ProviderID = "dalle-3"
	ProviderGPTImage     ProviderID = "gpt-image-1"
	ProviderGemini       ProviderID = "gemini"
	ProviderQwen         ProviderID = "qwen"
	ProviderStability    ProviderID = "stability"
	ProviderFlux         ProviderID = "flux"
	ProviderFluxImg2Img  ProviderID = "flux-img2img"
	ProviderFluxMulti    ProviderID = "flux-multi"
	ProviderFluxDepth    ProviderID = "flux-depth"
	ProviderFluxHeadshot ProviderID = "flux-headshot"
)

// AllProviders lists every ProviderID in catalogue order.
var AllProviders = []ProviderID{
	ProviderDalle,
	ProviderGPTImage,
	ProviderGemini,
	ProviderQwen,
	ProviderStability,
	ProviderFlux,
	ProviderFluxImg2Img,
	ProviderFluxMulti,
	ProviderFluxDepth,
	ProviderFluxHeadshot,
}

// ParseProviderID normalises free-form input into a known ProviderID.
func ParseProviderID(raw string) (ProviderID, bool) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllProviders {
		if id == known {
			return id, true
		}
	}
	return "", false
}

// Well-known ParameterBag keys.
const (
	ParamSize            = "size"
	ParamAspectRatio     = "aspectRatio"
	ParamQuality         = "quality"
	ParamStyle           = "style"
	ParamCreativity      = "creativity"
	ParamCompanionImages = "companionImages"
)

// MaxCreativity is the upper bound of the creativity scalar.
const MaxCreativity = 1.5

// ParameterBag is the loosely-typed option map of a GenerationRequest.
// Providers read the keys they understand; unknown keys are ignored.
type ParameterBag map[string]any

func (p ParameterBag) String(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (p ParameterBag) Size() string        { return p.String(ParamSize) }
func (p ParameterBag) AspectRatio() string { return p.String(ParamAspectRatio) }
func (p ParameterBag) Quality() string     { return strings.ToLower(p.String(ParamQuality)) }
func (p ParameterBag) Style() string       { return strings.ToLower(p.String(ParamStyle)) }

// Creativity returns the clamped creativity scalar and whether one was
// supplied. Numeric strings are accepted; NaN and garbage count as absent.
func (p ParameterBag) Creativity() (float64, bool) {
	if p == nil {
		return 0, false
	}
	var c float64
	switch v := p[ParamCreativity].(type) {
	case float64:
		c = v
	case float32:
		c = float64(v)
	case int:
		c = float64(v)
	case int64:
		c = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		c = parsed
	default:
		return 0, false
	}
	if math.IsNaN(c) {
		return 0, false
	}
	return ClampCreativity(c), true
}

// ClampCreativity forces c into [0, MaxCreativity].
func ClampCreativity(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > MaxCreativity {
		return MaxCreativity
	}
	return c
}

// CompanionImages returns the non-empty image references supplied for
// image-conditioned providers.
func (p ParameterBag) CompanionImages() []string {
	if p == nil {
		return nil
	}
	var out []string
	switch v := p[ParamCompanionImages].(type) {
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GenerationRequest is immutable once dispatched.
type GenerationRequest struct {
	Prompt     string       `json:"prompt"`
	ProviderID ProviderID   `json:"provider"`
	Params     ParameterBag `json:"params,omitempty"`
}

// Validate checks the provider-independent request invariants.
func (r GenerationRequest) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Prompt))
	if n == 0 {
		return Validation("prompt", "prompt is required")
	}
	if n > MaxPromptLength {
		return Validation("prompt", "prompt exceeds %d characters", MaxPromptLength)
	}
	if _, ok := ParseProviderID(string(r.ProviderID)); !ok {
		return Validation("provider", "unsupported provider %q", r.ProviderID)
	}
	return nil
}

// GenerationResult is what every adapter returns. CanonicalImageRef is either
// an absolute http(s) URL or a data: reference.
type GenerationResult struct {
	CanonicalImageRef string     `json:"canonicalImageRef"`
	RevisedPrompt     string     `json:"revisedPrompt"`
	Provider          ProviderID `json:"provider"`
	Model             string     `json:"model"`
}

// PersistedImage exists only after both the storage and the metadata write
// succeeded.
type PersistedImage struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"ownerId"`
	Prompt        string       `json:"prompt"`
	ProviderID    ProviderID   `json:"providerId"`
	StorageKey    string       `json:"-"`
	StorageURL    string       `json:"storageUrl"`
	RevisedPrompt string       `json:"revisedPrompt"`
	Params        ParameterBag `json:"params"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// ScoreVerdict is the validated result of a comparison.
type ScoreVerdict struct {
	Score               int      `json:"score"`
	Feedback            string   `json:"feedback"`
	Suggestions         string   `json:"suggestions"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
	HelpfulKeywords     []string `json:"helpfulKeywords"`
	SuggestedPrompt     string   `json:"suggestedPrompt"`
}
