package image

import (
	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

// DefaultStep marks NativeParams chosen because no creativity was supplied.
const DefaultStep = -1

// NativeParams are the provider-specific knobs derived from creativity. Each
// adapter reads only the fields its API understands.
type NativeParams struct {
	// Step is the ladder index; higher means more divergent output.
	Step           int
	Quality        string
	Style          string
	PromptSuffix   string
	PromptExtend   bool
	StylePreset    string
	Guidance       float64
	PromptStrength float64
	Background     string
}

// ladder is a monotonic step function: creativity below bounds[i] selects
// steps[i], anything at or above the last bound selects the final step.
type ladder struct {
	bounds   []float64
	steps    []NativeParams
	fallback NativeParams
}

func (l ladder) resolve(creativity *float64) NativeParams {
	if creativity == nil {
		out := l.fallback
		out.Step = DefaultStep
		return out
	}
	c := domain.ClampCreativity(*creativity)
	idx := len(l.steps) - 1
	for i, bound := range l.bounds {
		if c < bound {
			idx = i
			break
		}
	}
	out := l.steps[idx]
	out.Step = idx
	return out
}

const (
	literalSuffix  = "Render the scene faithfully and realistically, following the description literally."
	artisticSuffix = "Interpret the scene with an expressive, artistic style."
	surrealSuffix  = "Reimagine the scene boldly with surreal, highly stylized artistic liberties."
)

var ladders = map[domain.ProviderID]ladder{
	domain.ProviderDalle: {
		bounds: []float64{0.4, 0.8},
		steps: []NativeParams{
			{Quality: "standard", Style: "natural"},
			{Quality: "hd", Style: "natural"},
			{Quality: "hd", Style: "vivid"},
		},
		fallback: NativeParams{Quality: "standard", Style: "vivid"},
	},
	domain.ProviderGPTImage: {
		bounds: []float64{0.5, 1.0},
		steps: []NativeParams{
			{Quality: "low", PromptSuffix: literalSuffix},
			{Quality: "medium"},
			{Quality: "high", PromptSuffix: artisticSuffix},
		},
		fallback: NativeParams{Quality: "medium"},
	},
	domain.ProviderGemini: {
		bounds: []float64{0.3, 0.7, 1.1},
		steps: []NativeParams{
			{PromptSuffix: literalSuffix},
			{},
			{PromptSuffix: artisticSuffix},
			{PromptSuffix: surrealSuffix},
		},
	},
	domain.ProviderQwen: {
		bounds: []float64{0.4, 1.0},
		steps: []NativeParams{
			{PromptExtend: false},
			{PromptExtend: true},
			{PromptExtend: true, PromptSuffix: artisticSuffix},
		},
		fallback: NativeParams{PromptExtend: true},
	},
	domain.ProviderStability: {
		bounds: []float64{0.3, 0.7, 1.1},
		steps: []NativeParams{
			{StylePreset: "photographic"},
			{StylePreset: "cinematic"},
			{StylePreset: "digital-art"},
			{StylePreset: "fantasy-art"},
		},
	},
	domain.ProviderFlux: {
		bounds: []float64{0.3, 0.7, 1.1},
		steps: []NativeParams{
			{Guidance: 4.5},
			{Guidance: 3.5},
			{Guidance: 2.5},
			{Guidance: 1.5},
		},
		fallback: NativeParams{Guidance: 3},
	},
	domain.ProviderFluxImg2Img: {
		bounds: []float64{0.3, 0.7, 1.1},
		steps: []NativeParams{
			{PromptStrength: 0.35},
			{PromptStrength: 0.55},
			{PromptStrength: 0.75},
			{PromptStrength: 0.9},
		},
		fallback: NativeParams{PromptStrength: 0.8},
	},
	domain.ProviderFluxMulti: {
		bounds: []float64{0.5, 1.0},
		steps: []NativeParams{
			{PromptSuffix: "Combine both images faithfully, preserving each subject exactly as shown."},
			{},
			{PromptSuffix: "Blend both images creatively into a new, stylized scene."},
		},
	},
	domain.ProviderFluxDepth: {
		bounds: []float64{0.3, 0.7, 1.1},
		steps: []NativeParams{
			{Guidance: 25},
			{Guidance: 15},
			{Guidance: 10},
			{Guidance: 5},
		},
		fallback: NativeParams{Guidance: 15},
	},
	domain.ProviderFluxHeadshot: {
		bounds: []float64{0.3, 0.7, 1.1},
		steps: []NativeParams{
			{Background: "neutral"},
			{Background: "white"},
			{Background: "office"},
			{Background: "outdoor"},
		},
		fallback: NativeParams{Background: "neutral"},
	},
}

// NormalizeCreativity maps an optional creativity scalar onto the provider's
// native settings. It never fails: out-of-range input is clamped and an
// unknown provider yields zero params at DefaultStep.
func NormalizeCreativity(creativity *float64, provider domain.ProviderID) NativeParams {
	l, ok := ladders[provider]
	if !ok {
		return NativeParams{Step: DefaultStep}
	}
	return l.resolve(creativity)
}

// nativeFromBag reads creativity from the bag and resolves the ladder.
func nativeFromBag(params domain.ParameterBag, provider domain.ProviderID) NativeParams {
	if c, ok := params.Creativity(); ok {
		return NormalizeCreativity(&c, provider)
	}
	return NormalizeCreativity(nil, provider)
}

// withSuffix appends a ladder suffix to the prompt sent upstream.
func withSuffix(prompt, suffix string) string {
	if suffix == "" {
		return prompt
	}
	return prompt + "\n" + suffix
}
