package image

import (
	"slices"
	"strings"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

var (
	dalleSizes    = []string{"1024x1024", "1792x1024", "1024x1792"}
	gptImageSizes = []string{"1024x1024", "1536x1024", "1024x1536"}
	aspectRatios  = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}
)

// pickSize returns the requested size when the provider supports it. An
// aspect ratio is mapped onto the closest supported size; anything else
// falls back to the first entry.
func pickSize(params domain.ParameterBag, supported []string) string {
	if size := strings.ToLower(params.Size()); slices.Contains(supported, size) {
		return size
	}
	switch params.AspectRatio() {
	case "16:9", "4:3":
		return supported[1]
	case "9:16", "3:4":
		return supported[2]
	}
	return supported[0]
}

// pickAspectRatio returns the requested aspect ratio if known, or fallback.
func pickAspectRatio(params domain.ParameterBag, fallback string) string {
	if ar := params.AspectRatio(); slices.Contains(aspectRatios, ar) {
		return ar
	}
	return fallback
}

// qwenSize maps an aspect ratio onto a DashScope size token.
func qwenSize(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "4:3":
		return "1472*1104"
	case "3:4":
		return "1140*1472"
	case "9:16":
		return "928*1664"
	default:
		return "1328*1328"
	}
}
