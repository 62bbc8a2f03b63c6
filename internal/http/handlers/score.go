package handlers

import (
	"net/http"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/middleware"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/scoring"
)

type scoreRequest struct {
	ReferenceImage string `json:"referenceImage"`
	GeneratedImage string `json:"generatedImage"`
	ReferenceTitle string `json:"referenceTitle"`
	Prompt         string `json:"prompt"`
}

// ImagesScore compares two canonical references. Feedback follows the
// negotiated locale.
func (a *App) ImagesScore(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.owner(w, r); !ok {
		return
	}
	if a.Scorer == nil {
		a.error(w, http.StatusServiceUnavailable, "upstream_unavailable", "scoring is not configured")
		return
	}
	var req scoreRequest
	if !a.decode(w, r, &req) {
		return
	}
	verdict, err := a.Scorer.Score(r.Context(), scoring.Request{
		ReferenceImage: req.ReferenceImage,
		GeneratedImage: req.GeneratedImage,
		ReferenceTitle: req.ReferenceTitle,
		UserPrompt:     req.Prompt,
		Locale:         middleware.LocaleFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, verdict)
}
