package handlers

import (
	"net/http"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/image"
)

type providerEntry struct {
	image.Descriptor
	Configured bool `json:"configured"`
}

// ProvidersList lists the whole catalogue and marks the configured entries.
func (a *App) ProvidersList(w http.ResponseWriter, r *http.Request) {
	configured := map[domain.ProviderID]bool{}
	if a.Providers != nil {
		for _, d := range a.Providers.Available() {
			configured[d.ID] = true
		}
	}
	out := make([]providerEntry, 0, len(domain.AllProviders))
	for _, id := range domain.AllProviders {
		out = append(out, providerEntry{Descriptor: image.Catalogue[id], Configured: configured[id]})
	}
	a.json(w, http.StatusOK, map[string]any{"providers": out})
}
