package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/middleware"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/persist"
)

type generateRequest struct {
	Prompt   string              `json:"prompt"`
	Provider string              `json:"provider"`
	Params   domain.ParameterBag `json:"params"`
}

// ImagesGenerate runs one provider call and returns the canonical reference.
// Nothing is stored.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.owner(w, r); !ok {
		return
	}
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Generator.Generate(r.Context(), domain.GenerationRequest{
		Prompt:     req.Prompt,
		ProviderID: domain.ProviderID(req.Provider),
		Params:     req.Params,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type persistRequest struct {
	ImageRef      string              `json:"imageRef"`
	Prompt        string              `json:"prompt"`
	Provider      string              `json:"provider"`
	RevisedPrompt string              `json:"revisedPrompt"`
	Params        domain.ParameterBag `json:"params"`
}

// ImagesPersist stores a canonical reference for the authenticated owner.
func (a *App) ImagesPersist(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.owner(w, r)
	if !ok {
		return
	}
	var req persistRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImageRef) == "" {
		a.fail(w, r, domain.Validation("imageRef", "imageRef is required"))
		return
	}
	img, err := a.Persister.Persist(r.Context(), req.ImageRef, persist.Input{
		OwnerID:       owner,
		Prompt:        req.Prompt,
		ProviderID:    domain.ProviderID(req.Provider),
		RevisedPrompt: req.RevisedPrompt,
		Params:        req.Params,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, img)
}

// ImagesList pages through the owner's images, newest first. The next page
// is requested with before=<createdAt of the last item>.
func (a *App) ImagesList(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.owner(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.fail(w, r, domain.Validation("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	var before *time.Time
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			a.fail(w, r, domain.Validation("before", "before must be an RFC 3339 timestamp"))
			return
		}
		before = &t
	}
	images, err := a.Images.ListByOwner(r.Context(), owner, before, limit)
	if err != nil {
		a.logger().Error().Err(err).Str("owner_id", owner).Msg("images: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list images")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": images})
}

func (a *App) ImagesGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.owner(w, r)
	if !ok {
		return
	}
	img, err := a.Images.GetByID(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, img)
}

// ImagesDelete removes the record and then the stored object.
func (a *App) ImagesDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.owner(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.Persister.Delete(r.Context(), owner, id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger().Info().Str("owner_id", owner).Str("image_id", id).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("images: deleted")
	w.WriteHeader(http.StatusNoContent)
}
