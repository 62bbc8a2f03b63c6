// Package handlers exposes generation, persistence and scoring as JSON
// endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/middleware"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/persist"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/image"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/scoring"
)

// DefaultMaxBodyBytes admits inline data references of a few megabytes.
const DefaultMaxBodyBytes = 48 << 20

type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

type Persister interface {
	Persist(ctx context.Context, ref string, in persist.Input) (*domain.PersistedImage, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type ImageReader interface {
	GetByID(ctx context.Context, ownerID, id string) (*domain.PersistedImage, error)
	ListByOwner(ctx context.Context, ownerID string, before *time.Time, limit int) ([]domain.PersistedImage, error)
}

type Scorer interface {
	Score(ctx context.Context, req scoring.Request) (*domain.ScoreVerdict, error)
}

type ProviderLister interface {
	Available() []image.Descriptor
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Generator    Generator
	Persister    Persister
	Images       ImageReader
	Scorer       Scorer
	Providers    ProviderLister
	DB           Pinger
	Logger       *infra.Logger
	MaxBodyBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Diagnostic    string `json:"diagnostic,omitempty"`
	ContentPolicy bool   `json:"contentPolicy,omitempty"`
	Retryable     bool   `json:"retryable"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]errorBody{"error": {Kind: kind, Message: message}})
}

// fail maps err onto a status code and the error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "image not found")
		return
	}
	de, ok := domain.AsError(err)
	if !ok {
		a.logger().Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("handler: unclassified error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	body := errorBody{
		Kind:          string(de.Kind),
		Message:       de.Error(),
		Field:         de.Field,
		Provider:      de.Provider,
		Diagnostic:    de.Diagnostic,
		ContentPolicy: de.ContentPolicy,
		Retryable:     de.Kind.Retryable(),
	}
	a.json(w, statusFor(de, err), map[string]errorBody{"error": body})
}

func statusFor(de *domain.Error, err error) int {
	switch de.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUpstreamRejected:
		return http.StatusUnprocessableEntity
	case domain.KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUpstreamUnavailable:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case domain.KindEmptyResult, domain.KindUnsupportedRef, domain.KindMalformedVerdict, domain.KindFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads one JSON object from the body, bounded by MaxBodyBytes.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	limit := a.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "validation_error", "request body too large")
			return false
		}
		a.error(w, http.StatusBadRequest, "validation_error", "invalid JSON payload")
		return false
	}
	return true
}

func (a *App) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := middleware.OwnerIDFromContext(r.Context())
	if owner == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return "", false
	}
	return owner, true
}

func (a *App) logger() *infra.Logger {
	if a.Logger == nil {
		discard := zerolog.New(io.Discard)
		return &discard
	}
	return a.Logger
}
