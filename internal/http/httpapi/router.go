package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/http/handlers"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/middleware"
)

// Options carries the pieces of the router that are not handlers.
type Options struct {
	JWTSecret       string
	CORSOrigins     []string
	RateLimitPerMin int
	Logger          *infra.Logger
	// Metrics and Files are mounted when non-nil.
	Metrics http.Handler
	Files   http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
	)
	if opts.Logger != nil {
		r.Use(middleware.Logger(opts.Logger))
	}
	r.Use(
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/providers", app.ProvidersList)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Files != nil {
		r.Mount("/files", http.StripPrefix("/files", opts.Files))
	}

	r.Route("/v1/images", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Get("/", app.ImagesList)
		r.Get("/{id}", app.ImagesGet)
		r.Delete("/{id}", app.ImagesDelete)

		// Provider-backed calls share the per-client budget.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/", app.ImagesPersist)
			r.Post("/generate", app.ImagesGenerate)
			r.Post("/score", app.ImagesScore)
		})
	})

	return r
}
