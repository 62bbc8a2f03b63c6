package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/adapter/repo"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/generation"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/http/handlers"
	httpapi "github.com/ai-ccore-projects/image-generation-sub001/internal/http/httpapi"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/imageref"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra/credentials"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/metrics"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/persist"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/gemini"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/image"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/openai"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/qwen"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/replicate"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/stability"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/providers/vision"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/scoring"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sqlRunner := infra.NewSQLRunner(dbpool, &logger)

	tokens := credentials.NewStore(sqlRunner)
	images := repo.NewImageRepository(sqlRunner)
	schemaCtx, cancelSchema := context.WithTimeout(ctx, 10*time.Second)
	if err := tokens.EnsureSchema(schemaCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure integration_tokens schema")
	}
	if err := images.EnsureSchema(schemaCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure generated_images schema")
	}
	cancelSchema()

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	fetcher := imageref.NewFetcher(nil, cfg.FetchTimeout)
	key := func(provider, configured string) string {
		v, err := tokens.Resolve(ctx, provider, configured)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("failed to read stored api key")
		}
		return strings.TrimSpace(v)
	}

	var (
		generators  []image.Generator
		openaiChat  *openai.Client
		geminiModel gemini.ContentGenerator
	)

	if apiKey := key(credentials.ProviderOpenAI, cfg.OpenAIAPIKey); apiKey != "" {
		client, err := openai.NewClient(openai.Options{
			APIKey:         apiKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Organization:   cfg.OpenAIOrg,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build openai client")
		}
		openaiChat = client
		generators = append(generators, image.NewDalleGenerator(client, ""), image.NewGPTImageGenerator(client, ""))
	}

	if apiKey := key(credentials.ProviderGemini, cfg.GeminiAPIKey); apiKey != "" {
		models, err := gemini.NewModels(ctx, gemini.Options{
			APIKey:         apiKey,
			BaseURL:        cfg.GeminiBaseURL,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build gemini client")
		}
		geminiModel = models
		generators = append(generators, image.NewGeminiGenerator(models, fetcher, cfg.GeminiImageModel))
	}

	if apiKey := key(credentials.ProviderDashScope, cfg.DashScopeAPIKey); apiKey != "" {
		client, err := qwen.NewClient(qwen.Options{
			APIKey:         apiKey,
			BaseURL:        cfg.DashScopeBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build dashscope client")
		}
		generators = append(generators, image.NewQwenGenerator(client))
	}

	if apiKey := key(credentials.ProviderStability, cfg.StabilityAPIKey); apiKey != "" {
		client, err := stability.NewClient(stability.Options{
			APIKey:         apiKey,
			BaseURL:        cfg.StabilityBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build stability client")
		}
		generators = append(generators, image.NewStabilityGenerator(client))
	}

	if token := key(credentials.ProviderReplicate, cfg.ReplicateToken); token != "" {
		client, err := replicate.NewClient(replicate.Options{
			APIToken:       token,
			BaseURL:        cfg.ReplicateBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build replicate client")
		}
		for _, id := range image.FluxVariants() {
			generators = append(generators, image.NewFluxGenerator(client, id))
		}
	}

	registry := image.NewRegistry(generators...)
	logger.Info().Strs("providers", registry.Configured()).Msg("image providers configured")
	if len(generators) == 0 {
		logger.Warn().Msg("no image provider has credentials; generation requests will be rejected")
	}

	generator := generation.NewService(generation.Options{
		Registry: registry,
		Timeout:  cfg.ProviderTimeout,
		Logger:   &logger,
		Metrics:  recorder,
	})

	var (
		store storage.Store
		files *storage.FileStore
	)
	switch cfg.StorageDriver {
	case "s3":
		s3Store, err := storage.NewS3Store(storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build s3 store")
		}
		store = s3Store
	default:
		files, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare file store")
		}
		store = files
	}

	persister := persist.New(persist.Options{
		Fetcher:  fetcher,
		Store:    store,
		Metadata: images,
		Logger:   &logger,
		Metrics:  recorder,
	})

	app := &handlers.App{
		Generator: generator,
		Persister: persister,
		Images:    images,
		Providers: registry,
		DB:        dbpool,
		Logger:    &logger,
	}

	var completer vision.Completer
	switch cfg.VisionProvider {
	case "gemini":
		if geminiModel != nil {
			completer = vision.NewGeminiCompleter(geminiModel, fetcher, cfg.VisionModel)
		}
	default:
		if openaiChat != nil {
			completer = vision.NewOpenAICompleter(openaiChat, cfg.VisionModel)
		}
	}
	if completer != nil {
		app.Scorer = scoring.NewEngine(scoring.Options{
			Completer: completer,
			Provider:  cfg.VisionProvider,
			Timeout:   cfg.ScoringTimeout,
			Logger:    &logger,
			Metrics:   recorder,
		})
	} else {
		logger.Warn().Str("vision_provider", cfg.VisionProvider).Msg("vision provider has no credentials; scoring disabled")
	}

	routerOpts := httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          &logger,
	}
	if recorder != nil {
		routerOpts.Metrics = recorder.Handler()
	}
	if files != nil {
		routerOpts.Files = files.Handler()
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, routerOpts), &logger)
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
