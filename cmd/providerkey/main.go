// Command providerkey stores a provider API token in integration_tokens so
// the API can start without the matching environment variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderOpenAI:    "OPENAI_API_KEY",
	credentials.ProviderGemini:    "GEMINI_API_KEY",
	credentials.ProviderDashScope: "DASHSCOPE_API_KEY",
	credentials.ProviderStability: "STABILITY_API_KEY",
	credentials.ProviderReplicate: "REPLICATE_API_TOKEN",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the provider's environment variable)")
	flag.StringVar(&providerFlag, "provider", "", "token slot: "+strings.Join(credentials.Providers, ", "))
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	envName, ok := envKeys[provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported provider %q (want one of %s)\n", providerFlag, strings.Join(credentials.Providers, ", "))
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envName))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s API key is required via -key or %s\n", provider, envName)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, &logger))

	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		os.Exit(1)
	}
	if err := store.SetToken(ctx, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s API key stored successfully\n", provider)
}
