// Package credentials reads and writes provider API tokens kept in the
// integration_tokens table.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/infra"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/sqlinline"
)

// Token slots. Several ProviderIDs share one vendor token.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderDashScope = "dashscope"
	ProviderStability = "stability"
	ProviderReplicate = "replicate"
)

// Providers lists every accepted token slot.
var Providers = []string{ProviderOpenAI, ProviderGemini, ProviderDashScope, ProviderStability, ProviderReplicate}

// ErrUnknownProvider rejects token slots outside Providers.
var ErrUnknownProvider = errors.New("credentials: unknown provider")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the token table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokensTable)
	return err
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return "", err
	}
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the configured value and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, token, map[string]any{"source": "providerkey"})
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func normalizeProvider(provider string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownProvider, provider)
}
