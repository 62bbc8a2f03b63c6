package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/sqlinline"
)

type stubExecutor struct {
	token string
	err   error
	reads int
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.reads++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	for _, provider := range Providers {
		store := NewStore(&stubExecutor{token: " abc123 "})
		key, err := store.Token(context.Background(), provider)
		if err != nil {
			t.Fatalf("Token(%s) error: %v", provider, err)
		}
		if key != "abc123" {
			t.Fatalf("Token(%s): expected abc123, got %q", provider, key)
		}
	}
}

func TestToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), "Replicate")
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestTokenUnknownProvider(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if _, err := store.Token(context.Background(), "midjourney"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if exec.reads != 0 {
		t.Fatalf("expected no query, got %d", exec.reads)
	}
}

func TestResolvePrefersConfigured(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)
	key, err := store.Resolve(context.Background(), ProviderOpenAI, " env-key ")
	if err != nil || key != "env-key" {
		t.Fatalf("Resolve = %q, %v", key, err)
	}
	if exec.reads != 0 {
		t.Fatalf("expected no query when configured, got %d", exec.reads)
	}
	key, err = store.Resolve(context.Background(), ProviderOpenAI, "")
	if err != nil || key != "stored" {
		t.Fatalf("Resolve fallback = %q, %v", key, err)
	}
	var nilStore *Store
	if key, err := nilStore.Resolve(context.Background(), ProviderOpenAI, ""); err != nil || key != "" {
		t.Fatalf("nil store Resolve = %q, %v", key, err)
	}
}

func TestSetToken(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetToken(context.Background(), ProviderStability, "secret"); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if exec.exec.query != sqlinline.QUpsertIntegrationToken {
		t.Fatal("expected upsert statement")
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderStability {
		t.Fatalf("expected provider argument, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetTokenEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetToken(context.Background(), ProviderGemini, " "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestEnsureSchema(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	if exec.exec.query != sqlinline.QEnsureIntegrationTokensTable {
		t.Fatal("expected ensure statement")
	}
}
