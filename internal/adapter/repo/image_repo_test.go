package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
	"github.com/ai-ccore-projects/image-generation-sub001/internal/sqlinline"
)

type call struct {
	query string
	args  []any
}

type stubExecutor struct {
	calls []call
	rows  [][]any
	err   error
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query, args})
	return pgconn.NewCommandTag("CREATE TABLE"), s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query, args})
	if s.err != nil {
		return stubRow{err: s.err}
	}
	if len(s.rows) == 0 {
		return stubRow{err: pgx.ErrNoRows}
	}
	return stubRow{values: s.rows[0]}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query, args})
	if s.err != nil {
		return nil, s.err
	}
	return &stubRows{rows: s.rows, idx: -1}, nil
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type stubRows struct {
	rows [][]any
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *stubRows) Scan(dest ...any) error { return assign(r.rows[r.idx], dest) }

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

var created = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func imageRow(id string) []any {
	return []any{id, "u1", "a red bicycle", "flux", "u1/flux-1.png", "https://cdn.test/u1/flux-1.png", "a red bicycle", []byte(`{"creativity":0.9}`), created}
}

func TestInsertAssignsIDAndCreatedAt(t *testing.T) {
	exec := &stubExecutor{rows: [][]any{{created}}}
	repo := NewImageRepository(exec)
	img := &domain.PersistedImage{OwnerID: "u1", Prompt: "p", ProviderID: domain.ProviderFlux, StorageKey: "k", StorageURL: "https://x/k"}

	if err := repo.Insert(context.Background(), img); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if img.ID == "" {
		t.Fatal("expected generated id")
	}
	if !img.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v", img.CreatedAt)
	}
	c := exec.calls[0]
	if c.query != sqlinline.QInsertGeneratedImage || len(c.args) != 8 {
		t.Fatalf("unexpected call %#v", c)
	}
	if got := string(c.args[7].([]byte)); got != "{}" {
		t.Fatalf("expected empty params object, got %s", got)
	}
	if c.args[3] != "flux" {
		t.Fatalf("expected provider arg flux, got %v", c.args[3])
	}
}

func TestInsertPropagatesError(t *testing.T) {
	repo := NewImageRepository(&stubExecutor{err: errors.New("unique violation")})
	if err := repo.Insert(context.Background(), &domain.PersistedImage{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetByID(t *testing.T) {
	id := "0b8e1a52-4c57-4bb0-9d0f-1d1f1c2b3a4d"
	exec := &stubExecutor{rows: [][]any{imageRow(id)}}
	img, err := NewImageRepository(exec).GetByID(context.Background(), "u1", id)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if img.ProviderID != domain.ProviderFlux || img.Prompt != "a red bicycle" {
		t.Fatalf("unexpected image %#v", img)
	}
	if c, ok := img.Params.Creativity(); !ok || c != 0.9 {
		t.Fatalf("params not decoded: %#v", img.Params)
	}
	if exec.calls[0].args[0] != "u1" || exec.calls[0].args[1] != id {
		t.Fatalf("expected owner and id filters, got %v", exec.calls[0].args)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewImageRepository(exec)
	if _, err := repo.GetByID(context.Background(), "u1", "0b8e1a52-4c57-4bb0-9d0f-1d1f1c2b3a4d"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "u1", "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("malformed id must not reach the database, got %d calls", len(exec.calls))
	}
}

func TestListByOwnerClampsLimit(t *testing.T) {
	exec := &stubExecutor{rows: [][]any{imageRow("a"), imageRow("b")}}
	images, err := NewImageRepository(exec).ListByOwner(context.Background(), "u1", nil, 1000)
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(images) != 2 || images[1].ID != "b" {
		t.Fatalf("unexpected images %#v", images)
	}
	if got := exec.calls[0].args[2]; got != MaxListLimit {
		t.Fatalf("limit = %v, want %d", got, MaxListLimit)
	}
}

func TestDeleteReturnsStorageKey(t *testing.T) {
	id := "0b8e1a52-4c57-4bb0-9d0f-1d1f1c2b3a4d"
	exec := &stubExecutor{rows: [][]any{{"u1/flux-1.png"}}}
	key, err := NewImageRepository(exec).Delete(context.Background(), "u1", id)
	if err != nil || key != "u1/flux-1.png" {
		t.Fatalf("Delete = %q, %v", key, err)
	}
	if _, err := NewImageRepository(&stubExecutor{}).Delete(context.Background(), "u1", id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewImageRepository(exec).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	if exec.calls[0].query != sqlinline.QEnsureGeneratedImagesTable {
		t.Fatal("expected schema statement")
	}
}
