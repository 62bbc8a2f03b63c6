package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/sqlinline"
)

func TestExtractMarker(t *testing.T) {
	marker, body, err := extractMarker(sqlinline.QSelectIntegrationToken)
	if err != nil {
		t.Fatalf("extractMarker error: %v", err)
	}
	if marker != "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7" {
		t.Fatalf("marker = %q", marker)
	}
	if body == "" || body[0:6] != "select" {
		t.Fatalf("body = %q", body)
	}

	for _, q := range []string{"select 1", "--sql not-a-uuid\nselect 1", ""} {
		if _, _, err := extractMarker(q); !errors.Is(err, ErrMissingMarker) {
			t.Fatalf("extractMarker(%q) = %v, want ErrMissingMarker", q, err)
		}
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatal("unexpected match")
	}
}

func TestErrorRowReturnsError(t *testing.T) {
	row := errorRow{err: ErrMissingMarker}
	var s string
	if err := row.Scan(&s); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Scan = %v", err)
	}
}
