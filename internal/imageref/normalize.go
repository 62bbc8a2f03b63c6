package imageref

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

// URLResolver is a lazily-resolvable output handle exposing a URL accessor.
type URLResolver interface {
	URL() (string, error)
}

// Raw is an adapter's unnormalised output together with the mime type the
// provider declares for byte payloads.
type Raw struct {
	Provider string
	Value    any
	MIMEType string
}

// Normalize collapses every observed provider output shape into a canonical
// reference: an absolute URL passes through, a data reference is validated,
// and bytes, streams or bare base64 are wrapped as a data reference. It never
// returns bare base64.
func Normalize(ctx context.Context, raw Raw) (string, error) {
	return normalize(ctx, raw, raw.Value)
}

func normalize(ctx context.Context, raw Raw, value any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.ClassifyTransport(raw.Provider, err)
	}
	switch v := value.(type) {
	case nil:
		return "", domain.EmptyResult(raw.Provider, "nil output")
	case string:
		return normalizeString(raw, v)
	case []string:
		if len(v) == 0 {
			return "", domain.EmptyResult(raw.Provider, "empty output list")
		}
		return normalizeString(raw, v[0])
	case []any:
		if len(v) == 0 {
			return "", domain.EmptyResult(raw.Provider, "empty output list")
		}
		return normalize(ctx, raw, v[0])
	case URLResolver:
		u, err := v.URL()
		if err != nil {
			return "", &domain.Error{Kind: domain.KindEmptyResult, Provider: raw.Provider, Message: "output handle did not resolve", Err: err}
		}
		return normalizeString(raw, u)
	case []byte:
		if len(v) == 0 {
			return "", domain.EmptyResult(raw.Provider, "empty byte payload")
		}
		return Encode(raw.MIMEType, v), nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return "", domain.ClassifyTransport(raw.Provider, fmt.Errorf("drain output stream: %w", err))
		}
		if len(data) == 0 {
			return "", domain.EmptyResult(raw.Provider, "empty output stream")
		}
		return Encode(raw.MIMEType, data), nil
	default:
		return "", domain.EmptyResult(raw.Provider, fmt.Sprintf("unrecognised output shape %T", value))
	}
}

func normalizeString(raw Raw, s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", domain.EmptyResult(raw.Provider, "empty output string")
	case IsURL(s):
		return s, nil
	case IsData(s):
		if _, _, err := Decode(s); err != nil {
			return "", &domain.Error{Kind: domain.KindEmptyResult, Provider: raw.Provider, Message: "malformed data reference", Diagnostic: domain.Truncate(s, 96), Err: err}
		}
		return s, nil
	}
	if _, err := decodeBase64(s); err != nil {
		return "", &domain.Error{Kind: domain.KindEmptyResult, Provider: raw.Provider, Message: "output is neither a url nor base64", Diagnostic: domain.Truncate(s, 96), Err: err}
	}
	return EncodeBase64(raw.MIMEType, s), nil
}
