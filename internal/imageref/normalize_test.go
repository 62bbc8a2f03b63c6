package imageref

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

type stubHandle struct {
	url string
	err error
}

func (h stubHandle) URL() (string, error) { return h.url, h.err }

func TestNormalizeShapes(t *testing.T) {
	pngBytes := []byte("\x89PNG\r\n\x1a\nfake")
	b64 := base64.StdEncoding.EncodeToString(pngBytes)

	cases := []struct {
		name string
		raw  Raw
		want string
	}{
		{name: "url passthrough", raw: Raw{Value: "https://cdn.example.com/a.png"}, want: "https://cdn.example.com/a.png"},
		{name: "url trimmed", raw: Raw{Value: "  https://cdn.example.com/a.png\n"}, want: "https://cdn.example.com/a.png"},
		{name: "string slice", raw: Raw{Value: []string{"https://x.test/1.png", "https://x.test/2.png"}}, want: "https://x.test/1.png"},
		{name: "any slice", raw: Raw{Value: []any{"https://x.test/1.webp"}}, want: "https://x.test/1.webp"},
		{name: "lazy handle", raw: Raw{Value: stubHandle{url: "https://replicate.delivery/out.png"}}, want: "https://replicate.delivery/out.png"},
		{name: "slice of handles", raw: Raw{Value: []any{stubHandle{url: "https://replicate.delivery/0.png"}}}, want: "https://replicate.delivery/0.png"},
		{name: "bytes", raw: Raw{Value: pngBytes, MIMEType: "image/png"}, want: "data:image/png;base64," + b64},
		{name: "stream", raw: Raw{Value: bytes.NewReader(pngBytes), MIMEType: "image/webp"}, want: "data:image/webp;base64," + b64},
		{name: "bare base64 default mime", raw: Raw{Value: b64}, want: "data:image/png;base64," + b64},
		{name: "bare base64 declared jpeg", raw: Raw{Value: b64, MIMEType: "jpg"}, want: "data:image/jpeg;base64," + b64},
		{name: "data ref passthrough", raw: Raw{Value: "data:image/jpeg;base64," + b64}, want: "data:image/jpeg;base64," + b64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(context.Background(), tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeEmptyShapes(t *testing.T) {
	cases := map[string]any{
		"nil":          nil,
		"empty string": "   ",
		"empty list":   []any{},
		"empty slice":  []string{},
		"empty bytes":  []byte{},
		"empty stream": strings.NewReader(""),
		"not base64":   "definitely not an image!",
		"bad data ref": "data:image/png;base64,@@@",
		"unknown type": 42,
		"handle error": stubHandle{err: errors.New("expired")},
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(context.Background(), Raw{Provider: "test", Value: value})
			require.Error(t, err)
			assert.Equal(t, domain.KindEmptyResult, domain.KindOf(err))
		})
	}
}

func TestNormalizeDiagnosticKeepsUTF8(t *testing.T) {
	reply := strings.Repeat("a", 95) + "ééé no image"
	_, err := Normalize(context.Background(), Raw{Provider: "test", Value: reply})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(de.Diagnostic), "diagnostic %q", de.Diagnostic)
	assert.Equal(t, strings.Repeat("a", 95)+"...", de.Diagnostic)
}

func TestNormalizeNeverEmitsBareBase64(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(t, "payload")
		shape := rapid.IntRange(0, 2).Draw(t, "shape")
		var value any
		switch shape {
		case 0:
			value = payload
		case 1:
			value = bytes.NewReader(payload)
		default:
			value = base64.StdEncoding.EncodeToString(payload)
		}
		got, err := Normalize(context.Background(), Raw{Value: value, MIMEType: "image/png"})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if !IsData(got) && !IsURL(got) {
			t.Fatalf("non-canonical output %q", got)
		}
		_, decoded, err := Decode(got)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(decoded, payload) {
			t.Fatalf("payload changed")
		}
	})
}

func TestNormalizeIdempotentOnURLs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z]{1,12}\.(com|net|io)`).Draw(t, "host")
		path := rapid.StringMatching(`(/[a-z0-9_-]{1,10}){0,4}(\.png|\.jpg)?`).Draw(t, "path")
		scheme := rapid.SampledFrom([]string{"http", "https"}).Draw(t, "scheme")
		u := scheme + "://" + host + path

		once, err := Normalize(context.Background(), Raw{Value: u})
		if err != nil {
			t.Fatalf("first normalize: %v", err)
		}
		twice, err := Normalize(context.Background(), Raw{Value: once})
		if err != nil {
			t.Fatalf("second normalize: %v", err)
		}
		if once != twice || once != u {
			t.Fatalf("not idempotent: %q -> %q -> %q", u, once, twice)
		}
	})
}

func TestDecodeRoundTrip(t *testing.T) {
	ref := Encode("image/webp", []byte("webp-bytes"))
	mime, data, err := Decode(ref)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mime)
	assert.Equal(t, []byte("webp-bytes"), data)

	_, _, err = Decode("data:image/png,plain")
	assert.Error(t, err)
}

func TestFetcherMaterialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-body"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 0)

	data, mime, err := f.Materialize(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("png-body"), data)

	data, mime, err = f.Materialize(context.Background(), Encode("image/jpeg", []byte("jpeg")))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, []byte("jpeg"), data)

	_, _, err = f.Materialize(context.Background(), srv.URL+"/missing.png")
	assert.Equal(t, domain.KindFetchFailed, domain.KindOf(err))
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)

	_, _, err = f.Materialize(context.Background(), "ftp://example.com/x.png")
	assert.Equal(t, domain.KindUnsupportedRef, domain.KindOf(err))
}
