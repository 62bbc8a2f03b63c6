package imageref

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

// MaxFetchBytes caps a downloaded image body.
const MaxFetchBytes = 32 << 20

// StatusError is a non-2xx answer to an image GET.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Fetcher materialises canonical references into bytes.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher builds a Fetcher. A nil client gets one with the given timeout;
// timeout also bounds each individual fetch.
func NewFetcher(client *http.Client, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, timeout: timeout}
}

// Materialize returns the bytes and mime type behind ref. Data references are
// decoded directly; URLs are fetched with one GET. Any other shape is
// UnsupportedRefFormat and fetch failures are FetchFailed.
func (f *Fetcher) Materialize(ctx context.Context, ref string) ([]byte, string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case IsData(ref):
		mime, data, err := Decode(ref)
		if err != nil {
			return nil, "", &domain.Error{Kind: domain.KindUnsupportedRef, Message: "malformed data reference", Err: err}
		}
		return data, mime, nil
	case IsURL(ref):
		return f.download(ctx, ref)
	default:
		return nil, "", domain.UnsupportedRef(ref)
	}
}

func (f *Fetcher) download(ctx context.Context, target string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", domain.FetchFailed(fmt.Errorf("build request: %w", err))
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", domain.FetchFailed(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", domain.FetchFailed(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))})
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, "", domain.FetchFailed(fmt.Errorf("read body: %w", err))
	}
	if len(data) > MaxFetchBytes {
		return nil, "", domain.FetchFailed(fmt.Errorf("body exceeds %d bytes", MaxFetchBytes))
	}
	if len(data) == 0 {
		return nil, "", domain.FetchFailed(fmt.Errorf("empty body"))
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return data, strings.TrimSpace(mime), nil
}
