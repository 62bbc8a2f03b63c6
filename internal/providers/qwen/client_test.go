package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

func TestGenerateImageReturnsURLWithoutDownloading(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client, err := NewClient(Options{
		APIKey:     "test",
		Watermark:  true,
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport.setJSONResponse(http.StatusOK, "/api/v1/services/aigc/multimodal-generation/generation", map[string]any{
		"output": map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": []any{
							map[string]any{"image": "https://example.com/generated/out.png"},
						},
					},
				},
			},
		},
		"usage":      map[string]any{"width": 1024, "height": 1024},
		"request_id": "req-123",
	})

	result, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:       "a red bicycle",
		Size:         "1664*928",
		PromptExtend: false,
	})
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if result.URL != "https://example.com/generated/out.png" {
		t.Fatalf("url = %q", result.URL)
	}
	if result.RequestID != "req-123" {
		t.Fatalf("request id = %q", result.RequestID)
	}
	if transport.gets != 0 {
		t.Fatalf("client downloaded the image; gets = %d", transport.gets)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	params := payload["parameters"].(map[string]any)
	if params["size"] != "1664*928" {
		t.Fatalf("size = %v", params["size"])
	}
	if params["prompt_extend"] != false {
		t.Fatalf("prompt_extend = %v, want false", params["prompt_extend"])
	}
	if params["watermark"] != true {
		t.Fatalf("watermark = %v, want true", params["watermark"])
	}
	if payload["model"] != "qwen-image-plus" {
		t.Fatalf("model = %v", payload["model"])
	}
}

func TestGenerateImageClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   any
		want   domain.Kind
		policy bool
	}{
		{"rate limited", http.StatusTooManyRequests, map[string]any{"code": "Throttling", "message": "slow down"}, domain.KindUpstreamRateLimited, false},
		{"content policy", http.StatusBadRequest, map[string]any{"code": "DataInspectionFailed", "message": "Input data may contain inappropriate content."}, domain.KindUpstreamRejected, true},
		{"server error", http.StatusInternalServerError, map[string]any{"message": "boom"}, domain.KindUpstreamUnavailable, false},
		{"empty choices", http.StatusOK, map[string]any{"output": map[string]any{"choices": []any{}}}, domain.KindEmptyResult, false},
		{"error in body", http.StatusOK, map[string]any{"code": "InvalidParameter", "message": "bad size"}, domain.KindUpstreamRejected, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			client, _ := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})
			transport.setJSONResponse(tc.status, "/api/v1/services/aigc/multimodal-generation/generation", tc.body)

			_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
			de, ok := domain.AsError(err)
			if !ok {
				t.Fatalf("expected domain error, got %v", err)
			}
			if de.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", de.Kind, tc.want)
			}
			if de.ContentPolicy != tc.policy {
				t.Fatalf("content policy = %v, want %v", de.ContentPolicy, tc.policy)
			}
		})
	}
}

func TestGenerateImageWithoutKey(t *testing.T) {
	client, _ := NewClient(Options{})
	if client.HasCredentials() {
		t.Fatalf("expected no credentials")
	}
	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if domain.KindOf(err) != domain.KindUpstreamRejected {
		t.Fatalf("kind = %s", domain.KindOf(err))
	}
}

type captureTransport struct {
	responses map[string]responseStub
	lastBody  []byte
	gets      int
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodGet {
		c.gets++
	}
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
		if stub, ok := c.responses[req.URL.Path]; ok {
			return stub.toResponse(), nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(status int, path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
