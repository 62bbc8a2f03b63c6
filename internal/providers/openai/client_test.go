package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGenerateImagesSendsParameters(t *testing.T) {
	var captured map[string]any
	client, _ := NewClient(Options{
		APIKey:       "sk-test",
		Organization: "org-1",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/v1/images/generations" {
				t.Fatalf("path = %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Fatalf("authorization header = %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("OpenAI-Organization") != "org-1" {
				t.Fatalf("organization header = %q", r.Header.Get("OpenAI-Organization"))
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"created":1,"data":[{"url":"https://oaidalle.example/img.png","revised_prompt":"a shiny red bicycle"}]}`), nil
		})},
	})

	data, err := client.GenerateImages(context.Background(), ImageRequest{
		Model:   "dall-e-3",
		Prompt:  "a red bicycle",
		N:       1,
		Size:    "1024x1024",
		Quality: "hd",
		Style:   "vivid",
	})
	if err != nil {
		t.Fatalf("GenerateImages returned error: %v", err)
	}
	if len(data) != 1 || data[0].URL != "https://oaidalle.example/img.png" {
		t.Fatalf("unexpected data: %+v", data)
	}
	if data[0].RevisedPrompt != "a shiny red bicycle" {
		t.Fatalf("revised prompt = %q", data[0].RevisedPrompt)
	}
	for key, want := range map[string]any{"model": "dall-e-3", "quality": "hd", "style": "vivid", "size": "1024x1024"} {
		if captured[key] != want {
			t.Fatalf("%s = %v, want %v", key, captured[key], want)
		}
	}
	if _, ok := captured["response_format"]; ok {
		t.Fatalf("response_format should be omitted when empty")
	}
}

func TestClientErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   domain.Kind
		policy bool
	}{
		{"content policy", http.StatusBadRequest, `{"error":{"message":"Your request was rejected as a result of our safety system.","type":"invalid_request_error","code":"content_policy_violation"}}`, domain.KindUpstreamRejected, true},
		{"bad size", http.StatusBadRequest, `{"error":{"message":"Invalid size","type":"invalid_request_error","code":null}}`, domain.KindUpstreamRejected, false},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, domain.KindUpstreamRateLimited, false},
		{"overloaded", http.StatusServiceUnavailable, `upstream connect error`, domain.KindUpstreamUnavailable, false},
		{"empty data", http.StatusOK, `{"created":1,"data":[]}`, domain.KindEmptyResult, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := NewClient(Options{
				APIKey: "k",
				HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
					return jsonResponse(tc.status, tc.body), nil
				})},
			})
			_, err := client.GenerateImages(context.Background(), ImageRequest{Model: "dall-e-3", Prompt: "p"})
			de, ok := domain.AsError(err)
			if !ok {
				t.Fatalf("expected domain error, got %v", err)
			}
			if de.Kind != tc.kind || de.ContentPolicy != tc.policy {
				t.Fatalf("kind = %s policy = %v, want %s %v", de.Kind, de.ContentPolicy, tc.kind, tc.policy)
			}
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	client, _ := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		})},
	})
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "gpt-4o"})
	if domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("kind = %s", domain.KindOf(err))
	}
}

func TestChatCompletionReturnsFirstChoice(t *testing.T) {
	client, _ := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			var body ChatRequest
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(string(raw), `"image_url":{"url":"https://x.test/a.png"}`) {
				t.Fatalf("image part not encoded: %s", raw)
			}
			return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"  {\"score\":7}  "}}]}`), nil
		})},
	})
	text, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: "compare"},
				{Type: "image_url", ImageURL: &ImageURL{URL: "https://x.test/a.png"}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if text != `{"score":7}` {
		t.Fatalf("text = %q", text)
	}
}
