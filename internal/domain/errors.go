package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// Kind is the machine-readable failure class reported to callers.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindUpstreamRateLimited Kind = "upstream_rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindEmptyResult         Kind = "empty_result"
	KindUnsupportedRef      Kind = "unsupported_ref_format"
	KindFetchFailed         Kind = "fetch_failed"
	KindStorageWriteFailed  Kind = "storage_write_failed"
	KindMetadataWriteFailed Kind = "metadata_write_failed"
	KindMalformedVerdict    Kind = "malformed_verdict"
)

// Retryable reports whether a caller may retry the same request unchanged.
func (k Kind) Retryable() bool {
	switch k {
	case KindUpstreamRateLimited, KindUpstreamUnavailable, KindFetchFailed, KindStorageWriteFailed, KindMetadataWriteFailed:
		return true
	default:
		return false
	}
}

// Error carries a Kind plus enough context to diagnose the failure.
type Error struct {
	Kind     Kind
	Provider string
	// Field names the offending request field for validation failures.
	Field   string
	Message string
	// Diagnostic holds raw upstream text (a model reply, a response body) for
	// well-formed-looking responses that could not be used.
	Diagnostic    string
	ContentPolicy bool
	Err           error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func EmptyResult(provider, diagnostic string) *Error {
	return &Error{Kind: KindEmptyResult, Provider: provider, Message: "provider returned no image", Diagnostic: diagnostic}
}

func UnsupportedRef(ref string) *Error {
	return &Error{Kind: KindUnsupportedRef, Message: "image reference is neither an http(s) url nor an embedded data reference", Diagnostic: Truncate(ref, 128)}
}

func FetchFailed(err error) *Error {
	return &Error{Kind: KindFetchFailed, Message: "could not fetch image bytes", Err: err}
}

func StorageWriteFailed(key string, err error) *Error {
	return &Error{Kind: KindStorageWriteFailed, Message: "storage write failed for " + key, Err: err}
}

func MetadataWriteFailed(err error) *Error {
	return &Error{Kind: KindMetadataWriteFailed, Message: "metadata insert failed", Err: err}
}

func MalformedVerdict(message, raw string, err error) *Error {
	return &Error{Kind: KindMalformedVerdict, Message: message, Diagnostic: raw, Err: err}
}

func UpstreamUnavailable(provider string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Provider: provider, Message: "upstream unavailable", Err: err}
}

var contentPolicyMarkers = []string{
	"content_policy",
	"content policy",
	"safety system",
	"safety filter",
	"moderation",
	"nsfw",
	"flagged",
	"blocked",
	"prohibited",
	"inappropriate",
}

// IsContentPolicyMessage reports whether an upstream error message describes
// a content-policy refusal.
func IsContentPolicyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range contentPolicyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ClassifyHTTP maps an upstream HTTP status into the error taxonomy.
// Statuses below 400 are treated as unavailable since the caller only
// invokes this after deciding the response is unusable.
func ClassifyHTTP(provider string, status int, message string) *Error {
	message = Truncate(strings.TrimSpace(message), 512)
	e := &Error{Provider: provider, Message: fmt.Sprintf("http %d", status), Diagnostic: message}
	if message != "" {
		e.Message = fmt.Sprintf("http %d: %s", status, message)
	}
	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = KindUpstreamRateLimited
	case status >= 400 && status < 500:
		e.Kind = KindUpstreamRejected
		e.ContentPolicy = IsContentPolicyMessage(message)
	default:
		e.Kind = KindUpstreamUnavailable
	}
	return e
}

// ClassifyTransport maps a failed round-trip (dial, TLS, timeout, cancelled
// context) to UpstreamUnavailable. A *Error passes through unchanged.
func ClassifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	e := UpstreamUnavailable(provider, err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		e.Message = "upstream call exceeded its time limit"
	}
	return e
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
