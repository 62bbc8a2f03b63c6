// Package imageref handles canonical image references: absolute http(s) URLs
// and self-describing data: references (mime type + base64 payload).
package imageref

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const dataPrefix = "data:"

// DefaultMIME is used when a provider declares no mime type.
const DefaultMIME = "image/png"

// IsURL reports whether ref is an absolute http(s) URL with a host.
func IsURL(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// IsData reports whether ref looks like a data: reference. It does not
// validate the payload; use Decode for that.
func IsData(ref string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), dataPrefix)
}

// Encode wraps raw bytes as a base64 data: reference.
func Encode(mime string, data []byte) string {
	return EncodeBase64(mime, base64.StdEncoding.EncodeToString(data))
}

// EncodeBase64 wraps an already-encoded payload as a data: reference.
func EncodeBase64(mime, payload string) string {
	return dataPrefix + normalizeMIME(mime) + ";base64," + payload
}

// Decode splits a data: reference into its mime type and decoded bytes.
func Decode(ref string) (string, []byte, error) {
	ref = strings.TrimSpace(ref)
	if !IsData(ref) {
		return "", nil, errors.New("imageref: not a data reference")
	}
	header, payload, ok := strings.Cut(ref[len(dataPrefix):], ",")
	if !ok {
		return "", nil, errors.New("imageref: data reference missing payload separator")
	}
	mime, params, _ := strings.Cut(header, ";")
	if !strings.Contains(strings.ToLower(params), "base64") {
		return "", nil, errors.New("imageref: only base64 data references are supported")
	}
	data, err := decodeBase64(payload)
	if err != nil {
		return "", nil, fmt.Errorf("imageref: decode payload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("imageref: empty data payload")
	}
	if mime == "" {
		mime = DefaultMIME
	}
	return strings.ToLower(mime), data, nil
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(payload)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "":
		return DefaultMIME
	case "image/jpg":
		return "image/jpeg"
	case "png", "jpeg", "webp", "gif":
		return "image/" + mime
	case "jpg":
		return "image/jpeg"
	}
	return mime
}
