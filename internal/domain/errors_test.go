package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "ab...", Truncate("abédef", 3))
	assert.Equal(t, "abé...", Truncate("abédef", 4))
	assert.Equal(t, "...", Truncate("日本", 2))

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		n := rapid.IntRange(0, 64).Draw(t, "n")
		got := Truncate(s, n)
		if !utf8.ValidString(got) {
			t.Fatalf("Truncate(%q, %d) = %q is not valid UTF-8", s, n, got)
		}
		if len(strings.TrimSuffix(got, "...")) > n && len(s) > n {
			t.Fatalf("Truncate(%q, %d) = %q exceeds limit", s, n, got)
		}
	})
}

func TestUnsupportedRefDiagnosticIsValidUTF8(t *testing.T) {
	ref := strings.Repeat("x", 127) + "ü/image.png"
	e := UnsupportedRef(ref)
	assert.True(t, utf8.ValidString(e.Diagnostic))
	assert.Equal(t, strings.Repeat("x", 127)+"...", e.Diagnostic)
}
