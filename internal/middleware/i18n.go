package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// SupportedLocales is the order the matcher prefers; the first entry is the
// fallback.
var SupportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
	language.French,
	language.German,
	language.Spanish,
	language.Portuguese,
	language.Italian,
	language.Japanese,
	language.Korean,
	language.SimplifiedChinese,
}

var localeMatcher = language.NewMatcher(SupportedLocales)

// I18N negotiates the request locale from X-Locale, then Accept-Language.
func I18N(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := detectLocale(r)
		w.Header().Set("Content-Language", locale.String())
		next.ServeHTTP(w, r.WithContext(ContextWithLocale(r.Context(), locale)))
	})
}

func detectLocale(r *http.Request) language.Tag {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return MatchLocale(v)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		tags, _, err := language.ParseAcceptLanguage(v)
		if err == nil && len(tags) > 0 {
			return match(tags...)
		}
	}
	return SupportedLocales[0]
}

// MatchLocale maps a free-form locale string onto SupportedLocales.
func MatchLocale(raw string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(raw), "_", "-"))
	if err != nil {
		return SupportedLocales[0]
	}
	return match(tag)
}

func match(tags ...language.Tag) language.Tag {
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return SupportedLocales[0]
	}
	return SupportedLocales[idx]
}

func ContextWithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeContextKey{}, tag)
}

func LocaleFromContext(ctx context.Context) language.Tag {
	if v, ok := ctx.Value(localeContextKey{}).(language.Tag); ok {
		return v
	}
	return SupportedLocales[0]
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
