package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the HS256 bearer token claims. Subject is the owner id of every
// image the caller persists.
type Claims struct {
	Locale string `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

type ownerKey struct{}

var errMissingSubject = errors.New("token has no subject")

// SignJWT issues an HS256 token for ownerID. A zero ttl yields a token
// without expiry.
func SignJWT(secret, ownerID, locale string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Locale: locale,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  ownerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyJWT accepts only HS256 tokens signed with secret that carry a subject.
func VerifyJWT(secret, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}

func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization")
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization")
				return
			}
			claims, err := VerifyJWT(secret, strings.TrimSpace(token))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			ctx := ContextWithOwnerID(r.Context(), claims.Subject)
			if claims.Locale != "" && r.Header.Get("X-Locale") == "" && r.Header.Get("Accept-Language") == "" {
				ctx = ContextWithLocale(ctx, MatchLocale(claims.Locale))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func OwnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}

func ContextWithOwnerID(ctx context.Context, ownerID string) context.Context {
	if strings.TrimSpace(ownerID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKey{}, ownerID)
}
