package rest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/platform/requestctx"
)

// Identity headers sent by the embedding client.
const (
	playerIDHeader    = "X-Player-ID"
	playerTokenHeader = "X-Player-Token"
)

// Authenticate extracts the player identity from request headers and stores
// it in the request context. When secret is non-empty, a signed token proving
// the identity is required; without a secret the header is trusted as-is,
// matching deployments where a fronting gateway already authenticated the
// player.
func Authenticate(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID := strings.TrimSpace(r.Header.Get(playerIDHeader))
			if playerID == "" {
				WriteError(w, apperrors.New(apperrors.CodeUnauthorized, "player identity is required"))
				return
			}
			if secret != "" {
				if err := verifyPlayerToken(r.Header.Get(playerTokenHeader), playerID, secret); err != nil {
					WriteError(w, err)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithPlayerID(r.Context(), playerID)))
		})
	}
}

// verifyPlayerToken checks an HMAC-signed token whose subject must match the
// claimed player id.
func verifyPlayerToken(raw, playerID, secret string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperrors.New(apperrors.CodeUnauthorized, "player token is required")
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return apperrors.Wrap(apperrors.CodeUnauthorized, "player token is invalid", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject != playerID {
		return apperrors.New(apperrors.CodeUnauthorized, "player token does not match identity")
	}
	return nil
}
