// Package auth provides the HTTP authentication middleware. Token issuance
// (login, refresh, password reset) is handled by an external session
// provider; this middleware only verifies bearer tokens and exposes the
// resulting actor on the request context.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/config"
	"github.com/addis-gov/cas/internal/shared/types"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Claims extends JWT registered claims with CAS-specific data.
type Claims struct {
	jwt.RegisteredClaims
	Username  string   `json:"username"`
	OfficeID  string   `json:"office_id,omitempty"`
	Roles     []string `json:"roles"`
	Superuser bool     `json:"superuser,omitempty"`
}

// Middleware creates JWT authentication middleware. Requests without a
// valid bearer token proceed with no actor in context; handlers deny
// access through the policy engine, which keeps the self-registration
// endpoint anonymous-allowed without a parallel unauthenticated router.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			}, opts...)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			actor := auth.Actor{
				ID:        types.ID(claims.Subject),
				Username:  claims.Username,
				OfficeID:  types.ID(claims.OfficeID),
				Superuser: claims.Superuser,
			}
			for _, name := range claims.Roles {
				if role, ok := auth.ParseRole(name); ok {
					actor.Roles = append(actor.Roles, role)
				}
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor extracts the actor from request context. The zero Actor means
// the request is unauthenticated.
func GetActor(ctx context.Context) auth.Actor {
	actor, ok := ctx.Value(actorContextKey).(auth.Actor)
	if !ok {
		return auth.Actor{}
	}
	return actor
}

// WithActor returns a context carrying the actor; used by tests.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
