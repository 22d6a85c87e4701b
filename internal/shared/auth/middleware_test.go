package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/addis-gov/cas/internal/auth"
	"github.com/addis-gov/cas/internal/shared/config"
	"github.com/addis-gov/cas/internal/shared/types"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, issuer, secret string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   types.NewID().String(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "abebe",
		Roles:    []string{"officer"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token failed: %v", err)
	}
	return token
}

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, auth.Actor) {
	t.Helper()
	cfg := config.AuthConfig{JWTSecret: testSecret, Issuer: "cas-auth"}

	var seen auth.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetActor(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	Middleware(cfg)(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareResolvesActor(t *testing.T) {
	rec, actor := serve(t, "Bearer "+signToken(t, "cas-auth", testSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if actor.ID.IsZero() || actor.Username != "abebe" {
		t.Errorf("actor not resolved: %+v", actor)
	}
	if !actor.HasRole(auth.RoleOfficer) {
		t.Errorf("roles not resolved: %+v", actor.Roles)
	}
}

func TestMiddlewareRejectsWrongIssuer(t *testing.T) {
	rec, _ := serve(t, "Bearer "+signToken(t, "someone-else", testSecret))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong issuer status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsBadSignature(t *testing.T) {
	rec, _ := serve(t, "Bearer "+signToken(t, "cas-auth", "other-secret"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", rec.Code)
	}
}

func TestMiddlewarePassesAnonymousThrough(t *testing.T) {
	rec, actor := serve(t, "")
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want pass-through 200", rec.Code)
	}
	if !actor.ID.IsZero() {
		t.Error("anonymous requests must carry no actor")
	}
}
