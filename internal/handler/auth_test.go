package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omega-cyber/trust-fabric/internal/handler"
	"github.com/omega-cyber/trust-fabric/internal/identity"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestTokenIssuer(t *testing.T, secret string) *identity.TokenIssuer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	tokens, err := identity.NewTokenIssuer(string(hash), testSigningKey, "trustfabric-test", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return tokens
}

func setupAuthRouter(t *testing.T, tokens *identity.TokenIssuer) *ledgerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler.NewAuthHandler(tokens, zap.NewNop()).Register(r.Group("/api/v1"))
	return &ledgerFixture{router: r}
}

func TestAuthToken_200(t *testing.T) {
	tokens := newTestTokenIssuer(t, "operator-secret")
	f := setupAuthRouter(t, tokens)

	w := f.do(t, http.MethodPost, "/api/v1/auth/token", map[string]any{"secret": "operator-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode(t, w)
	if int(resp["expires_in"].(float64)) != 600 {
		t.Errorf("expires_in = %v, want 600", resp["expires_in"])
	}
	if resp["token_type"] != "Bearer" {
		t.Errorf("token_type = %v", resp["token_type"])
	}
	claims, err := tokens.Verify(resp["token"].(string))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if !claims.HasScope(identity.ScopeSeal) {
		t.Errorf("default scopes missing %s: %v", identity.ScopeSeal, claims.Scopes)
	}
}

func TestAuthToken_401_wrongSecret(t *testing.T) {
	f := setupAuthRouter(t, newTestTokenIssuer(t, "operator-secret"))

	w := f.do(t, http.MethodPost, "/api/v1/auth/token", map[string]any{"secret": "guess"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthToken_400(t *testing.T) {
	f := setupAuthRouter(t, newTestTokenIssuer(t, "operator-secret"))

	cases := []struct {
		name string
		body any
	}{
		{"invalid json", `{invalid`},
		{"missing secret", map[string]any{}},
		{"unknown scope", map[string]any{"secret": "operator-secret", "scopes": []string{"ledger:drop"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/auth/token", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}
