package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ScopeSeal allows sealing the pending pool into a block.
const ScopeSeal = "ledger:seal"

const ctxTokenClaims = "identity.admin_claims"

// ErrInvalidSecret is returned when the presented admin secret does not match.
var ErrInvalidSecret = errors.New("invalid admin secret")

// AdminClaims are the JWT claims for an operator token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the claims grant scope.
func (c *AdminClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenIssuer issues and verifies admin tokens signed with HS256.
type TokenIssuer struct {
	secretHash []byte
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secretHash - bcrypt hash of the admin secret operators exchange for tokens
//	signingKey - HMAC key for token signatures
//	issuer     - the "iss" claim value
//	ttl        - token lifetime (default: 1 hour)
func NewTokenIssuer(secretHash, signingKey, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if _, err := bcrypt.Cost([]byte(secretHash)); err != nil {
		return nil, fmt.Errorf("admin secret hash: %w", err)
	}
	if len(signingKey) < 32 {
		return nil, fmt.Errorf("token signing key must be at least 32 bytes")
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secretHash: []byte(secretHash),
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}, nil
}

// HashSecret returns the bcrypt hash of secret, for writing into configuration.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Exchange checks secret against the configured hash and issues a token.
func (t *TokenIssuer) Exchange(secret string, scopes []string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(t.secretHash, []byte(secret)); err != nil {
		return "", ErrInvalidSecret
	}
	return t.Issue("admin", scopes)
}

// Issue creates a signed admin token for subject with the requested scopes.
func (t *TokenIssuer) Issue(subject string, scopes []string) (string, error) {
	now := time.Now().UTC()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an admin token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&AdminClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.signingKey, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// RequireToken returns a Gin middleware that enforces a Bearer admin token
// carrying scope.
func RequireToken(tokens *TokenIssuer, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}
		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "token lacks scope " + scope,
			})
			return
		}

		c.Set(ctxTokenClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the admin claims injected by RequireToken.
func ClaimsFromCtx(c *gin.Context) *AdminClaims {
	v, _ := c.Get(ctxTokenClaims)
	claims, _ := v.(*AdminClaims)
	return claims
}
