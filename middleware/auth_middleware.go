package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"foodshare-api/model"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

var ErrInvalidToken = errors.New("invalid authorization token")

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// FirebaseVerifier checks Firebase ID tokens issued to the mobile app.
type FirebaseVerifier struct {
	Client *auth.Client
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (model.Identity, error) {
	token, err := v.Client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	name, _ := token.Claims["name"].(string)
	return model.NewIdentity(token.UID, name), nil
}

// JWTVerifier accepts HS256 tokens signed with a shared secret. Used for local runs and tests.
type JWTVerifier struct {
	Secret []byte
}

type identityClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (model.Identity, error) {
	var claims identityClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil || !token.Valid {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return model.NewIdentity(claims.Subject, claims.Name), nil
}

// IssueToken signs a token that JWTVerifier accepts.
func (v *JWTVerifier) IssueToken(userID, displayName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the caller's identity.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}
		if authenticate(c, verifier) {
			c.Next()
		}
	}
}

// OptionalAuth lets anonymous requests through. A request that does carry a
// token must carry a valid one; its identity is stored like AuthMiddleware does.
func OptionalAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if authenticate(c, verifier) {
			c.Next()
		}
	}
}

func authenticate(c *gin.Context, verifier TokenVerifier) bool {
	idToken, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(idToken) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token not provided"})
		return false
	}

	identity, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(idToken))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
		return false
	}

	c.Set(identityKey, identity)
	return true
}

// IdentityFrom returns the identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}
