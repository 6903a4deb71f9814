// Package auth verifies bearer tokens issued by the authentication service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"messaging-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a token into a verified identity.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (models.Identity, error)
}

// Claims carried by tokens from the authentication service. The subject is the account id.
type Claims struct {
	Role      string `json:"role"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-SHA256 tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (models.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.Atoi(claims.Subject)
	if err != nil || id <= 0 {
		return models.Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	role := models.Role(claims.Role)
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return models.Identity{ID: id, Role: role, DisplayName: claims.Name, AvatarURL: claims.AvatarURL}, nil
}

// Issue signs a token for identity. The service only verifies tokens; Issue
// exists for local tooling and tests.
func (v *JWTVerifier) Issue(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:      string(identity.Role),
		Name:      identity.DisplayName,
		AvatarURL: identity.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(identity.ID),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
