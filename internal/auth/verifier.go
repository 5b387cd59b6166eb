package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a verified bearer token resolves to: the stable subject
// the identity provider assigned, plus whatever contact claims it carries.
type Identity struct {
	UID   string
	Phone string
	Email string
}

// TokenVerifier resolves a bearer credential to an Identity.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type claims struct {
	Phone string `json:"phone_number,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed with a shared server secret.
type JWTVerifier struct {
	secret        []byte
	tokenDuration time.Duration
}

func NewJWTVerifier(secret string, tokenDuration time.Duration) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), tokenDuration: tokenDuration}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return Identity{}, fmt.Errorf("invalid token")
	}
	return Identity{UID: c.Subject, Phone: c.Phone, Email: c.Email}, nil
}

// Generate issues a token for uid. Used by tooling and tests; production
// clients obtain tokens from the identity provider.
func (v *JWTVerifier) Generate(uid, phone string) (string, error) {
	now := time.Now()
	c := claims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "ride-share",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(v.secret)
}
