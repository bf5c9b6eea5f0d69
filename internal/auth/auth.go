// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"photohub/internal/models"
)

// Claims carried by every access token. The registered ID (jti) is what
// logout revokes.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	revoked    RevocationStore
	now        func() time.Time
}

func NewAuthenticator(cfg models.AuthConfig, revoked RevocationStore) (*Authenticator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("auth.NewAuthenticator: secret key is required")
	}
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Authenticator{
		secret:     []byte(cfg.SecretKey),
		ttl:        cfg.TokenTTL,
		bcryptCost: cost,
		revoked:    revoked,
		now:        time.Now,
	}, nil
}

func (a *Authenticator) IssueToken(userID, email string) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: sign: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature, expiry and revocation.
func (a *Authenticator) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	const op = "auth.VerifyToken"

	claims, err := a.parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: revocation lookup: %w", op, err)
	}
	if revoked {
		return nil, fmt.Errorf("%s: %w: token has been revoked", op, models.ErrInvalidToken)
	}
	return claims, nil
}

// Revoke blacklists the token until its own expiry.
func (a *Authenticator) Revoke(ctx context.Context, tokenString string) error {
	const op = "auth.Revoke"

	claims, err := a.parse(tokenString)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	until := a.now().Add(a.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := a.revoked.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *Authenticator) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", models.ErrInvalidToken)
	}
	return claims, nil
}

func (a *Authenticator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth.HashPassword: %w: %v", models.ErrValidation, err)
	}
	return string(hash), nil
}

func (a *Authenticator) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
