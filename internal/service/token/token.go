package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/makedist/asset_registry/internal/apperr"
	"github.com/makedist/asset_registry/internal/models"
)

const DefaultTTL = time.Hour

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified content of a session token.
type Identity struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (i *Identity) IsAdmin() bool { return i != nil && i.Role == models.RoleAdmin }

// Service mints and verifies stateless HS256 session tokens. Nothing is
// persisted: any replica holding the secret can verify a token, and there is
// no server-side revocation before expiry.
type Service struct {
	Secret []byte
	TTL    time.Duration
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func (s *Service) Issue(u *models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl())
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.Internal, "could not sign token", err)
	}
	return signed, exp, nil
}

// Verify is pure computation: no I/O, no blocking. Expired tokens are always
// rejected as expired regardless of signature validity.
func (s *Service) Verify(raw string) (*Identity, error) {
	if raw == "" {
		return nil, apperr.New(apperr.Unauthenticated, "missing token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.Unauthenticated, "token expired")
		}
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid token", err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, apperr.New(apperr.Unauthenticated, "invalid token subject")
	}
	return &Identity{
		UserID:   uint(id),
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
