// Package jwttoken verifies the identity tokens issued by the account
// system. Tokens are HS256 and carry the principal's role and UUID in the
// subject claim.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "hatchseed/pkg/domain"
	dErrors "hatchseed/pkg/domain-errors"
)

// Claims represents the JWT claims for identity tokens.
type Claims struct {
	Role id.Role `json:"role"`
	Name string  `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into a principal.
func (c *Claims) Identity() (id.Identity, error) {
	if !c.Role.IsValid() {
		return id.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	sub, err := uuid.Parse(c.Subject)
	if err != nil || sub == uuid.Nil {
		return id.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return id.Identity{Role: c.Role, ID: sub, Name: c.Name}, nil
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// GenerateToken mints a token for who. Production tokens come from the
// account system; this exists for local development and tests.
func (s *JWTService) GenerateToken(who id.Identity, expiresIn time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: who.Role,
		Name: who.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
