package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("invalid token subject")
)

// IdentitySigner issues HS256 tokens whose subject is the identity id.
type IdentitySigner struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

func NewIdentitySigner(secret []byte, issuer string, ttl, clockSkew time.Duration) *IdentitySigner {
	return &IdentitySigner{secret: secret, issuer: issuer, ttl: ttl, clockSkew: clockSkew}
}

func (s *IdentitySigner) TTL() time.Duration {
	return s.ttl
}

type IdentityClaims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
}

// Sign issues a token with sub=identityID and exp=now+ttl.
func (s *IdentitySigner) Sign(identityID, displayName string, now time.Time) (string, error) {
	if identityID == "" {
		return "", ErrInvalidSubject
	}
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-s.clockSkew)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		DisplayName: displayName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, issuer and time claims and returns the subject.
func (s *IdentitySigner) Parse(tokenStr string) (string, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidSubject
	}
	return claims.Subject, nil
}
