package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims carried by an access token.
type Claims struct {
	UserID string
	Role   string
}

// Service signs and parses HMAC access tokens.
type Service struct {
	Secret    []byte
	Issuer    string
	TokenTTL  time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TokenTTL <= 0 {
		return 15 * time.Minute
	}
	return s.TokenTTL
}

// SignAccessToken issues a signed token for the user.
func (s *Service) SignAccessToken(userID, role string) (string, error) {
	if s == nil || len(s.Secret) == 0 {
		return "", errors.New("auth: signing secret not configured")
	}
	now := s.now()
	builder := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl())).
		Claim("role", role)
	if s.Issuer != "" {
		builder = builder.Issuer(s.Issuer)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// ParseAccessToken verifies a token and returns its claims.
func (s *Service) ParseAccessToken(raw string) (Claims, error) {
	if s == nil || len(s.Secret) == 0 {
		return Claims{}, errors.New("auth: signing secret not configured")
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(s.ClockSkew))
	}
	if s.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.Issuer))
	}
	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return Claims{}, fmt.Errorf("auth: invalid token: %w", err)
	}
	claims := Claims{UserID: tok.Subject()}
	if v, ok := tok.Get("role"); ok {
		if role, ok := v.(string); ok {
			claims.Role = role
		}
	}
	if claims.UserID == "" {
		return Claims{}, errors.New("auth: token missing subject")
	}
	return claims, nil
}
