package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the registered claims of a parsed access token.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks algorithm, issuer, audience and time claims against now.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	if tok.JwtID() == "" {
		return errors.New("auth: token missing jti")
	}

	opts := []jwt.ValidateOption{jwt.WithClock(jwt.ClockFunc(func() time.Time { return now }))}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, opts...)
}

// accessClaims is what a verified access token carries.
type accessClaims struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

func (s *Service) signAccessToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	tok, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Subject(userID).
		Issuer(s.validator.Issuer).
		Audience([]string{s.validator.Audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.validator.ClockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func (s *Service) verifyAccessToken(token string) (accessClaims, error) {
	algorithm, err := tokenAlgorithm(token)
	if err != nil {
		return accessClaims{}, err
	}
	if algorithm != jwa.HS256 {
		return accessClaims{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return accessClaims{}, err
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return accessClaims{}, err
	}
	return accessClaims{Subject: parsed.Subject(), TokenID: parsed.JwtID(), ExpiresAt: parsed.Expiration()}, nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: token has no usable algorithm")
	}
	return alg, nil
}
