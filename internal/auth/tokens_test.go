package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, nbf, exp time.Time) jwt.Token {
	t.Helper()
	tok, err := jwt.NewBuilder().
		JwtID("jti-1").
		Issuer(issuer).
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(nbf).
		NotBefore(nbf).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidator(t *testing.T) {
	now := time.Now()
	v := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.Validate(buildToken(t, "issuer", now, now.Add(time.Minute)), jwa.HS256, now))
	})
	t.Run("issuer mismatch", func(t *testing.T) {
		require.Error(t, v.Validate(buildToken(t, "other", now, now.Add(time.Minute)), jwa.HS256, now))
	})
	t.Run("expired", func(t *testing.T) {
		require.Error(t, v.Validate(buildToken(t, "issuer", now.Add(-2*time.Hour), now.Add(-time.Minute)), jwa.HS256, now))
	})
	t.Run("not yet valid", func(t *testing.T) {
		require.Error(t, v.Validate(buildToken(t, "issuer", now.Add(5*time.Minute), now.Add(10*time.Minute)), jwa.HS256, now))
	})
	t.Run("algorithm mismatch", func(t *testing.T) {
		require.Error(t, v.Validate(buildToken(t, "issuer", now, now.Add(time.Minute)), jwa.RS256, now))
	})
	t.Run("missing jti", func(t *testing.T) {
		tok, err := jwt.NewBuilder().Issuer("issuer").Audience([]string{"aud"}).Expiration(now.Add(time.Minute)).Build()
		require.NoError(t, err)
		require.Error(t, v.Validate(tok, jwa.HS256, now))
	})
}

func TestTokenAlgorithmRejectsUnsigned(t *testing.T) {
	tok, err := jwt.NewBuilder().Subject("sub").Build()
	require.NoError(t, err)
	unsigned, err := jwt.NewSerializer().Serialize(tok)
	require.NoError(t, err)
	_, err = tokenAlgorithm(string(unsigned))
	require.Error(t, err)
}
