package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildStaffToken(t *testing.T, issuer string, iat, nbf, exp time.Time) jwt.Token {
	t.Helper()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"back-office"}).
		Subject("staff-1").
		IssuedAt(iat).
		NotBefore(nbf).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	return token
}

func TestTokenValidatorAccepts(t *testing.T) {
	now := time.Now()
	token := buildStaffToken(t, "kiosk-api", now, now, now.Add(time.Minute))

	v := TokenValidator{Issuer: "kiosk-api", Audience: "back-office", ClockSkew: time.Second, Algorithm: jwa.HS256}
	require.NoError(t, v.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	token := buildStaffToken(t, "someone-else", now, now, now.Add(time.Minute))

	v := TokenValidator{Issuer: "kiosk-api", Audience: "back-office", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorExpired(t *testing.T) {
	now := time.Now()
	token := buildStaffToken(t, "kiosk-api", now.Add(-2*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Minute))

	v := TokenValidator{Issuer: "kiosk-api", Audience: "back-office", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorNotYetValid(t *testing.T) {
	now := time.Now()
	token := buildStaffToken(t, "kiosk-api", now, now.Add(5*time.Minute), now.Add(10*time.Minute))

	v := TokenValidator{Issuer: "kiosk-api", Audience: "back-office", Algorithm: jwa.HS256, ClockSkew: time.Second}
	require.Error(t, v.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorAlgorithmPinned(t *testing.T) {
	now := time.Now()
	token := buildStaffToken(t, "kiosk-api", now, now, now.Add(time.Minute))

	v := TokenValidator{Issuer: "kiosk-api", Audience: "back-office", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(token, jwa.RS256, now))
}
