package jwtval_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/jwtval"
	"github.com/oidcforge/core/pkg/replaycache"
)

func signedToken(t *testing.T, key *jose.JWK, now time.Time, mutate func(p *jose.Payload)) string {
	t.Helper()
	payload := jose.NewPayload()
	payload.SetIss("https://issuer.example")
	payload.SetAud([]string{"client-1"})
	payload.SetSub("subject-1")
	payload.SetJti("jti-1")
	payload.SetIat(now.Unix())
	payload.SetExp(now.Add(time.Hour).Unix())
	if mutate != nil {
		mutate(payload)
	}
	compact, err := jose.Sign(jose.Header{}, payload, jose.RS256, key)
	require.NoError(t, err)
	return compact
}

func testKey(t *testing.T) *jose.JWK {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jose.FromRSAPrivateKey(priv, "k1", jose.UseSig, "RS256")
}

func TestValidate_HappyPath(t *testing.T) {
	key := testKey(t)
	now := time.Now()
	compact := signedToken(t, key, now, nil)

	out, err := jwtval.Validate(context.Background(), compact, jwtval.Params{
		VerificationKeys: &jose.JWKSet{Keys: []*jose.JWK{key.Public()}},
		ExpectedIssuer:   "https://issuer.example",
		ExpectedAudience: "client-1",
		ClockSkew:        30 * time.Second,
		Now:              now,
	})
	require.NoError(t, err)
	require.Equal(t, "subject-1", out.Token.Payload.Sub())
}

func TestValidate_ExpiredToken(t *testing.T) {
	key := testKey(t)
	now := time.Now()
	compact := signedToken(t, key, now.Add(-2*time.Hour), nil)

	_, err := jwtval.Validate(context.Background(), compact, jwtval.Params{
		VerificationKeys: &jose.JWKSet{Keys: []*jose.JWK{key.Public()}},
		Now:              now,
	})
	require.Error(t, err)
	var verr *jwtval.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, jwtval.ErrTokenExpired, verr.Kind)
}

func TestValidate_IssuerMismatch(t *testing.T) {
	key := testKey(t)
	now := time.Now()
	compact := signedToken(t, key, now, nil)

	_, err := jwtval.Validate(context.Background(), compact, jwtval.Params{
		VerificationKeys: &jose.JWKSet{Keys: []*jose.JWK{key.Public()}},
		ExpectedIssuer:   "https://someone-else.example",
		Now:              now,
	})
	var verr *jwtval.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, jwtval.ErrInvalidIssuer, verr.Kind)
}

func TestValidate_AudienceMismatch(t *testing.T) {
	key := testKey(t)
	now := time.Now()
	compact := signedToken(t, key, now, nil)

	_, err := jwtval.Validate(context.Background(), compact, jwtval.Params{
		VerificationKeys: &jose.JWKSet{Keys: []*jose.JWK{key.Public()}},
		ExpectedAudience: "someone-else",
		Now:              now,
	})
	var verr *jwtval.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, jwtval.ErrInvalidAudience, verr.Kind)
}

func TestValidate_ReplayDetection(t *testing.T) {
	key := testKey(t)
	now := time.Now()
	compact := signedToken(t, key, now, nil)

	cache := replaycache.New(10*time.Second, nil)
	defer cache.Stop()

	params := jwtval.Params{
		VerificationKeys:   &jose.JWKSet{Keys: []*jose.JWK{key.Public()}},
		Now:                now,
		RequireReplayCheck: true,
		ReplayCache:        cache,
	}

	_, err := jwtval.Validate(context.Background(), compact, params)
	require.NoError(t, err)

	_, err = jwtval.Validate(context.Background(), compact, params)
	var verr *jwtval.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, jwtval.ErrReplayed, verr.Kind)
}

func TestValidate_InvalidSignature(t *testing.T) {
	key := testKey(t)
	otherKey := testKey(t)
	now := time.Now()
	compact := signedToken(t, key, now, nil)

	_, err := jwtval.Validate(context.Background(), compact, jwtval.Params{
		VerificationKeys: &jose.JWKSet{Keys: []*jose.JWK{otherKey.Public()}},
		Now:              now,
	})
	var verr *jwtval.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, jwtval.ErrInvalidSignature, verr.Kind)
}
