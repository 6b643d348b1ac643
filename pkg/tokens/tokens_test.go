package tokens_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/replaycache"
	"github.com/oidcforge/core/pkg/tokenregistry"
	"github.com/oidcforge/core/pkg/tokens"
)

func newService(t *testing.T) (*tokens.Service, *jose.JWK) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key := jose.FromRSAPrivateKey(priv, "sig1", jose.UseSig, string(jose.RS256))

	svc := tokens.New(tokens.Config{
		Issuer:           "https://issuer.example",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  30 * 24 * time.Hour,
		IdentityTokenTTL: time.Hour,
		ClockSkew:        30 * time.Second,
		SigningKey:       key,
		SigningAlg:       jose.RS256,
	}, tokenregistry.New(), replaycache.New(10*time.Second, nil), nil, nil)

	return svc, key
}

func TestIssueAccessToken(t *testing.T) {
	svc, key := newService(t)
	grant := &model.AuthorizedGrant{ClientID: "client-1", Subject: "subject-1", Scopes: []string{"openid"}}

	compact, err := svc.IssueAccessToken(context.Background(), grant)
	require.NoError(t, err)

	set := &jose.JWKSet{Keys: []*jose.JWK{key.Public()}}
	tok, err := jose.Verify(compact, set)
	require.NoError(t, err)
	require.Equal(t, "subject-1", tok.Payload.Sub())
	require.Contains(t, tok.Payload.Aud(), "client-1")
}

func TestIssueIdentityToken(t *testing.T) {
	svc, key := newService(t)
	grant := &model.AuthorizedGrant{
		ClientID: "client-1",
		Subject:  "subject-1",
		AuthTime: time.Now(),
		Nonce:    "nonce-1",
	}

	compact, err := svc.IssueIdentityToken(context.Background(), grant, model.IdentityTokenHashInputs{})
	require.NoError(t, err)

	set := &jose.JWKSet{Keys: []*jose.JWK{key.Public()}}
	tok, err := jose.Verify(compact, set)
	require.NoError(t, err)
	require.Equal(t, "nonce-1", tok.Payload.Nonce())
}

func TestIssueIdentityToken_SetsAtHashAndCHash(t *testing.T) {
	svc, key := newService(t)
	grant := &model.AuthorizedGrant{ClientID: "client-1", Subject: "subject-1"}

	accessToken, err := svc.IssueAccessToken(context.Background(), grant)
	require.NoError(t, err)

	compact, err := svc.IssueIdentityToken(context.Background(), grant, model.IdentityTokenHashInputs{
		AccessToken: accessToken,
		Code:        "auth-code-1",
	})
	require.NoError(t, err)

	set := &jose.JWKSet{Keys: []*jose.JWK{key.Public()}}
	tok, err := jose.Verify(compact, set)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Payload.AtHash())
	require.NotEmpty(t, tok.Payload.CHash())

	expectedAtHash, err := jose.HalfHash(jose.RS256, accessToken)
	require.NoError(t, err)
	require.Equal(t, expectedAtHash, tok.Payload.AtHash())
}

func TestIssueIdentityToken_SetsAuthReqIDForCIBAPush(t *testing.T) {
	svc, key := newService(t)
	grant := &model.AuthorizedGrant{ClientID: "client-1", Subject: "subject-1", AuthReqID: "req-1"}

	compact, err := svc.IssueIdentityToken(context.Background(), grant, model.IdentityTokenHashInputs{})
	require.NoError(t, err)

	set := &jose.JWKSet{Keys: []*jose.JWK{key.Public()}}
	tok, err := jose.Verify(compact, set)
	require.NoError(t, err)
	require.Equal(t, "req-1", tok.Payload.AuthReqID())
}

func TestRotateRefreshToken_ReuseDetected(t *testing.T) {
	svc, key := newService(t)
	grant := &model.AuthorizedGrant{ClientID: "client-1", Subject: "subject-1", Scopes: []string{"openid"}}

	refresh, err := svc.IssueRefreshToken(context.Background(), grant)
	require.NoError(t, err)

	set := &jose.JWKSet{Keys: []*jose.JWK{key.Public()}}

	_, newRefresh, err := svc.RotateRefreshToken(context.Background(), refresh, set)
	require.NoError(t, err)
	require.NotEqual(t, refresh, newRefresh)

	// Presenting the already-rotated-away token again must fail.
	_, _, err = svc.RotateRefreshToken(context.Background(), refresh, set)
	require.ErrorIs(t, err, tokens.ErrRefreshTokenReused)

	// And the token it rotated into must now also be revoked, since the
	// whole family was poisoned.
	_, _, err = svc.RotateRefreshToken(context.Background(), newRefresh, set)
	require.ErrorIs(t, err, tokens.ErrRefreshTokenReused)
}
