package grant

import (
	"context"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
	"github.com/oidcforge/core/pkg/oidcerr"
)

// Rotator is the subset of pkg/tokens.Service's behavior this validator
// depends on, kept as an interface so grant doesn't import tokens directly
// (tokens already depends on jwtval and model, which grant also needs).
type Rotator interface {
	RotateRefreshToken(ctx context.Context, raw string, verificationKeys *jose.JWKSet) (*model.AuthorizedGrant, string, error)
}

// RefreshTokenValidator implements the refresh_token grant (§4.2.2),
// delegating token rotation and reuse detection to a Rotator.
type RefreshTokenValidator struct {
	Rotator          Rotator
	VerificationKeys *jose.JWKSet
}

func (RefreshTokenValidator) GrantType() string { return "refresh_token" }

func (v *RefreshTokenValidator) Validate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) (*model.AuthorizedGrant, error) {
	if req.RefreshToken == "" {
		return nil, oidcerr.New(oidcerr.InvalidRequest, "refresh_token is required")
	}

	grant, _, err := v.Rotator.RotateRefreshToken(ctx, req.RefreshToken, v.VerificationKeys)
	if err != nil {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "refresh token is invalid, expired, or already used")
	}
	if grant.ClientID != client.ClientID {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "refresh token was not issued to this client")
	}
	return grant, nil
}
