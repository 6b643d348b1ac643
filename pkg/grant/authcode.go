package grant

import (
	"context"

	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
	"github.com/oidcforge/core/pkg/oidcerr"
)

// AuthorizationCodeValidator validates the authorization_code grant,
// including PKCE verification and byte-exact redirect_uri comparison
// (§4.2.1).
type AuthorizationCodeValidator struct {
	Codes model.AuthorizationCodeStore
}

func (v *AuthorizationCodeValidator) GrantType() string { return "authorization_code" }

func (v *AuthorizationCodeValidator) Validate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) (*model.AuthorizedGrant, error) {
	if req.Code == "" {
		return nil, oidcerr.New(oidcerr.InvalidRequest, "code is required")
	}

	ac, err := v.Codes.Consume(ctx, req.Code)
	if err != nil || ac == nil {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "authorization code is invalid, expired, or already used")
	}

	if ac.ClientID != client.ClientID {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "authorization code was not issued to this client")
	}

	// redirect_uri must match byte-for-byte against the value used at the
	// authorization request, per RFC 6749 §4.1.3.
	if ac.RedirectURI != req.RedirectURI {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "redirect_uri does not match")
	}

	if !oauthproto.VerifyPKCE(req.CodeVerifier, ac.CodeChallenge, ac.CodeChallengeMethod) {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "PKCE verification failed")
	}

	return &model.AuthorizedGrant{
		ClientID: client.ClientID,
		Subject:  ac.Subject,
		Scopes:   ac.Scopes,
		Resource: ac.Resource,
		Nonce:    ac.Nonce,
		Code:     ac.Code,
	}, nil
}
