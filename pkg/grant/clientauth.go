package grant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/jwtval"
	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
	"github.com/oidcforge/core/pkg/oidcerr"
)

// NoneAuthenticator is used for public clients that authenticate with no
// shared secret (token_endpoint_auth_method = "none").
type NoneAuthenticator struct{}

func (NoneAuthenticator) Method() string { return "none" }

func (NoneAuthenticator) Authenticate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error {
	if !client.IsPublic {
		return oidcerr.New(oidcerr.InvalidClient, "confidential client must authenticate")
	}
	return nil
}

// SecretAuthenticator validates a client_secret presented either via HTTP
// Basic auth (client_secret_basic) or the request body
// (client_secret_post); callers configure which by passing the right
// Method.
type SecretAuthenticator struct {
	method string
}

// NewSecretAuthenticator builds a SecretAuthenticator for method, which
// must be "client_secret_basic" or "client_secret_post".
func NewSecretAuthenticator(method string) *SecretAuthenticator {
	return &SecretAuthenticator{method: method}
}

func (a *SecretAuthenticator) Method() string { return a.method }

func (a *SecretAuthenticator) Authenticate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error {
	if req.ClientSecret == "" {
		return oidcerr.New(oidcerr.InvalidClient, "client_secret is required")
	}
	if !constantTimeEqual(hashSecret(req.ClientSecret), client.ClientSecretHash) {
		return oidcerr.New(oidcerr.InvalidClient, "client authentication failed")
	}
	return nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// PrivateKeyJWTAuthenticator validates a client_assertion JWT signed with
// the client's own registered key (private_key_jwt, RFC 7523).
type PrivateKeyJWTAuthenticator struct {
	ClientKeys model.ClientKeysProvider
	Audience   string
}

func (a *PrivateKeyJWTAuthenticator) Method() string { return "private_key_jwt" }

func (a *PrivateKeyJWTAuthenticator) Authenticate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error {
	return a.verify(ctx, req, client)
}

func (a *PrivateKeyJWTAuthenticator) verify(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error {
	if req.ClientAssertion == "" {
		return oidcerr.New(oidcerr.InvalidClient, "client_assertion is required")
	}
	keys, err := a.ClientKeys.GetClientJWKS(ctx, client.ClientID)
	if err != nil {
		return oidcerr.New(oidcerr.InvalidClient, "unable to resolve client keys")
	}

	valid, err := jwtval.Validate(ctx, req.ClientAssertion, jwtval.Params{
		VerificationKeys: keys,
		ExpectedIssuer:   client.ClientID,
		ExpectedAudience: a.Audience,
	})
	if err != nil {
		return oidcerr.New(oidcerr.InvalidClient, "client assertion validation failed")
	}
	if valid.Token.Payload.Sub() != client.ClientID {
		return oidcerr.New(oidcerr.InvalidClient, "client assertion sub must equal client_id")
	}
	return nil
}

// ClientSecretJWTAuthenticator validates a client_assertion HMAC-signed with
// the client's own secret (client_secret_jwt, RFC 7523).
type ClientSecretJWTAuthenticator struct {
	Audience string
}

func (a *ClientSecretJWTAuthenticator) Method() string { return "client_secret_jwt" }

func (a *ClientSecretJWTAuthenticator) Authenticate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error {
	if req.ClientAssertion == "" {
		return oidcerr.New(oidcerr.InvalidClient, "client_assertion is required")
	}
	if len(client.ClientSecretJWTKey) == 0 {
		return oidcerr.New(oidcerr.InvalidClient, "client is not configured for client_secret_jwt")
	}

	key := jose.FromOctKey(client.ClientSecretJWTKey, client.ClientID, jose.UseSig, string(jose.HS256))
	valid, err := jwtval.Validate(ctx, req.ClientAssertion, jwtval.Params{
		VerificationKeys: &jose.JWKSet{Keys: []*jose.JWK{key}},
		ExpectedIssuer:   client.ClientID,
		ExpectedAudience: a.Audience,
	})
	if err != nil {
		return oidcerr.New(oidcerr.InvalidClient, "client assertion validation failed")
	}
	if valid.Token.Payload.Sub() != client.ClientID {
		return oidcerr.New(oidcerr.InvalidClient, "client assertion sub must equal client_id")
	}
	return nil
}
