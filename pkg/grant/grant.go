// Package grant implements the grant-processing state machine: composable
// client authenticators and per-grant-type authorization validators that
// together turn a token request into an AuthorizedGrant or a typed
// rejection.
package grant

import (
	"context"
	"crypto/subtle"

	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
	"github.com/oidcforge/core/pkg/oidcerr"
)

// ClientAuthenticator authenticates the client making a token request. Each
// supported token_endpoint_auth_method has its own implementation; Processor
// runs the configured authenticator whose Method matches the client's
// registered token_endpoint_auth_method.
type ClientAuthenticator interface {
	Method() string
	Authenticate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error
}

// GrantValidator validates the authorization-grant-specific parameters of a
// token request (the authorization code + PKCE, the refresh token, the
// CIBA auth_req_id, or — for client_credentials — nothing beyond client
// authentication) and resolves the resulting AuthorizedGrant.
type GrantValidator interface {
	GrantType() string
	Validate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) (*model.AuthorizedGrant, error)
}

// Processor composes client authentication, grant-type authorization, and
// scope/resource validation into the single token-endpoint evaluation
// described by §4.2.
type Processor struct {
	clientInfo model.ClientInfoProvider
	authn      []ClientAuthenticator
	grantTypes map[string]GrantValidator
	resources  model.ResourceManager
}

// New builds a Processor from its collaborators. resources may be nil, in
// which case the resource-validator step (§4.3) is skipped and RFC 8707
// resource indicators pass through unchecked.
func New(clientInfo model.ClientInfoProvider, authenticators []ClientAuthenticator, validators []GrantValidator, resources model.ResourceManager) *Processor {
	p := &Processor{
		clientInfo: clientInfo,
		authn:      authenticators,
		grantTypes: map[string]GrantValidator{},
		resources:  resources,
	}
	for _, v := range validators {
		p.grantTypes[v.GrantType()] = v
	}
	return p
}

// Process runs the full token-request evaluation: resolve client, pick and
// run the matching client authenticator, check the client is authorized for
// the requested grant_type, run the grant-type validator, reject with
// invalid_scope any requested scope the client is not registered for, then check
// any requested resource indicators against the resource manager (§4.3).
func (p *Processor) Process(ctx context.Context, req *oauthproto.TokenRequest) (*model.AuthorizedGrant, error) {
	if req.ClientID == "" {
		return nil, oidcerr.New(oidcerr.InvalidRequest, "client_id is required")
	}

	client, err := p.clientInfo.GetClient(ctx, req.ClientID)
	if err != nil || client == nil {
		return nil, oidcerr.New(oidcerr.InvalidClient, "unknown client")
	}

	if err := p.authenticate(ctx, req, client); err != nil {
		return nil, err
	}

	if !containsString(client.GrantTypes, req.GrantType) {
		return nil, oidcerr.New(oidcerr.UnauthorizedClient, "client is not authorized for this grant_type")
	}

	validator, ok := p.grantTypes[req.GrantType]
	if !ok {
		return nil, oidcerr.New(oidcerr.UnsupportedGrantType, "unsupported grant_type")
	}

	grant, err := validator.Validate(ctx, req, client)
	if err != nil {
		return nil, err
	}

	grant.Scopes, err = filterScopes(client, req.Scope, grant.Scopes)
	if err != nil {
		return nil, err
	}

	if p.resources != nil && len(grant.Resource) > 0 {
		if err := p.resources.ValidateResources(ctx, client.ClientID, grant.Resource); err != nil {
			return nil, oidcerr.Wrap(oidcerr.InvalidTarget, "resource indicator rejected", err)
		}
	}

	return grant, nil
}

func (p *Processor) authenticate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) error {
	method := client.TokenEndpointAuthMethod
	if method == "" {
		method = "client_secret_basic"
	}
	for _, a := range p.authn {
		if a.Method() == method {
			return a.Authenticate(ctx, req, client)
		}
	}
	return oidcerr.New(oidcerr.InvalidClient, "no authenticator configured for "+method)
}

func filterScopes(client *model.ClientInfo, requested string, fallback []string) ([]string, error) {
	requestedScopes := splitScope(requested)
	if len(requestedScopes) == 0 {
		if len(fallback) > 0 {
			requestedScopes = fallback
		} else {
			return client.Scopes, nil
		}
	}

	allowed := map[string]bool{}
	for _, s := range client.Scopes {
		allowed[s] = true
	}

	var granted []string
	for _, s := range requestedScopes {
		if !allowed[s] {
			return nil, oidcerr.New(oidcerr.InvalidScope, "scope not registered for client: "+s)
		}
		granted = append(granted, s)
	}
	return granted, nil
}

func splitScope(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// constantTimeEqual compares two secrets without leaking timing
// information, for use by client_secret_basic/client_secret_post
// authenticators (§7.3).
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
