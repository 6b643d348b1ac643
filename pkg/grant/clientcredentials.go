package grant

import (
	"context"

	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
)

// ClientCredentialsValidator implements the client_credentials grant
// (§4.2's machine-to-machine case): client authentication alone is
// sufficient authorization, so Validate only needs to build the grant.
type ClientCredentialsValidator struct{}

func (ClientCredentialsValidator) GrantType() string { return "client_credentials" }

func (ClientCredentialsValidator) Validate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) (*model.AuthorizedGrant, error) {
	return &model.AuthorizedGrant{
		ClientID: client.ClientID,
		Subject:  client.ClientID,
		Resource: req.Resource,
	}, nil
}
