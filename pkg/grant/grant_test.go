package grant_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oidcforge/core/pkg/grant"
	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
)

type fakeClientInfo struct {
	clients map[string]*model.ClientInfo
}

func (f *fakeClientInfo) GetClient(ctx context.Context, clientID string) (*model.ClientInfo, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return nil, nil
	}
	return c, nil
}

type fakeCodeStore struct {
	codes map[string]*model.AuthorizationContext
}

func (f *fakeCodeStore) Save(ctx context.Context, ac *model.AuthorizationContext) error {
	f.codes[ac.Code] = ac
	return nil
}

func (f *fakeCodeStore) Consume(ctx context.Context, code string) (*model.AuthorizationContext, error) {
	ac, ok := f.codes[code]
	if !ok || ac.Consumed {
		return nil, nil
	}
	ac.Consumed = true
	return ac, nil
}

func (f *fakeCodeStore) Delete(ctx context.Context, code string) error {
	delete(f.codes, code)
	return nil
}

type fakeResourceManager struct {
	allowed map[string]bool
}

func (f *fakeResourceManager) ValidateResources(ctx context.Context, clientID string, resources []string) error {
	for _, r := range resources {
		if !f.allowed[r] {
			return fmt.Errorf("resource %q not registered for client", r)
		}
	}
	return nil
}

func TestProcessor_ClientCredentials(t *testing.T) {
	clients := &fakeClientInfo{clients: map[string]*model.ClientInfo{
		"client-1": {
			ClientID:                "client-1",
			ClientSecretHash:        hashForTest("s3cret"),
			TokenEndpointAuthMethod: "client_secret_basic",
			GrantTypes:              []string{"client_credentials"},
			Scopes:                  []string{"read", "write"},
		},
	}}

	p := grant.New(clients,
		[]grant.ClientAuthenticator{grant.NewSecretAuthenticator("client_secret_basic")},
		[]grant.GrantValidator{grant.ClientCredentialsValidator{}},
		nil,
	)

	out, err := p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		Scope:        "read",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, out.Scopes)
}

func TestProcessor_ClientCredentials_WrongSecret(t *testing.T) {
	clients := &fakeClientInfo{clients: map[string]*model.ClientInfo{
		"client-1": {
			ClientID:                "client-1",
			ClientSecretHash:        hashForTest("s3cret"),
			TokenEndpointAuthMethod: "client_secret_basic",
			GrantTypes:              []string{"client_credentials"},
			Scopes:                  []string{"read"},
		},
	}}

	p := grant.New(clients,
		[]grant.ClientAuthenticator{grant.NewSecretAuthenticator("client_secret_basic")},
		[]grant.GrantValidator{grant.ClientCredentialsValidator{}},
		nil,
	)

	_, err := p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "client-1",
		ClientSecret: "wrong",
	})
	require.Error(t, err)
}

func TestProcessor_AuthorizationCode_PKCE(t *testing.T) {
	codes := &fakeCodeStore{codes: map[string]*model.AuthorizationContext{
		"code-1": {
			Code:                "code-1",
			ClientID:            "client-1",
			RedirectURI:         "https://client.example/cb",
			Scopes:              []string{"openid"},
			Subject:             "subject-1",
			CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
			CodeChallengeMethod: "S256",
			ExpiresAt:           time.Now().Add(time.Minute),
		},
	}}
	clients := &fakeClientInfo{clients: map[string]*model.ClientInfo{
		"client-1": {
			ClientID:   "client-1",
			IsPublic:   true,
			TokenEndpointAuthMethod: "none",
			GrantTypes: []string{"authorization_code"},
			Scopes:     []string{"openid"},
		},
	}}

	p := grant.New(clients,
		[]grant.ClientAuthenticator{grant.NoneAuthenticator{}},
		[]grant.GrantValidator{&grant.AuthorizationCodeValidator{Codes: codes}},
		nil,
	)

	out, err := p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "client-1",
		Code:         "code-1",
		RedirectURI:  "https://client.example/cb",
		CodeVerifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
	})
	require.NoError(t, err)
	require.Equal(t, "subject-1", out.Subject)

	// The code must not be usable twice.
	_, err = p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "client-1",
		Code:         "code-1",
		RedirectURI:  "https://client.example/cb",
		CodeVerifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
	})
	require.Error(t, err)
}

func TestProcessor_UnauthorizedGrantType(t *testing.T) {
	clients := &fakeClientInfo{clients: map[string]*model.ClientInfo{
		"client-1": {
			ClientID:   "client-1",
			IsPublic:   true,
			TokenEndpointAuthMethod: "none",
			GrantTypes: []string{"authorization_code"},
		},
	}}

	p := grant.New(clients,
		[]grant.ClientAuthenticator{grant.NoneAuthenticator{}},
		[]grant.GrantValidator{grant.ClientCredentialsValidator{}},
		nil,
	)

	_, err := p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType: "client_credentials",
		ClientID:  "client-1",
	})
	require.Error(t, err)
}

func TestProcessor_ResourceValidator_Rejects(t *testing.T) {
	clients := &fakeClientInfo{clients: map[string]*model.ClientInfo{
		"client-1": {
			ClientID:                "client-1",
			ClientSecretHash:        hashForTest("s3cret"),
			TokenEndpointAuthMethod: "client_secret_basic",
			GrantTypes:              []string{"client_credentials"},
			Scopes:                  []string{"read"},
		},
	}}

	p := grant.New(clients,
		[]grant.ClientAuthenticator{grant.NewSecretAuthenticator("client_secret_basic")},
		[]grant.GrantValidator{grant.ClientCredentialsValidator{}},
		&fakeResourceManager{allowed: map[string]bool{"https://api.example/allowed": true}},
	)

	_, err := p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		Resource:     []string{"https://api.example/not-registered"},
	})
	require.Error(t, err)
}

func TestProcessor_ResourceValidator_Allows(t *testing.T) {
	clients := &fakeClientInfo{clients: map[string]*model.ClientInfo{
		"client-1": {
			ClientID:                "client-1",
			ClientSecretHash:        hashForTest("s3cret"),
			TokenEndpointAuthMethod: "client_secret_basic",
			GrantTypes:              []string{"client_credentials"},
			Scopes:                  []string{"read"},
		},
	}}

	p := grant.New(clients,
		[]grant.ClientAuthenticator{grant.NewSecretAuthenticator("client_secret_basic")},
		[]grant.GrantValidator{grant.ClientCredentialsValidator{}},
		&fakeResourceManager{allowed: map[string]bool{"https://api.example/allowed": true}},
	)

	out, err := p.Process(context.Background(), &oauthproto.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		Resource:     []string{"https://api.example/allowed"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://api.example/allowed"}, out.Resource)
}

func hashForTest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
