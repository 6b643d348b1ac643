package ciba_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oidcforge/core/pkg/ciba"
	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
)

type autoApprove struct {
	engine *ciba.Engine
	subject string
}

func (a *autoApprove) Authenticate(ctx context.Context, req *model.BackChannelAuthenticationRequest) error {
	return a.engine.Resolve(ctx, req.AuthReqID, model.CIBAStatusAuthenticated, a.subject)
}

type autoDeny struct {
	engine *ciba.Engine
}

func (a *autoDeny) Authenticate(ctx context.Context, req *model.BackChannelAuthenticationRequest) error {
	return a.engine.Resolve(ctx, req.AuthReqID, model.CIBAStatusDenied, "")
}

type fakeDelivery struct {
	delivered []delivery
}

type delivery struct {
	endpoint string
	payload  []byte
}

func (f *fakeDelivery) Notify(ctx context.Context, endpoint, token string, payload []byte) error {
	f.delivered = append(f.delivered, delivery{endpoint: endpoint, payload: payload})
	return nil
}

type fakeTokenIssuer struct{}

func (fakeTokenIssuer) IssueAccessToken(ctx context.Context, grant *model.AuthorizedGrant) (string, error) {
	return "access-" + grant.Subject, nil
}
func (fakeTokenIssuer) IssueIdentityToken(ctx context.Context, grant *model.AuthorizedGrant, hash model.IdentityTokenHashInputs) (string, error) {
	return "id-" + grant.Subject, nil
}
func (fakeTokenIssuer) IssueRefreshToken(ctx context.Context, grant *model.AuthorizedGrant) (string, error) {
	return "refresh-" + grant.Subject, nil
}

func TestEngine_PollMode_Authenticated(t *testing.T) {
	storage := ciba.NewStorage()

	var engine *ciba.Engine
	auth := &autoApprove{subject: "subject-1"}
	engine = ciba.New(ciba.Config{
		Storage:       storage,
		AuthHandler:   auth,
		Delivery:      &fakeDelivery{},
		TokenIssuer:   fakeTokenIssuer{},
		RequestExpiry: time.Minute,
	}, nil)
	auth.engine = engine

	client := &model.ClientInfo{ClientID: "client-1", BackchannelTokenDeliveryMode: "poll"}
	resp, err := engine.Authorize(context.Background(), client, &oauthproto.BackchannelAuthenticationRequest{Scope: "openid"}, 5*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AuthReqID)

	require.Eventually(t, func() bool {
		req, _ := storage.Get(context.Background(), resp.AuthReqID)
		return req != nil && req.Status == model.CIBAStatusAuthenticated
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_PollMode_Denied(t *testing.T) {
	storage := ciba.NewStorage()

	var engine *ciba.Engine
	auth := &autoDeny{}
	engine = ciba.New(ciba.Config{
		Storage:       storage,
		AuthHandler:   auth,
		Delivery:      &fakeDelivery{},
		TokenIssuer:   fakeTokenIssuer{},
		RequestExpiry: time.Minute,
	}, nil)
	auth.engine = engine

	client := &model.ClientInfo{ClientID: "client-1", BackchannelTokenDeliveryMode: "poll"}
	resp, err := engine.Authorize(context.Background(), client, &oauthproto.BackchannelAuthenticationRequest{Scope: "openid"}, 5*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		req, _ := storage.Get(context.Background(), resp.AuthReqID)
		return req != nil && req.Status == model.CIBAStatusDenied
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_PushMode_DeliversTokens(t *testing.T) {
	storage := ciba.NewStorage()
	delivery := &fakeDelivery{}

	var engine *ciba.Engine
	auth := &autoApprove{subject: "subject-1"}
	engine = ciba.New(ciba.Config{
		Storage:       storage,
		AuthHandler:   auth,
		Delivery:      delivery,
		TokenIssuer:   fakeTokenIssuer{},
		RequestExpiry: time.Minute,
	}, nil)
	auth.engine = engine

	client := &model.ClientInfo{
		ClientID:                              "client-1",
		BackchannelTokenDeliveryMode:          "push",
		BackchannelClientNotificationEndpoint: "https://client.example/ciba/notify",
	}
	resp, err := engine.Authorize(context.Background(), client, &oauthproto.BackchannelAuthenticationRequest{Scope: "openid"}, 5*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(delivery.delivered) == 1 }, time.Second, 5*time.Millisecond)

	require.Equal(t, "https://client.example/ciba/notify", delivery.delivered[0].endpoint)

	var payload oauthproto.PushedTokenDelivery
	require.NoError(t, json.Unmarshal(delivery.delivered[0].payload, &payload))
	require.Equal(t, "access-subject-1", payload.AccessToken)
	require.Equal(t, resp.AuthReqID, payload.AuthReqID)

	// Push-mode requests are removed from storage once delivered.
	req, _ := storage.Get(context.Background(), resp.AuthReqID)
	require.Nil(t, req)
}

func TestEngine_AwaitLongPoll_Timeout(t *testing.T) {
	storage := ciba.NewStorage()
	engine := ciba.New(ciba.Config{
		Storage:       storage,
		AuthHandler:   &blockingAuth{},
		Delivery:      &fakeDelivery{},
		TokenIssuer:   fakeTokenIssuer{},
		RequestExpiry: time.Minute,
	}, nil)

	client := &model.ClientInfo{ClientID: "client-1", BackchannelTokenDeliveryMode: "poll"}
	resp, err := engine.Authorize(context.Background(), client, &oauthproto.BackchannelAuthenticationRequest{Scope: "openid"}, 5*time.Second)
	require.NoError(t, err)

	_, ok := engine.AwaitLongPoll(context.Background(), resp.AuthReqID, 50*time.Millisecond)
	require.False(t, ok)
}

type blockingAuth struct{}

func (blockingAuth) Authenticate(ctx context.Context, req *model.BackChannelAuthenticationRequest) error {
	<-ctx.Done()
	return nil
}
