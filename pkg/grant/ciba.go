package grant

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
	"github.com/oidcforge/core/pkg/oidcerr"
)

// CIBAValidator implements the urn:openid:params:grant-type:ciba grant: it
// resolves a pending backchannel authentication request and enforces the
// poll-mode state checks (authorization_pending, slow_down, expired_token)
// described by §5 of the CIBA module. slow_down is enforced with a
// per-auth_req_id rate.Limiter rather than comparing poll timestamps by
// hand, so a burst of retries right at the interval boundary can't slip
// through.
type CIBAValidator struct {
	Requests     model.BackChannelRequestStorage
	PollInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (CIBAValidator) GrantType() string { return "urn:openid:params:grant-type:ciba" }

func (v *CIBAValidator) pollLimiter(authReqID string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.limiters == nil {
		v.limiters = map[string]*rate.Limiter{}
	}
	l, ok := v.limiters[authReqID]
	if !ok {
		// The single burst token is left in place for the very first poll.
		l = rate.NewLimiter(rate.Every(v.PollInterval), 1)
		v.limiters[authReqID] = l
	}
	return l
}

func (v *CIBAValidator) forgetPollLimiter(authReqID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.limiters, authReqID)
}

func (v *CIBAValidator) Validate(ctx context.Context, req *oauthproto.TokenRequest, client *model.ClientInfo) (*model.AuthorizedGrant, error) {
	// Push mode clients receive their tokens directly via the notification
	// endpoint and must never reach the token endpoint for this grant.
	if client.BackchannelTokenDeliveryMode == "push" {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "push mode clients receive tokens directly")
	}

	if req.AuthReqID == "" {
		return nil, oidcerr.New(oidcerr.InvalidRequest, "auth_req_id is required")
	}

	bcReq, err := v.Requests.Get(ctx, req.AuthReqID)
	if err != nil || bcReq == nil {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "unknown auth_req_id")
	}
	if bcReq.ClientID != client.ClientID {
		return nil, oidcerr.New(oidcerr.InvalidGrant, "auth_req_id was not issued to this client")
	}

	now := time.Now()
	if now.After(bcReq.ExpiresAt) {
		_ = v.Requests.Delete(ctx, req.AuthReqID)
		v.forgetPollLimiter(req.AuthReqID)
		return nil, oidcerr.New(oidcerr.ExpiredToken, "auth_req_id has expired")
	}

	if !v.pollLimiter(req.AuthReqID).Allow() {
		return nil, oidcerr.New(oidcerr.SlowDown, "polling too frequently")
	}
	_ = v.Requests.UpdateLastPolledAt(ctx, req.AuthReqID)

	switch bcReq.Status {
	case model.CIBAStatusPending:
		return nil, oidcerr.New(oidcerr.AuthorizationPending, "the end user has not yet completed authentication")
	case model.CIBAStatusDenied:
		return nil, oidcerr.New(oidcerr.AccessDenied, "the end user denied the request")
	case model.CIBAStatusExpired:
		return nil, oidcerr.New(oidcerr.ExpiredToken, "auth_req_id has expired")
	}

	_ = v.Requests.Delete(ctx, req.AuthReqID)
	v.forgetPollLimiter(req.AuthReqID)

	return &model.AuthorizedGrant{
		ClientID: client.ClientID,
		Subject:  bcReq.Subject,
		Scopes:   bcReq.Scopes,
	}, nil
}
