// Package ciba implements the Client-Initiated Backchannel Authentication
// delivery engine: a finite state machine (Pending → Authenticated/Denied/
// Expired) driven by the host application's end-user authentication
// handler, with poll, ping, and push delivery modes and a long-poll
// Notifier grounded on a per-request broadcast channel.
package ciba

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dchest/uniuri"

	"github.com/oidcforge/core/pkg/logger"
	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/oauthproto"
	"github.com/oidcforge/core/pkg/oidcerr"
)

// Engine drives the full CIBA lifecycle: creating requests, routing them to
// the host's authentication handler, and delivering the outcome per the
// client's chosen delivery mode.
type Engine struct {
	storage      model.BackChannelRequestStorage
	notifier     *Notifier
	authHandler  model.UserDeviceAuthenticationHandler
	delivery     model.NotificationDeliveryService
	tokenIssuer  TokenIssuer
	requestExpiry time.Duration
	log          *logger.Log
}

// TokenIssuer is the subset of pkg/tokens.Service's behavior push mode
// needs to mint the delivered token set once a request authenticates.
type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, grant *model.AuthorizedGrant) (string, error)
	IssueIdentityToken(ctx context.Context, grant *model.AuthorizedGrant, hash model.IdentityTokenHashInputs) (string, error)
	IssueRefreshToken(ctx context.Context, grant *model.AuthorizedGrant) (string, error)
}

// Config carries Engine's collaborators and tunables.
type Config struct {
	Storage       model.BackChannelRequestStorage
	AuthHandler   model.UserDeviceAuthenticationHandler
	Delivery      model.NotificationDeliveryService
	TokenIssuer   TokenIssuer
	RequestExpiry time.Duration
}

// New builds an Engine.
func New(cfg Config, log *logger.Log) *Engine {
	if log == nil {
		log = logger.NewSimple("ciba")
	}
	return &Engine{
		storage:       cfg.Storage,
		notifier:      NewNotifier(log),
		authHandler:   cfg.AuthHandler,
		delivery:      cfg.Delivery,
		tokenIssuer:   cfg.TokenIssuer,
		requestExpiry: cfg.RequestExpiry,
		log:           log.New("engine"),
	}
}

// Authorize creates a new backchannel authentication request, persists it
// Pending, and dispatches it to the host's authentication handler in the
// background. It returns the auth_req_id and interval the client should
// poll with in poll mode.
func (e *Engine) Authorize(ctx context.Context, client *model.ClientInfo, req *oauthproto.BackchannelAuthenticationRequest, pollInterval time.Duration) (*oauthproto.BackchannelAuthenticationResponse, error) {
	expiry := e.requestExpiry
	if req.RequestedExpiry > 0 {
		expiry = time.Duration(req.RequestedExpiry) * time.Second
	}

	bcReq := &model.BackChannelAuthenticationRequest{
		AuthReqID:                  uniuri.NewLen(uniuri.UUIDLen),
		ClientID:                   client.ClientID,
		Scopes:                     splitScope(req.Scope),
		LoginHintToken:             req.LoginHintToken,
		IDTokenHint:                req.IDTokenHint,
		LoginHint:                  req.LoginHint,
		BindingMessage:             req.BindingMessage,
		ClientNotificationToken:    req.ClientNotificationToken,
		ClientNotificationEndpoint: client.BackchannelClientNotificationEndpoint,
		DeliveryMode:               client.BackchannelTokenDeliveryMode,
		Status:                     model.CIBAStatusPending,
		CreatedAt:                  time.Now(),
		ExpiresAt:                  time.Now().Add(expiry),
	}

	if err := e.storage.Save(ctx, bcReq); err != nil {
		return nil, err
	}

	go e.authenticate(bcReq)

	resp := &oauthproto.BackchannelAuthenticationResponse{
		AuthReqID: bcReq.AuthReqID,
		ExpiresIn: int64(expiry.Seconds()),
	}
	if client.BackchannelTokenDeliveryMode == "poll" {
		resp.Interval = int64(pollInterval.Seconds())
	}
	return resp, nil
}

func (e *Engine) authenticate(bcReq *model.BackChannelAuthenticationRequest) {
	ctx := context.Background()
	if err := e.authHandler.Authenticate(ctx, bcReq); err != nil {
		e.log.Error(err, "user device authentication failed", "auth_req_id", bcReq.AuthReqID)
		e.Resolve(ctx, bcReq.AuthReqID, model.CIBAStatusDenied, "")
	}
}

// Resolve transitions a pending request to a terminal status. It is called
// by the host application's authentication handler once the end user has
// responded (or, internally, on expiry/denial). For push mode this also
// mints and delivers the token set; for ping mode it notifies the client's
// notification endpoint that a poll will now succeed; for poll mode it only
// wakes long-poll listeners.
func (e *Engine) Resolve(ctx context.Context, authReqID string, status model.CIBAStatus, subject string) error {
	bcReq, err := e.storage.Get(ctx, authReqID)
	if err != nil || bcReq == nil {
		return err
	}

	bcReq.Status = status
	bcReq.Subject = subject
	if err := e.storage.Save(ctx, bcReq); err != nil {
		return err
	}

	completion := CompletionDenied
	switch status {
	case model.CIBAStatusAuthenticated:
		completion = CompletionAuthenticated
	case model.CIBAStatusExpired:
		completion = CompletionExpired
	}

	switch bcReq.DeliveryMode {
	case "push":
		return e.deliverPush(ctx, bcReq, status)
	case "ping":
		e.notifier.Complete(authReqID, completion)
		return e.deliverPing(ctx, bcReq)
	default: // poll
		e.notifier.Complete(authReqID, completion)
		return nil
	}
}

func (e *Engine) deliverPush(ctx context.Context, bcReq *model.BackChannelAuthenticationRequest, status model.CIBAStatus) error {
	payload := &oauthproto.PushedTokenDelivery{AuthReqID: bcReq.AuthReqID}

	if status == model.CIBAStatusAuthenticated {
		grant := &model.AuthorizedGrant{
			ClientID:  bcReq.ClientID,
			Subject:   bcReq.Subject,
			Scopes:    bcReq.Scopes,
			AuthReqID: bcReq.AuthReqID,
		}
		access, err := e.tokenIssuer.IssueAccessToken(ctx, grant)
		if err != nil {
			return err
		}
		idToken, err := e.tokenIssuer.IssueIdentityToken(ctx, grant, model.IdentityTokenHashInputs{AccessToken: access})
		if err != nil {
			return err
		}
		refresh, err := e.tokenIssuer.IssueRefreshToken(ctx, grant)
		if err != nil {
			return err
		}
		payload.AccessToken = access
		payload.TokenType = "Bearer"
		payload.IDToken = idToken
		payload.RefreshToken = refresh
	} else {
		payload.Error = "access_denied"
		payload.ErrorDescription = "the end user denied the request"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Once delivered, push-mode requests have no further purpose: remove
	// them so a retried poll never re-observes this auth_req_id.
	defer e.storage.Delete(ctx, bcReq.AuthReqID)

	if err := e.delivery.Notify(ctx, bcReq.ClientNotificationEndpoint, bcReq.ClientNotificationToken, body); err != nil {
		problem := oidcerr.ToProblem(502, "push-mode token delivery failed")
		e.log.Error(err, "ciba push delivery failed", "auth_req_id", bcReq.AuthReqID, "problem_title", problem.Title)
		return err
	}
	return nil
}

func (e *Engine) deliverPing(ctx context.Context, bcReq *model.BackChannelAuthenticationRequest) error {
	body, err := json.Marshal(struct {
		AuthReqID string `json:"auth_req_id"`
	}{AuthReqID: bcReq.AuthReqID})
	if err != nil {
		return err
	}
	if err := e.delivery.Notify(ctx, bcReq.ClientNotificationEndpoint, bcReq.ClientNotificationToken, body); err != nil {
		problem := oidcerr.ToProblem(502, "ping-mode notification failed")
		e.log.Error(err, "ciba ping notification failed", "auth_req_id", bcReq.AuthReqID, "problem_title", problem.Title)
		return err
	}
	return nil
}

// AwaitLongPoll blocks until authReqID resolves or timeout elapses,
// supporting the long-polling variant of poll mode.
func (e *Engine) AwaitLongPoll(ctx context.Context, authReqID string, timeout time.Duration) (CompletionStatus, bool) {
	ch := e.notifier.Listen(authReqID)
	defer e.notifier.StopListening(authReqID, ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		status, _ := msg.(CompletionStatus)
		return status, true
	case <-timer.C:
		return 0, false
	case <-ctx.Done():
		return 0, false
	}
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
