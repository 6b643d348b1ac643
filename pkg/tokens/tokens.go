// Package tokens implements the access, refresh and identity token
// services: minting signed JWTs from an AuthorizedGrant and parsing/
// validating them back, including refresh-token rotation (§4.2.2/§4.2.3).
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/jwtval"
	"github.com/oidcforge/core/pkg/logger"
	"github.com/oidcforge/core/pkg/model"
)

// ErrRefreshTokenReused is returned when a refresh token whose jti is
// already marked Used or Revoked is presented again; its entire rotation
// family has been revoked as a side effect.
var ErrRefreshTokenReused = errors.New("tokens: refresh token reuse detected, family revoked")

// Config carries the lifetimes and signing material the token services need.
type Config struct {
	Issuer               string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	IdentityTokenTTL     time.Duration
	ClockSkew            time.Duration
	SigningKey           *jose.JWK
	SigningAlg           jose.SigningAlg
}

// Service mints and validates access, refresh and identity tokens.
type Service struct {
	cfg      Config
	registry model.TokenRegistry
	replay   model.ReplayCache
	codes    *AuthCodeReplayGuard
	log      *logger.Log
}

// New builds a token Service. codes may be nil, in which case jti's minted
// for an authorization_code grant are not recorded against the code for
// anti-replay cascading revocation (§4.2.4).
func New(cfg Config, registry model.TokenRegistry, replay model.ReplayCache, codes *AuthCodeReplayGuard, log *logger.Log) *Service {
	if log == nil {
		log = logger.NewSimple("tokens")
	}
	return &Service{cfg: cfg, registry: registry, replay: replay, codes: codes, log: log.New("tokens")}
}

// Issued bundles the tokens minted for a single grant evaluation.
type Issued struct {
	AccessToken  string
	RefreshToken string
	IdentityToken string
	ExpiresIn    int64
}

// IssueAccessToken mints a signed access token JWT for grant.
func (s *Service) IssueAccessToken(ctx context.Context, grant *model.AuthorizedGrant) (string, error) {
	now := time.Now()
	jti := uuid.NewString()

	payload := jose.NewPayload()
	payload.SetIss(s.cfg.Issuer)
	payload.SetSub(grant.Subject)
	payload.SetAud(append([]string{grant.ClientID}, grant.Resource...))
	payload.SetIat(now.Unix())
	payload.SetExp(now.Add(s.cfg.AccessTokenTTL).Unix())
	payload.SetJti(jti)
	payload.SetClientID(grant.ClientID)
	payload.SetScope(grant.Scopes)

	compact, err := jose.Sign(jose.Header{}, payload, s.cfg.SigningAlg, s.cfg.SigningKey)
	if err != nil {
		return "", err
	}

	if err := s.registry.Put(ctx, &model.TokenRecord{
		JTI:       jti,
		ClientID:  grant.ClientID,
		Subject:   grant.Subject,
		Status:    model.TokenStatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}); err != nil {
		return "", err
	}

	if s.codes != nil && grant.Code != "" {
		s.codes.RecordIssuedTokens(grant.Code, jti)
	}

	return compact, nil
}

// IssueIdentityToken mints a signed identity (id_token) JWT for grant. hash
// carries the previously-minted access token and/or authorization code this
// identity token is issued alongside, so at_hash/c_hash can be computed
// (§4.2.1); a non-empty grant.AuthReqID sets the CIBA push-mode auth_req_id
// claim (§4.4).
func (s *Service) IssueIdentityToken(ctx context.Context, grant *model.AuthorizedGrant, hash model.IdentityTokenHashInputs) (string, error) {
	now := time.Now()

	payload := jose.NewPayload()
	payload.SetIss(s.cfg.Issuer)
	payload.SetSub(grant.Subject)
	payload.SetAud([]string{grant.ClientID})
	payload.SetIat(now.Unix())
	payload.SetExp(now.Add(s.cfg.IdentityTokenTTL).Unix())
	payload.SetJti(uuid.NewString())
	payload.SetAuthTime(grant.AuthTime.Unix())
	payload.SetAcr(grant.ACR)
	payload.SetAmr(grant.AMR)
	if grant.Nonce != "" {
		payload.SetNonce(grant.Nonce)
	}
	if grant.SessionID != "" {
		payload.SetSid(grant.SessionID)
	}
	if grant.AuthReqID != "" {
		payload.SetAuthReqID(grant.AuthReqID)
	}

	if hash.AccessToken != "" {
		atHash, err := jose.HalfHash(s.cfg.SigningAlg, hash.AccessToken)
		if err != nil {
			return "", err
		}
		payload.SetAtHash(atHash)
	}
	if hash.Code != "" {
		cHash, err := jose.HalfHash(s.cfg.SigningAlg, hash.Code)
		if err != nil {
			return "", err
		}
		payload.SetCHash(cHash)
	}

	return jose.Sign(jose.Header{}, payload, s.cfg.SigningAlg, s.cfg.SigningKey)
}

// IssueRefreshToken mints a fresh refresh token, starting a new rotation
// family.
func (s *Service) IssueRefreshToken(ctx context.Context, grant *model.AuthorizedGrant) (string, error) {
	return s.issueRefreshToken(ctx, grant, uuid.NewString())
}

func (s *Service) issueRefreshToken(ctx context.Context, grant *model.AuthorizedGrant, familyID string) (string, error) {
	now := time.Now()
	jti := uuid.NewString()

	payload := jose.NewPayload()
	payload.SetIss(s.cfg.Issuer)
	payload.SetSub(grant.Subject)
	payload.SetAud([]string{grant.ClientID})
	payload.SetIat(now.Unix())
	payload.SetExp(now.Add(s.cfg.RefreshTokenTTL).Unix())
	payload.SetJti(jti)
	payload.SetClientID(grant.ClientID)
	payload.SetScope(grant.Scopes)
	payload.Set("family_id", familyID)

	compact, err := jose.Sign(jose.Header{}, payload, s.cfg.SigningAlg, s.cfg.SigningKey)
	if err != nil {
		return "", err
	}

	if err := s.registry.Put(ctx, &model.TokenRecord{
		JTI:       jti,
		ClientID:  grant.ClientID,
		Subject:   grant.Subject,
		Status:    model.TokenStatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		FamilyID:  familyID,
	}); err != nil {
		return "", err
	}

	if s.codes != nil && grant.Code != "" {
		s.codes.RecordIssuedTokens(grant.Code, jti)
	}

	return compact, nil
}

// RotateRefreshToken validates an incoming refresh token, marks it Used, and
// mints a new refresh token in the same rotation family. If the incoming
// token's jti is already Used or Revoked, the whole family is revoked and
// an error is returned — reuse of a rotated-away refresh token is treated
// as a signal the token chain has been compromised (§4.2.3).
func (s *Service) RotateRefreshToken(ctx context.Context, raw string, verificationKeys *jose.JWKSet) (*model.AuthorizedGrant, string, error) {
	valid, err := jwtval.Validate(ctx, raw, jwtval.Params{
		VerificationKeys: verificationKeys,
		ExpectedIssuer:   s.cfg.Issuer,
		ClockSkew:        s.cfg.ClockSkew,
	})
	if err != nil {
		return nil, "", err
	}

	jti := valid.Token.Payload.Jti()
	rec, err := s.registry.Get(ctx, jti)
	if err != nil {
		return nil, "", err
	}
	familyID, _ := valid.Token.Payload.Get("family_id")
	familyIDStr, _ := familyID.(string)

	if rec.Status == model.TokenStatusUsed || rec.Status == model.TokenStatusRevoked {
		s.log.Info("refresh token reuse detected, revoking family", "jti", jti, "family_id", familyIDStr)
		if familyIDStr != "" {
			_ = s.registry.RevokeFamily(ctx, familyIDStr)
		}
		return nil, "", ErrRefreshTokenReused
	}

	if err := s.registry.SetStatus(ctx, jti, model.TokenStatusUsed); err != nil {
		return nil, "", err
	}

	grant := &model.AuthorizedGrant{
		ClientID: valid.Token.Payload.ClientID(),
		Subject:  valid.Token.Payload.Sub(),
		Scopes:   valid.Token.Payload.Scope(),
	}

	newRefresh, err := s.issueRefreshToken(ctx, grant, familyIDStr)
	if err != nil {
		return nil, "", err
	}

	return grant, newRefresh, nil
}
