// Package jwtval implements the JWT validator described in §4.1.4: given a
// compact JWT string and a set of validation parameters, it runs the fixed
// pipeline of decode, optional decrypt-then-reparse, signature verification,
// time-window checks, issuer/audience checks and replay-cache consultation,
// producing either a ValidJWT or a typed *ValidationError.
package jwtval

import (
	"context"
	"time"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/model"
)

// ErrorKind discriminates why validation failed.
type ErrorKind string

const (
	ErrInvalidToken     ErrorKind = "invalid_token"
	ErrTokenExpired     ErrorKind = "token_expired"
	ErrInvalidSignature ErrorKind = "invalid_signature"
	ErrInvalidIssuer    ErrorKind = "invalid_issuer"
	ErrInvalidAudience  ErrorKind = "invalid_audience"
	ErrReplayed         ErrorKind = "replayed"
	ErrMissingClaim     ErrorKind = "missing_claim"
)

// ValidationError reports why a JWT failed validation.
type ValidationError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ValidationError) Error() string { return string(e.Kind) + ": " + e.Msg }

func fail(kind ErrorKind, msg string) error {
	return &ValidationError{Kind: kind, Msg: msg}
}

// Params configures a single Validate call. DecryptionKey is only needed
// when the token under validation is a nested JWE(JWS); for a bare JWS,
// leave it nil.
type Params struct {
	VerificationKeys  *jose.JWKSet
	DecryptionKey     *jose.JWK
	ExpectedIssuer    string
	ExpectedAudience  string
	ClockSkew         time.Duration
	Now               time.Time
	RequireReplayCheck bool
	ReplayCache       model.ReplayCache
	// ReplayTTLSeconds is the ttl passed to ReplayCache.Remember; if zero,
	// it is computed from the token's own exp claim relative to Now.
	ReplayTTLSeconds int64
}

// ValidJWT is the result of a successful Validate call.
type ValidJWT struct {
	Token *jose.Token
}

// Validate runs the fixed validation pipeline against raw.
func Validate(ctx context.Context, raw string, p Params) (*ValidJWT, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	if looksLikeJWE(raw) {
		if p.DecryptionKey == nil {
			return nil, fail(ErrInvalidToken, "token is encrypted but no decryption key was supplied")
		}
		payload, err := jose.DecryptJWT(raw, p.DecryptionKey)
		if err != nil {
			return nil, fail(ErrInvalidToken, "decryption failed")
		}
		return validateClaimsOnly(payload, now, p)
	}

	tok, err := jose.Verify(raw, p.VerificationKeys)
	if err != nil {
		return nil, fail(ErrInvalidSignature, err.Error())
	}

	if verr := validateTimeWindow(tok.Payload, now, p.ClockSkew); verr != nil {
		return nil, verr
	}
	if verr := validateIssuerAudience(tok.Payload, p); verr != nil {
		return nil, verr
	}
	if verr := checkReplay(ctx, tok.Payload, now, p); verr != nil {
		return nil, verr
	}

	return &ValidJWT{Token: tok}, nil
}

func validateClaimsOnly(payload *jose.Payload, now time.Time, p Params) (*ValidJWT, error) {
	if verr := validateTimeWindow(payload, now, p.ClockSkew); verr != nil {
		return nil, verr
	}
	if verr := validateIssuerAudience(payload, p); verr != nil {
		return nil, verr
	}
	if verr := checkReplay(context.Background(), payload, now, p); verr != nil {
		return nil, verr
	}
	return &ValidJWT{Token: &jose.Token{Payload: payload}}, nil
}

func validateTimeWindow(payload *jose.Payload, now time.Time, skew time.Duration) error {
	if payload.Exp() == 0 {
		return fail(ErrMissingClaim, "exp")
	}
	exp := time.Unix(payload.Exp(), 0)
	if now.After(exp.Add(skew)) {
		return fail(ErrTokenExpired, "token has expired")
	}
	if nbf := payload.Nbf(); nbf != 0 {
		notBefore := time.Unix(nbf, 0)
		if now.Before(notBefore.Add(-skew)) {
			return fail(ErrInvalidToken, "token not yet valid")
		}
	}
	return nil
}

func validateIssuerAudience(payload *jose.Payload, p Params) error {
	if p.ExpectedIssuer != "" && payload.Iss() != p.ExpectedIssuer {
		return fail(ErrInvalidIssuer, "issuer mismatch")
	}
	if p.ExpectedAudience != "" {
		match := false
		for _, aud := range payload.Aud() {
			if aud == p.ExpectedAudience {
				match = true
				break
			}
		}
		if !match {
			return fail(ErrInvalidAudience, "audience mismatch")
		}
	}
	return nil
}

func checkReplay(ctx context.Context, payload *jose.Payload, now time.Time, p Params) error {
	if !p.RequireReplayCheck {
		return nil
	}
	if p.ReplayCache == nil {
		return fail(ErrInvalidToken, "replay check required but no replay cache configured")
	}
	jti := payload.Jti()
	if jti == "" {
		return fail(ErrMissingClaim, "jti")
	}

	ttl := p.ReplayTTLSeconds
	if ttl == 0 {
		ttl = payload.Exp() - now.Unix()
		if ttl < 0 {
			ttl = 0
		}
	}

	firstSeen, err := p.ReplayCache.Remember(ctx, jti, ttl)
	if err != nil {
		return fail(ErrInvalidToken, "replay cache error: "+err.Error())
	}
	if !firstSeen {
		return fail(ErrReplayed, "token has already been used")
	}
	return nil
}

func looksLikeJWE(compact string) bool {
	dots := 0
	for i := 0; i < len(compact); i++ {
		if compact[i] == '.' {
			dots++
		}
	}
	return dots == 4
}
