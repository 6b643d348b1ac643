package tokens

import (
	"context"
	"errors"
	"sync"

	"github.com/oidcforge/core/pkg/model"
)

// ErrAuthorizationCodeReplayed is returned when a code already redeemed
// through this guard is presented a second time; every jti minted from its
// first redemption has been revoked as a side effect.
var ErrAuthorizationCodeReplayed = errors.New("tokens: authorization code replayed, issued tokens revoked")

// AuthCodeReplayGuard decorates a model.AuthorizationCodeStore with the
// anti-replay behavior described by §4.2.4: it remembers which jti's were
// minted from each code's single legitimate redemption, and on any further
// redemption attempt of that same code, revokes every one of them via the
// token registry and deletes the code entry before reporting the replay —
// a second token request against an already-used code is treated as a
// signal the code leaked and everything minted from it is compromised.
type AuthCodeReplayGuard struct {
	codes    model.AuthorizationCodeStore
	registry model.TokenRegistry

	mu     sync.Mutex
	issued map[string][]string // code -> jtis minted from its redemption
}

var _ model.AuthorizationCodeStore = (*AuthCodeReplayGuard)(nil)

// NewAuthCodeReplayGuard wraps codes, recording issued jti's into an
// in-memory map and revoking them through registry on replay.
func NewAuthCodeReplayGuard(codes model.AuthorizationCodeStore, registry model.TokenRegistry) *AuthCodeReplayGuard {
	return &AuthCodeReplayGuard{codes: codes, registry: registry, issued: map[string][]string{}}
}

func (g *AuthCodeReplayGuard) Save(ctx context.Context, ac *model.AuthorizationContext) error {
	return g.codes.Save(ctx, ac)
}

// Consume redeems code through the wrapped store. If the wrapped store
// refuses the redemption (unknown, expired, or already consumed) and this
// guard previously recorded jti's issued from a legitimate redemption of
// the same code, that is a replay: every recorded jti is revoked, the code
// entry is deleted, and ErrAuthorizationCodeReplayed is returned.
func (g *AuthCodeReplayGuard) Consume(ctx context.Context, code string) (*model.AuthorizationContext, error) {
	ac, err := g.codes.Consume(ctx, code)
	if err == nil && ac != nil {
		return ac, nil
	}

	g.mu.Lock()
	jtis, seen := g.issued[code]
	delete(g.issued, code)
	g.mu.Unlock()

	if !seen {
		return nil, err
	}

	for _, jti := range jtis {
		_ = g.registry.SetStatus(ctx, jti, model.TokenStatusRevoked)
	}
	_ = g.codes.Delete(ctx, code)
	return nil, ErrAuthorizationCodeReplayed
}

func (g *AuthCodeReplayGuard) Delete(ctx context.Context, code string) error {
	g.mu.Lock()
	delete(g.issued, code)
	g.mu.Unlock()
	return g.codes.Delete(ctx, code)
}

// RecordIssuedTokens appends jti to the set of tokens minted from code's
// redemption, so a future replay of code can revoke it. Called by the
// token services as they mint each token for an authorization_code grant.
func (g *AuthCodeReplayGuard) RecordIssuedTokens(code string, jti string) {
	if code == "" || jti == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued[code] = append(g.issued[code], jti)
}
