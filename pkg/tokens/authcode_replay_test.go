package tokens_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oidcforge/core/pkg/model"
	"github.com/oidcforge/core/pkg/tokenregistry"
	"github.com/oidcforge/core/pkg/tokens"
)

type fakeCodeStore struct {
	codes map[string]*model.AuthorizationContext
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: map[string]*model.AuthorizationContext{}}
}

func (f *fakeCodeStore) Save(ctx context.Context, ac *model.AuthorizationContext) error {
	f.codes[ac.Code] = ac
	return nil
}

func (f *fakeCodeStore) Consume(ctx context.Context, code string) (*model.AuthorizationContext, error) {
	ac, ok := f.codes[code]
	if !ok {
		return nil, fmt.Errorf("unknown code")
	}
	if ac.Consumed {
		return nil, fmt.Errorf("code already consumed")
	}
	ac.Consumed = true
	return ac, nil
}

func (f *fakeCodeStore) Delete(ctx context.Context, code string) error {
	delete(f.codes, code)
	return nil
}

func TestAuthCodeReplayGuard_FirstConsumeSucceeds(t *testing.T) {
	store := newFakeCodeStore()
	store.codes["code-1"] = &model.AuthorizationContext{Code: "code-1", ExpiresAt: time.Now().Add(time.Minute)}

	guard := tokens.NewAuthCodeReplayGuard(store, tokenregistry.New())

	ac, err := guard.Consume(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "code-1", ac.Code)
}

func TestAuthCodeReplayGuard_ReplayRevokesIssuedTokens(t *testing.T) {
	store := newFakeCodeStore()
	store.codes["code-1"] = &model.AuthorizationContext{Code: "code-1", ExpiresAt: time.Now().Add(time.Minute)}

	registry := tokenregistry.New()
	guard := tokens.NewAuthCodeReplayGuard(store, registry)

	_, err := guard.Consume(context.Background(), "code-1")
	require.NoError(t, err)

	require.NoError(t, registry.Put(context.Background(), &model.TokenRecord{JTI: "jti-access", Status: model.TokenStatusActive}))
	require.NoError(t, registry.Put(context.Background(), &model.TokenRecord{JTI: "jti-refresh", Status: model.TokenStatusActive}))
	guard.RecordIssuedTokens("code-1", "jti-access")
	guard.RecordIssuedTokens("code-1", "jti-refresh")

	// A second redemption of the same code is a replay: every token minted
	// from the first redemption must be revoked.
	_, err = guard.Consume(context.Background(), "code-1")
	require.ErrorIs(t, err, tokens.ErrAuthorizationCodeReplayed)

	rec1, _ := registry.Get(context.Background(), "jti-access")
	rec2, _ := registry.Get(context.Background(), "jti-refresh")
	require.Equal(t, model.TokenStatusRevoked, rec1.Status)
	require.Equal(t, model.TokenStatusRevoked, rec2.Status)

	// And a third attempt finds nothing left to replay.
	_, err = guard.Consume(context.Background(), "code-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, tokens.ErrAuthorizationCodeReplayed)
}

func TestAuthCodeReplayGuard_UnknownCodeIsNotAReplay(t *testing.T) {
	store := newFakeCodeStore()
	guard := tokens.NewAuthCodeReplayGuard(store, tokenregistry.New())

	_, err := guard.Consume(context.Background(), "never-issued")
	require.Error(t, err)
	require.NotErrorIs(t, err, tokens.ErrAuthorizationCodeReplayed)
}
