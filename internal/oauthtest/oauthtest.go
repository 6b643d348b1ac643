// Package oauthtest provides in-memory fixtures for the collaborator
// interfaces in pkg/model, shared across this module's package tests so
// each one isn't left hand-rolling its own fake client store and clock.
package oauthtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oidcforge/core/pkg/jose"
	"github.com/oidcforge/core/pkg/model"
)

// Clock is an injectable time source so grant/token-expiry tests don't
// depend on wall-clock timing.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock fixed at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the fixture's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fixture clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ClientStore is an in-memory model.ClientInfoProvider + model.ClientKeysProvider.
type ClientStore struct {
	mu      sync.Mutex
	clients map[string]*model.ClientInfo
	jwks    map[string]*jose.JWKSet
}

var _ model.ClientInfoProvider = (*ClientStore)(nil)
var _ model.ClientKeysProvider = (*ClientStore)(nil)

// NewClientStore returns an empty ClientStore.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: map[string]*model.ClientInfo{},
		jwks:    map[string]*jose.JWKSet{},
	}
}

// Register adds or replaces a client's metadata.
func (s *ClientStore) Register(client *model.ClientInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ClientID] = client
}

// RegisterJWKS associates a verification JWKS with a client_id, for
// private_key_jwt authentication tests.
func (s *ClientStore) RegisterJWKS(clientID string, set *jose.JWKSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jwks[clientID] = set
}

func (s *ClientStore) GetClient(ctx context.Context, clientID string) (*model.ClientInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("oauthtest: unknown client %q", clientID)
	}
	return c, nil
}

func (s *ClientStore) GetClientJWKS(ctx context.Context, clientID string) (*jose.JWKSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.jwks[clientID]
	if !ok {
		return nil, fmt.Errorf("oauthtest: no JWKS registered for client %q", clientID)
	}
	return set, nil
}

// ServiceKeys is a fixed model.AuthServiceKeysProvider.
type ServiceKeys struct {
	Signing    *jose.JWK
	Encryption *jose.JWKSet
}

var _ model.AuthServiceKeysProvider = (*ServiceKeys)(nil)

func (k *ServiceKeys) SigningKey(ctx context.Context) (*jose.JWK, error) {
	return k.Signing, nil
}

func (k *ServiceKeys) EncryptionKeys(ctx context.Context) (*jose.JWKSet, error) {
	return k.Encryption, nil
}

// Issuer is a fixed model.IssuerProvider.
type Issuer string

var _ model.IssuerProvider = Issuer("")

func (i Issuer) Issuer() string { return string(i) }

// AuthCodeStore is an in-memory model.AuthorizationCodeStore.
type AuthCodeStore struct {
	mu    sync.Mutex
	codes map[string]*model.AuthorizationContext
}

var _ model.AuthorizationCodeStore = (*AuthCodeStore)(nil)

// NewAuthCodeStore returns an empty AuthCodeStore.
func NewAuthCodeStore() *AuthCodeStore {
	return &AuthCodeStore{codes: map[string]*model.AuthorizationContext{}}
}

func (s *AuthCodeStore) Save(ctx context.Context, ac *model.AuthorizationContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[ac.Code] = ac
	return nil
}

func (s *AuthCodeStore) Consume(ctx context.Context, code string) (*model.AuthorizationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.codes[code]
	if !ok {
		return nil, fmt.Errorf("oauthtest: unknown authorization code")
	}
	if ac.Consumed {
		return nil, fmt.Errorf("oauthtest: authorization code already consumed")
	}
	if time.Now().After(ac.ExpiresAt) {
		return nil, fmt.Errorf("oauthtest: authorization code expired")
	}
	ac.Consumed = true
	return ac, nil
}

func (s *AuthCodeStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

// SessionStore is an in-memory model.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.AuthSession
}

var _ model.SessionStore = (*SessionStore)(nil)

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]*model.AuthSession{}}
}

func (s *SessionStore) Save(ctx context.Context, sess *model.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*model.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("oauthtest: unknown session %q", id)
	}
	return sess, nil
}

// ConsentStore is an in-memory model.UserConsentsProvider.
type ConsentStore struct {
	mu       sync.Mutex
	consents map[string]*model.UserConsent
}

var _ model.UserConsentsProvider = (*ConsentStore)(nil)

// NewConsentStore returns an empty ConsentStore.
func NewConsentStore() *ConsentStore {
	return &ConsentStore{consents: map[string]*model.UserConsent{}}
}

func consentKey(subject, clientID string) string { return subject + "|" + clientID }

func (s *ConsentStore) GetConsent(ctx context.Context, subject, clientID string) (*model.UserConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[consentKey(subject, clientID)]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (s *ConsentStore) SaveConsent(ctx context.Context, consent *model.UserConsent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consentKey(consent.Subject, consent.ClientID)] = consent
	return nil
}

// RecordingNotifier is an in-memory model.NotificationDeliveryService that
// records every delivery for assertions.
type RecordingNotifier struct {
	mu         sync.Mutex
	Deliveries []Delivery
}

// Delivery is one recorded call to Notify.
type Delivery struct {
	Endpoint string
	Token    string
	Payload  []byte
}

var _ model.NotificationDeliveryService = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Notify(ctx context.Context, endpoint, token string, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Deliveries = append(n.Deliveries, Delivery{Endpoint: endpoint, Token: token, Payload: payload})
	return nil
}

// Count returns the number of deliveries recorded so far.
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Deliveries)
}
