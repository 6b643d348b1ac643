package model

import (
	"context"

	"github.com/oidcforge/core/pkg/jose"
)

// ClientInfoProvider resolves registered-client metadata by client_id.
type ClientInfoProvider interface {
	GetClient(ctx context.Context, clientID string) (*ClientInfo, error)
}

// ClientKeysProvider resolves a client's verification keys, for
// private_key_jwt / client_secret_jwt client authentication.
type ClientKeysProvider interface {
	GetClientJWKS(ctx context.Context, clientID string) (*jose.JWKSet, error)
}

// AuthServiceKeysProvider resolves this authorization server's own signing
// and encryption key material.
type AuthServiceKeysProvider interface {
	SigningKey(ctx context.Context) (*jose.JWK, error)
	EncryptionKeys(ctx context.Context) (*jose.JWKSet, error)
}

// IssuerProvider returns the issuer identifier this server asserts in the
// iss claim of every token it mints.
type IssuerProvider interface {
	Issuer() string
}

// TokenRegistry tracks the lifecycle of every issued token's jti, so that
// refresh-token rotation and revocation/introspection can work without
// re-deriving state from the token's own claims.
type TokenRegistry interface {
	Put(ctx context.Context, rec *TokenRecord) error
	Get(ctx context.Context, jti string) (*TokenRecord, error)
	SetStatus(ctx context.Context, jti string, status TokenStatus) error
	// RevokeFamily marks every token sharing familyID as revoked, used when
	// refresh-token reuse is detected.
	RevokeFamily(ctx context.Context, familyID string) error
}

// ReplayCache rejects a (jti, not-yet-seen) token exactly once: Remember
// reports false if jti has already been recorded, true if this call
// recorded it for the first time.
type ReplayCache interface {
	Remember(ctx context.Context, jti string, ttl int64) (firstSeen bool, err error)
}

// AuthorizationCodeStore persists and atomically consumes authorization
// codes, enforcing the single-use invariant of the authorization_code grant.
type AuthorizationCodeStore interface {
	Save(ctx context.Context, ac *AuthorizationContext) error
	// Consume atomically loads and marks an authorization code used; it
	// returns an error if the code is unknown, expired, or already consumed.
	Consume(ctx context.Context, code string) (*AuthorizationContext, error)
	// Delete removes a code entry outright, used by the anti-replay
	// decorator once a replayed code has had its issued tokens revoked.
	Delete(ctx context.Context, code string) error
}

// ResourceManager validates the RFC 8707 resource indicators a token
// request names against what a client is registered to access — the
// resource-validator step of the token-endpoint pipeline (§4.3).
type ResourceManager interface {
	ValidateResources(ctx context.Context, clientID string, resources []string) error
}

// BackChannelRequestStorage persists CIBA authentication requests across
// their Pending/Authenticated/Denied/Expired lifecycle.
type BackChannelRequestStorage interface {
	Save(ctx context.Context, req *BackChannelAuthenticationRequest) error
	Get(ctx context.Context, authReqID string) (*BackChannelAuthenticationRequest, error)
	Delete(ctx context.Context, authReqID string) error
	UpdateLastPolledAt(ctx context.Context, authReqID string) error
}

// UserConsentsProvider resolves and records a subject's scope grants to a
// client, so repeat authorization requests can skip the consent screen.
type UserConsentsProvider interface {
	GetConsent(ctx context.Context, subject, clientID string) (*UserConsent, error)
	SaveConsent(ctx context.Context, consent *UserConsent) error
}

// SessionStore persists AuthSession records across the authorization
// request/callback round trip.
type SessionStore interface {
	Save(ctx context.Context, s *AuthSession) error
	Get(ctx context.Context, id string) (*AuthSession, error)
}

// UserDeviceAuthenticationHandler is implemented by the host application to
// drive out-of-band end-user authentication for a CIBA request: it is
// invoked once per backchannel authentication request and is responsible
// for eventually resolving the request to Authenticated or Denied by calling
// the CIBA engine's Resolve.
type UserDeviceAuthenticationHandler interface {
	Authenticate(ctx context.Context, req *BackChannelAuthenticationRequest) error
}

// NotificationDeliveryService delivers a CIBA push-mode token response or a
// ping-mode notification to the client's registered notification endpoint.
type NotificationDeliveryService interface {
	Notify(ctx context.Context, endpoint, clientNotificationToken string, payload []byte) error
}
