// Package model defines the core domain types exchanged between an
// authorization server's HTTP surface and this library: client metadata,
// authorization sessions, issued grants, and the collaborator interfaces the
// host application implements for storage and delivery.
package model

import "time"

// ClientInfo is the subset of registered-client metadata the grant processor
// and token services need.
type ClientInfo struct {
	ClientID                string
	ClientSecretHash        string
	// ClientSecretJWTKey is the client's raw shared secret, used as the HMAC
	// key for client_secret_jwt client authentication (RFC 7523). Unlike
	// ClientSecretHash, this must be reversible, so hosts that never
	// register client_secret_jwt clients may leave it empty.
	ClientSecretJWTKey      []byte
	TokenEndpointAuthMethod string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scopes                  []string
	TLSClientAuthSubjectDN  string
	BackchannelTokenDeliveryMode string
	BackchannelClientNotificationEndpoint string
	// AllowedResources is the set of RFC 8707 resource indicators this
	// client may request; a ResourceManager reference implementation may
	// use it directly instead of an external resource registry.
	AllowedResources       []string
	IsPublic                bool
}

// AuthSession represents an in-progress end-user authentication, tracked
// between the authorization request and its resolution (consent, denial, or
// device-flow completion).
type AuthSession struct {
	ID          string
	ClientID    string
	Subject     string
	ACR         string
	AMR         []string
	AuthTime    time.Time
	Scopes      []string
	Nonce       string
	RedirectURI string
}

// AuthorizationContext is the record created at the start of the
// authorization_code flow and consumed at the token endpoint: it binds an
// authorization code to the request that produced it (§ authorization_code
// grant).
type AuthorizationContext struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	Subject             string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Resource            []string
	IssuedAt            time.Time
	ExpiresAt           time.Time
	Consumed            bool
}

// AuthorizedGrant is the outcome of a successful grant evaluation: the set
// of facts the token services need to mint access/refresh/identity tokens.
type AuthorizedGrant struct {
	ClientID  string
	Subject   string
	Scopes    []string
	Resource  []string
	AuthTime  time.Time
	ACR       string
	AMR       []string
	Nonce     string
	SessionID string
	// Code is the authorization code this grant was redeemed from, if any;
	// it is hashed into the identity token's c_hash claim and used to key
	// the authorization-code anti-replay decorator's issued-token record
	// (§4.2.1, §4.2.4).
	Code string
	// AuthReqID is the CIBA auth_req_id this grant was resolved from, set
	// on the urn:openid:params:jwt:claim:auth_req_id identity token claim
	// for push-mode delivery (§4.4).
	AuthReqID string
}

// IdentityTokenHashInputs carries the previously-minted artifacts
// IssueIdentityToken hashes into at_hash/c_hash, per OIDC Core §3.1.3.6.
// Leave a field empty when that artifact wasn't issued alongside this
// identity token.
type IdentityTokenHashInputs struct {
	AccessToken string
	Code        string
}

// CIBAStatus is the lifecycle state of a BackChannelAuthenticationRequest.
type CIBAStatus int

const (
	CIBAStatusPending CIBAStatus = iota
	CIBAStatusAuthenticated
	CIBAStatusDenied
	CIBAStatusExpired
)

// BackChannelAuthenticationRequest is a pending CIBA authentication request
// (§ the CIBA module), keyed by auth_req_id.
type BackChannelAuthenticationRequest struct {
	AuthReqID       string
	ClientID        string
	Scopes          []string
	LoginHintToken  string
	IDTokenHint     string
	LoginHint       string
	BindingMessage  string
	ClientNotificationToken string
	// ClientNotificationEndpoint is the URL ping/push delivery POSTs to,
	// copied from the client's registered
	// BackchannelClientNotificationEndpoint at Authorize time (§4.4).
	ClientNotificationEndpoint string
	RequestedExpiry time.Duration
	DeliveryMode    string
	Status          CIBAStatus
	Subject         string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	LastPolledAt    time.Time
}

// TokenStatus is the lifecycle state tracked by a TokenRegistry entry.
type TokenStatus int

const (
	TokenStatusUnknown TokenStatus = iota
	TokenStatusActive
	TokenStatusUsed
	TokenStatusRevoked
)

// TokenRecord is what a TokenRegistry stores per issued jti.
type TokenRecord struct {
	JTI       string
	ClientID  string
	Subject   string
	Status    TokenStatus
	IssuedAt  time.Time
	ExpiresAt time.Time
	// FamilyID links a refresh token to the chain it rotated from, so the
	// whole family can be revoked on reuse detection.
	FamilyID string
}

// UserConsent records a subject's prior grant of scopes to a client.
type UserConsent struct {
	Subject   string
	ClientID  string
	Scopes    []string
	GrantedAt time.Time
}
