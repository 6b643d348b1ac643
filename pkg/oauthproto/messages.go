package oauthproto

// AuthorizationRequest is the parsed query of an OAuth 2.0 /authorize
// request, covering both the authorization_code flow and the parameters CIBA
// shares with it.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID             string
	RedirectURI          string
	Scope                string
	State                string
	Nonce                string
	CodeChallenge        string
	CodeChallengeMethod  string
	Resource             []string
	RequestedClaims      string
}

// TokenRequest is the parsed form body of a /token request. Which fields
// apply depends on GrantType.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string

	RefreshToken string
	Scope        string

	ClientID            string
	ClientSecret        string
	ClientAssertionType string
	ClientAssertion     string

	AuthReqID string // urn:openid:params:grant-type:ciba

	Resource []string
}

// TokenResponse is the JSON body returned from a successful /token request.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// IntrospectionRequest is the parsed form body of a /introspect request
// (RFC 7662).
type IntrospectionRequest struct {
	Token         string
	TokenTypeHint string
}

// IntrospectionResponse is the JSON body of a /introspect response.
type IntrospectionResponse struct {
	Active    bool     `json:"active"`
	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Subject   string   `json:"sub,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	JTI       string   `json:"jti,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
}

// RevocationRequest is the parsed form body of a /revoke request
// (RFC 7009).
type RevocationRequest struct {
	Token         string
	TokenTypeHint string
}

// BackchannelAuthenticationRequest is the parsed form body of a CIBA
// /bc-authorize request.
type BackchannelAuthenticationRequest struct {
	Scope                   string
	ClientNotificationToken string
	LoginHintToken          string
	IDTokenHint             string
	LoginHint               string
	BindingMessage          string
	RequestedExpiry         int64
	ClientID                string
}

// BackchannelAuthenticationResponse is the JSON body returned from a
// successful /bc-authorize request.
type BackchannelAuthenticationResponse struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int64  `json:"expires_in"`
	Interval  int64  `json:"interval,omitempty"`
}

// PushedTokenDelivery is the JSON body CIBA push mode POSTs to the client's
// notification endpoint.
type PushedTokenDelivery struct {
	AuthReqID    string `json:"auth_req_id"`
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}
