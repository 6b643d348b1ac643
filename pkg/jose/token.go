package jose

import (
	"bytes"
	"encoding/json"
)

// Header is the JOSE header shared by JWS and JWE compact serializations
// (§3). Enc is only meaningful on JWE headers; the AES-GCM-KW iv/tag header
// parameters (RFC 7518 §4.7) are not fields of Header but are carried by the
// JWE's own wire header.
type Header struct {
	Alg string `json:"alg,omitempty"`
	Enc string `json:"enc,omitempty"`
	Kid string `json:"kid,omitempty"`
	Typ string `json:"typ,omitempty"`
	Cty string `json:"cty,omitempty"`
}

// Payload is a free-form mapping from claim name to JSON value (§3), with
// typed accessors for the registered claims this spec names.
type Payload struct {
	claims map[string]any
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{claims: map[string]any{}}
}

// Set assigns an arbitrary claim.
func (p *Payload) Set(name string, value any) *Payload {
	if p.claims == nil {
		p.claims = map[string]any{}
	}
	p.claims[name] = value
	return p
}

// Get retrieves an arbitrary claim.
func (p *Payload) Get(name string) (any, bool) {
	if p == nil || p.claims == nil {
		return nil, false
	}
	v, ok := p.claims[name]
	return v, ok
}

func (p *Payload) getString(name string) string {
	v, _ := p.Get(name)
	s, _ := v.(string)
	return s
}

func (p *Payload) getNumber(name string) int64 {
	v, _ := p.Get(name)
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func (p *Payload) getStringSlice(name string) []string {
	v, _ := p.Get(name)
	switch s := v.(type) {
	case []string:
		return s
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Registered claim accessors (§3).
func (p *Payload) Iss() string        { return p.getString("iss") }
func (p *Payload) SetIss(v string)    { p.Set("iss", v) }
func (p *Payload) Sub() string        { return p.getString("sub") }
func (p *Payload) SetSub(v string)    { p.Set("sub", v) }
func (p *Payload) Exp() int64         { return p.getNumber("exp") }
func (p *Payload) SetExp(v int64)     { p.Set("exp", v) }
func (p *Payload) Iat() int64         { return p.getNumber("iat") }
func (p *Payload) SetIat(v int64)     { p.Set("iat", v) }
func (p *Payload) Nbf() int64         { return p.getNumber("nbf") }
func (p *Payload) SetNbf(v int64)     { p.Set("nbf", v) }
func (p *Payload) Jti() string        { return p.getString("jti") }
func (p *Payload) SetJti(v string)    { p.Set("jti", v) }
func (p *Payload) AuthTime() int64    { return p.getNumber("auth_time") }
func (p *Payload) SetAuthTime(v int64) { p.Set("auth_time", v) }
func (p *Payload) Nonce() string      { return p.getString("nonce") }
func (p *Payload) SetNonce(v string)  { p.Set("nonce", v) }
func (p *Payload) ClientID() string   { return p.getString("client_id") }
func (p *Payload) SetClientID(v string) { p.Set("client_id", v) }
func (p *Payload) Amr() []string      { return p.getStringSlice("amr") }
func (p *Payload) SetAmr(v []string)  { p.Set("amr", v) }
func (p *Payload) Acr() string        { return p.getString("acr") }
func (p *Payload) SetAcr(v string)    { p.Set("acr", v) }
func (p *Payload) Sid() string        { return p.getString("sid") }
func (p *Payload) SetSid(v string)    { p.Set("sid", v) }
func (p *Payload) Azp() string        { return p.getString("azp") }
func (p *Payload) SetAzp(v string)    { p.Set("azp", v) }
func (p *Payload) AtHash() string     { return p.getString("at_hash") }
func (p *Payload) SetAtHash(v string) { p.Set("at_hash", v) }
func (p *Payload) CHash() string      { return p.getString("c_hash") }
func (p *Payload) SetCHash(v string)  { p.Set("c_hash", v) }

// AuthReqID and SetAuthReqID carry CIBA's
// urn:openid:params:jwt:claim:auth_req_id identity token claim (§4.4).
func (p *Payload) AuthReqID() string     { return p.getString("urn:openid:params:jwt:claim:auth_req_id") }
func (p *Payload) SetAuthReqID(v string) { p.Set("urn:openid:params:jwt:claim:auth_req_id", v) }

// Aud is represented on the wire as either a single string or an array; this
// accessor always normalizes to a slice.
func (p *Payload) Aud() []string { return p.getStringSlice("aud") }
func (p *Payload) SetAud(v []string) {
	if len(v) == 1 {
		p.Set("aud", v[0])
		return
	}
	p.Set("aud", v)
}

// Scope, per §6.1, may be serialized as a space-separated string or an array.
func (p *Payload) Scope() []string {
	v, _ := p.Get("scope")
	if s, ok := v.(string); ok {
		return splitScope(s)
	}
	return p.getStringSlice("scope")
}
func (p *Payload) SetScope(v []string) { p.Set("scope", joinScope(v)) }

// RequestedClaims carries the optional serialized requested_claims object.
func (p *Payload) RequestedClaims() (json.RawMessage, bool) {
	v, ok := p.Get("requested_claims")
	if !ok {
		return nil, false
	}
	switch rc := v.(type) {
	case json.RawMessage:
		return rc, true
	default:
		b, err := json.Marshal(rc)
		if err != nil {
			return nil, false
		}
		return b, true
	}
}
func (p *Payload) SetRequestedClaims(v json.RawMessage) { p.Set("requested_claims", v) }

// MarshalJSON renders the payload as a flat JSON object.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p.claims == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.claims)
}

// UnmarshalJSON populates the payload from a flat JSON object, using
// json.Number so integer-valued claims (exp, iat, nbf) round-trip exactly.
func (p *Payload) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	p.claims = m
	return nil
}

func splitScope(s string) []string {
	if s == "" {
		return nil
	}
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

func joinScope(v []string) string {
	out := ""
	for i, s := range v {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// Token is a parsed JWT: the two halves described in §3.
type Token struct {
	Header  Header
	Payload *Payload
}
