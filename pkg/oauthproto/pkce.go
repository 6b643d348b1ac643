// Package oauthproto holds the OAuth 2.0 / OpenID Connect wire types
// (authorization, token, introspection, revocation and CIBA request and
// response bodies) and the PKCE helpers used to verify an
// authorization_code grant (RFC 7636).
package oauthproto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE code_challenge_method values.
const (
	CodeChallengeMethodPlain = "plain"
	CodeChallengeMethodS256  = "S256"
)

// VerifyPKCE checks a code_verifier against the code_challenge recorded at
// authorization time (§4.2.5). An empty codeChallenge means the
// authorization request did not use PKCE, in which case verification
// trivially succeeds; per-client PKCE enforcement policy is the grant
// processor's concern, not this helper's.
func VerifyPKCE(codeVerifier, codeChallenge, codeChallengeMethod string) bool {
	if codeChallenge == "" {
		return true
	}
	if codeVerifier == "" {
		return false
	}

	computed := computeChallenge(codeChallengeMethod, codeVerifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(codeChallenge)) == 1
}

func computeChallenge(method, verifier string) string {
	if method == CodeChallengeMethodS256 {
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:])
	}
	return verifier
}
