package jose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
)

// HalfHash computes the at_hash/c_hash value for value, per OIDC Core
// §3.1.3.6: hash value with the hash algorithm used by the ID Token's own
// signing alg, take the left half of the octets, and base64url-encode them
// without padding.
func HalfHash(alg SigningAlg, value string) (string, error) {
	h := digest(alg, []byte(value))
	if h == nil {
		return "", errors.New("jose: unsupported algorithm for hash claim: " + string(alg))
	}
	return b64Encode(h[:len(h)/2]), nil
}

// SigningAlg is a supported JWS "alg" value (§4.1.3).
type SigningAlg string

const (
	RS256 SigningAlg = "RS256"
	RS384 SigningAlg = "RS384"
	RS512 SigningAlg = "RS512"
	PS256 SigningAlg = "PS256"
	PS384 SigningAlg = "PS384"
	PS512 SigningAlg = "PS512"
	ES256 SigningAlg = "ES256"
	ES384 SigningAlg = "ES384"
	ES512 SigningAlg = "ES512"
	HS256 SigningAlg = "HS256"
	HS384 SigningAlg = "HS384"
	HS512 SigningAlg = "HS512"
	EdDSA SigningAlg = "EdDSA"
)

func hashForAlg(alg SigningAlg) crypto.Hash {
	switch alg {
	case RS256, PS256, ES256, HS256:
		return crypto.SHA256
	case RS384, PS384, ES384, HS384:
		return crypto.SHA384
	case RS512, PS512, ES512, HS512:
		return crypto.SHA512
	default:
		return 0
	}
}

func digest(alg SigningAlg, signingInput []byte) []byte {
	switch hashForAlg(alg) {
	case crypto.SHA256:
		h := sha256.Sum256(signingInput)
		return h[:]
	case crypto.SHA384:
		h := sha512.Sum384(signingInput)
		return h[:]
	case crypto.SHA512:
		h := sha512.Sum512(signingInput)
		return h[:]
	default:
		return nil
	}
}

// Sign builds and signs a compact JWS: base64url(header).base64url(payload).signature.
// The header's alg and (if absent) kid are filled in from alg/key.
func Sign(header Header, payload *Payload, alg SigningAlg, key *JWK) (string, error) {
	if !key.UsableForSigning() {
		return "", ErrNoKeyForAlgorithm
	}

	header.Alg = string(alg)
	if header.Kid == "" {
		header.Kid = key.Kid
	}
	if header.Typ == "" {
		header.Typ = "JWT"
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := payload.MarshalJSON()
	if err != nil {
		return "", err
	}

	signingInput := b64Encode(headerJSON) + "." + b64Encode(payloadJSON)

	sig, err := signRaw(alg, key, []byte(signingInput))
	if err != nil {
		return "", err
	}

	return signingInput + "." + b64Encode(sig), nil
}

func signRaw(alg SigningAlg, key *JWK, signingInput []byte) ([]byte, error) {
	switch alg {
	case RS256, RS384, RS512:
		priv, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		return rsa.SignPKCS1v15(rand.Reader, priv, hashForAlg(alg), digest(alg, signingInput))
	case PS256, PS384, PS512:
		priv, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		return rsa.SignPSS(rand.Reader, priv, hashForAlg(alg), digest(alg, signingInput),
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hashForAlg(alg)})
	case ES256, ES384, ES512:
		priv, err := key.ECPrivateKey()
		if err != nil {
			return nil, err
		}
		r, s, err := ecdsa.Sign(rand.Reader, priv, digest(alg, signingInput))
		if err != nil {
			return nil, err
		}
		size := curveByteSize(priv.Curve)
		out := make([]byte, 2*size)
		copy(out[size-len(r.Bytes()):size], r.Bytes())
		copy(out[2*size-len(s.Bytes()):], s.Bytes())
		return out, nil
	case HS256, HS384, HS512:
		secret, err := key.SymmetricKey()
		if err != nil {
			return nil, err
		}
		mac := hmac.New(hashForAlg(alg).New, secret)
		mac.Write(signingInput)
		return mac.Sum(nil), nil
	case EdDSA:
		priv, err := key.Ed25519PrivateKey()
		if err != nil {
			return nil, err
		}
		return ed25519.Sign(priv, signingInput), nil
	default:
		return nil, errors.New("jose: unsupported signing algorithm " + string(alg))
	}
}

// Verify parses a compact JWS, selects a candidate key from keys by header
// kid (falling back to algorithm match, §4.1.3), checks the signature and
// returns the decoded token. The payload's claims (exp/nbf/iss/aud/...) are
// NOT validated here; that's pkg/jwtval's job.
func Verify(compact string, keys *JWKSet) (*Token, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedCompact
	}

	headerJSON, err := b64Decode(parts[0])
	if err != nil {
		return nil, ErrMalformedCompact
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, ErrMalformedCompact
	}

	sig, err := b64Decode(parts[2])
	if err != nil {
		return nil, ErrMalformedCompact
	}

	key := keys.ByKid(header.Kid)
	if key == nil {
		candidate, err := keys.Select(header.Alg, "")
		if err != nil {
			return nil, ErrNoKeyForAlgorithm
		}
		key = candidate
	}

	signingInput := []byte(parts[0] + "." + parts[1])
	if !verifyRaw(SigningAlg(header.Alg), key, signingInput, sig) {
		return nil, ErrCryptoOperationFailed
	}

	payloadJSON, err := b64Decode(parts[1])
	if err != nil {
		return nil, ErrMalformedCompact
	}
	payload := &Payload{}
	if err := payload.UnmarshalJSON(payloadJSON); err != nil {
		return nil, ErrMalformedCompact
	}

	return &Token{Header: header, Payload: payload}, nil
}

func verifyRaw(alg SigningAlg, key *JWK, signingInput, sig []byte) bool {
	switch alg {
	case RS256, RS384, RS512:
		pub, err := key.RSAPublicKey()
		if err != nil {
			return false
		}
		return rsa.VerifyPKCS1v15(pub, hashForAlg(alg), digest(alg, signingInput), sig) == nil
	case PS256, PS384, PS512:
		pub, err := key.RSAPublicKey()
		if err != nil {
			return false
		}
		return rsa.VerifyPSS(pub, hashForAlg(alg), digest(alg, signingInput), sig,
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: hashForAlg(alg)}) == nil
	case ES256, ES384, ES512:
		pub, err := key.ECPublicKey()
		if err != nil {
			return false
		}
		size := curveByteSize(pub.Curve)
		if len(sig) != 2*size {
			return false
		}
		r := new(big.Int).SetBytes(sig[:size])
		s := new(big.Int).SetBytes(sig[size:])
		return ecdsa.Verify(pub, digest(alg, signingInput), r, s)
	case HS256, HS384, HS512:
		secret, err := key.SymmetricKey()
		if err != nil {
			return false
		}
		mac := hmac.New(hashForAlg(alg).New, secret)
		mac.Write(signingInput)
		expected := mac.Sum(nil)
		return subtle.ConstantTimeCompare(expected, sig) == 1
	case EdDSA:
		pub, err := key.Ed25519PublicKey()
		if err != nil {
			return false
		}
		return ed25519.Verify(pub, signingInput, sig)
	default:
		return false
	}
}
