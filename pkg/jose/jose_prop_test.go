package jose_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/oidcforge/core/pkg/jose"
)

// TestJWS_HS256_RoundTripProperty checks the round-trip law from §8 of the
// spec for HS256: for every secret and payload, Sign-then-Verify recovers
// the exact claim that was signed, and tampering with the secret always
// breaks verification.
func TestJWS_HS256_RoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("HS256 sign/verify round-trips the payload", prop.ForAll(
		func(secret, claimBytes []byte) bool {
			if len(secret) == 0 {
				return true // HMAC requires a non-empty key
			}

			key := jose.FromOctKey(secret, "k1", jose.UseSig, string(jose.HS256))
			payload := jose.NewPayload()
			payload.Set("data", base64.StdEncoding.EncodeToString(claimBytes))

			compact, err := jose.Sign(jose.Header{}, payload, jose.HS256, key)
			if err != nil {
				return false
			}

			set := &jose.JWKSet{Keys: []*jose.JWK{key}}
			token, err := jose.Verify(compact, set)
			if err != nil {
				return false
			}

			got, _ := token.Payload.Get("data")
			return got == base64.StdEncoding.EncodeToString(claimBytes)
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("HS256 verification fails under a different secret", prop.ForAll(
		func(secret1, secret2, claimBytes []byte) bool {
			if len(secret1) == 0 || len(secret2) == 0 {
				return true
			}
			if string(secret1) == string(secret2) {
				return true // not a counter-example
			}

			signingKey := jose.FromOctKey(secret1, "k1", jose.UseSig, string(jose.HS256))
			payload := jose.NewPayload()
			payload.Set("data", base64.StdEncoding.EncodeToString(claimBytes))

			compact, err := jose.Sign(jose.Header{}, payload, jose.HS256, signingKey)
			if err != nil {
				return false
			}

			wrongKey := jose.FromOctKey(secret2, "k1", jose.UseSig, string(jose.HS256))
			set := &jose.JWKSet{Keys: []*jose.JWK{wrongKey}}
			_, err = jose.Verify(compact, set)
			return err != nil
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// TestJWE_DirA256GCM_RoundTripProperty checks the §8 round-trip law for
// direct key agreement + AES-256-GCM: for every 32-byte key and plaintext,
// Encrypt-then-Decrypt recovers the exact claim.
func TestJWE_DirA256GCM_RoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("dir+A256GCM encrypt/decrypt round-trips the payload", prop.ForAll(
		func(seed, claimBytes []byte) bool {
			cek := sha256.Sum256(seed) // always exactly 32 bytes, matching A256GCM's CEK size

			key := jose.FromOctKey(cek[:], "k1", jose.UseEnc, string(jose.DirAlg))
			payload := jose.NewPayload()
			payload.Set("data", base64.StdEncoding.EncodeToString(claimBytes))

			compact, err := jose.EncryptJWT(payload, jose.DirAlg, jose.A256GCM, key)
			if err != nil {
				return false
			}

			got, err := jose.DecryptJWT(compact, key)
			if err != nil {
				return false
			}

			v, _ := got.Get("data")
			return v == base64.StdEncoding.EncodeToString(claimBytes)
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
