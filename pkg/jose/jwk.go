// Package jose implements the JOSE layer: JSON Web Keys, JSON Web Tokens,
// JWS signing/verification and JWE encryption/decryption, per §3/§4.1 of the
// specification. Content-encryption and key-management are built directly on
// crypto/aes, crypto/cipher, crypto/hmac, crypto/rsa, crypto/ecdsa and
// crypto/ed25519 rather than on a third-party JOSE engine — see DESIGN.md for
// why: this package's entire job is to *be* that engine, at the byte-level
// precision the spec's algorithm tables call for.
package jose

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
)

// KeyType is the JWK "kty" discriminator (§3).
type KeyType string

const (
	KeyTypeRSA KeyType = "RSA"
	KeyTypeEC  KeyType = "EC"
	KeyTypeOct KeyType = "oct"
	KeyTypeOKP KeyType = "OKP"
)

// KeyUse is the JWK "use" parameter.
type KeyUse string

const (
	UseSig KeyUse = "sig"
	UseEnc KeyUse = "enc"
)

// JWK is a JSON Web Key (§3). Only the fields relevant to the variant named
// by Kty are populated; private-material fields (D, P, Q, Dp, Dq, Qi, and D
// again for EC/OKP) are present only on private keys.
type JWK struct {
	Kty    KeyType  `json:"kty"`
	Kid    string   `json:"kid,omitempty"`
	Use    KeyUse   `json:"use,omitempty"`
	Alg    string   `json:"alg,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`

	// RSA
	N  string `json:"n,omitempty"`
	E  string `json:"e,omitempty"`
	D  string `json:"d,omitempty"`
	P  string `json:"p,omitempty"`
	Q  string `json:"q,omitempty"`
	Dp string `json:"dp,omitempty"`
	Dq string `json:"dq,omitempty"`
	Qi string `json:"qi,omitempty"`

	// EC / OKP (D above doubles as the private scalar for these kty values)
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`

	// oct
	K string `json:"k,omitempty"`
}

// IsPrivate reports whether the key carries private material.
func (k *JWK) IsPrivate() bool {
	if k == nil {
		return false
	}
	switch k.Kty {
	case KeyTypeRSA, KeyTypeEC, KeyTypeOKP:
		return k.D != ""
	case KeyTypeOct:
		return true // a symmetric key is always "private" material
	default:
		return false
	}
}

// Public returns a copy of k with private fields stripped. For oct keys,
// which have no public representation, it returns nil.
func (k *JWK) Public() *JWK {
	if k == nil || k.Kty == KeyTypeOct {
		return nil
	}
	pub := *k
	pub.D, pub.P, pub.Q, pub.Dp, pub.Dq, pub.Qi = "", "", "", "", "", ""
	return &pub
}

// UsableForSigning reports whether this key may be handed to a signing
// caller. Per §3's invariant, a key with alg = "none" is never eligible.
func (k *JWK) UsableForSigning() bool {
	return k != nil && k.Alg != "none"
}

func b64Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func b64Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// RSAPublicKey decodes the n/e members into a *rsa.PublicKey.
func (k *JWK) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != KeyTypeRSA {
		return nil, errors.New("jose: not an RSA key")
	}
	nBytes, err := b64Decode(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := b64Decode(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

// RSAPrivateKey decodes the full private RSA representation.
func (k *JWK) RSAPrivateKey() (*rsa.PrivateKey, error) {
	pub, err := k.RSAPublicKey()
	if err != nil {
		return nil, err
	}
	if k.D == "" {
		return nil, errors.New("jose: RSA key has no private component")
	}
	dBytes, err := b64Decode(k.D)
	if err != nil {
		return nil, err
	}
	priv := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(dBytes),
	}
	if k.P != "" && k.Q != "" {
		pBytes, _ := b64Decode(k.P)
		qBytes, _ := b64Decode(k.Q)
		priv.Primes = []*big.Int{new(big.Int).SetBytes(pBytes), new(big.Int).SetBytes(qBytes)}
		if err := priv.Validate(); err != nil {
			return nil, err
		}
		priv.Precompute()
	}
	return priv, nil
}

// FromRSAPrivateKey builds a private JWK from an *rsa.PrivateKey.
func FromRSAPrivateKey(priv *rsa.PrivateKey, kid string, use KeyUse, alg string) *JWK {
	if len(priv.Primes) < 2 {
		priv.Precompute()
	}
	k := &JWK{
		Kty: KeyTypeRSA,
		Kid: kid,
		Use: use,
		Alg: alg,
		N:   b64Encode(priv.N.Bytes()),
		E:   b64Encode(big.NewInt(int64(priv.E)).Bytes()),
		D:   b64Encode(priv.D.Bytes()),
	}
	if len(priv.Primes) >= 2 {
		k.P = b64Encode(priv.Primes[0].Bytes())
		k.Q = b64Encode(priv.Primes[1].Bytes())
		k.Dp = b64Encode(priv.Precomputed.Dp.Bytes())
		k.Dq = b64Encode(priv.Precomputed.Dq.Bytes())
		k.Qi = b64Encode(priv.Precomputed.Qinv.Bytes())
	}
	return k
}

func curveName(c elliptic.Curve) string {
	switch c {
	case elliptic.P256():
		return "P-256"
	case elliptic.P384():
		return "P-384"
	case elliptic.P521():
		return "P-521"
	default:
		return ""
	}
}

func curveByName(name string) elliptic.Curve {
	switch name {
	case "P-256":
		return elliptic.P256()
	case "P-384":
		return elliptic.P384()
	case "P-521":
		return elliptic.P521()
	default:
		return nil
	}
}

func curveByteSize(c elliptic.Curve) int {
	return (c.Params().BitSize + 7) / 8
}

// FromECPrivateKey builds a private JWK from an *ecdsa.PrivateKey.
func FromECPrivateKey(priv *ecdsa.PrivateKey, kid string, use KeyUse, alg string) *JWK {
	size := curveByteSize(priv.Curve)
	return &JWK{
		Kty: KeyTypeEC,
		Kid: kid,
		Use: use,
		Alg: alg,
		Crv: curveName(priv.Curve),
		X:   b64Encode(padLeft(priv.X.Bytes(), size)),
		Y:   b64Encode(padLeft(priv.Y.Bytes(), size)),
		D:   b64Encode(padLeft(priv.D.Bytes(), size)),
	}
}

// ECPublicKey decodes the crv/x/y members into an *ecdsa.PublicKey.
func (k *JWK) ECPublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != KeyTypeEC {
		return nil, errors.New("jose: not an EC key")
	}
	curve := curveByName(k.Crv)
	if curve == nil {
		return nil, errors.New("jose: unsupported EC curve " + k.Crv)
	}
	xBytes, err := b64Decode(k.X)
	if err != nil {
		return nil, err
	}
	yBytes, err := b64Decode(k.Y)
	if err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

// ECPrivateKey decodes the full private EC representation.
func (k *JWK) ECPrivateKey() (*ecdsa.PrivateKey, error) {
	pub, err := k.ECPublicKey()
	if err != nil {
		return nil, err
	}
	if k.D == "" {
		return nil, errors.New("jose: EC key has no private component")
	}
	dBytes, err := b64Decode(k.D)
	if err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(dBytes),
	}, nil
}

// FromEd25519PrivateKey builds a private JWK (kty=OKP, crv=Ed25519).
func FromEd25519PrivateKey(priv ed25519.PrivateKey, kid string, use KeyUse, alg string) *JWK {
	pub := priv.Public().(ed25519.PublicKey)
	return &JWK{
		Kty: KeyTypeOKP,
		Kid: kid,
		Use: use,
		Alg: alg,
		Crv: "Ed25519",
		X:   b64Encode(pub),
		D:   b64Encode(priv.Seed()),
	}
}

// Ed25519PublicKey decodes the x member into an ed25519.PublicKey.
func (k *JWK) Ed25519PublicKey() (ed25519.PublicKey, error) {
	if k.Kty != KeyTypeOKP || k.Crv != "Ed25519" {
		return nil, errors.New("jose: not an Ed25519 key")
	}
	return b64Decode(k.X)
}

// Ed25519PrivateKey decodes the d member (seed) into an ed25519.PrivateKey.
func (k *JWK) Ed25519PrivateKey() (ed25519.PrivateKey, error) {
	if k.D == "" {
		return nil, errors.New("jose: Ed25519 key has no private component")
	}
	seed, err := b64Decode(k.D)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// FromOctKey builds a symmetric JWK from raw key bytes.
func FromOctKey(secret []byte, kid string, use KeyUse, alg string) *JWK {
	return &JWK{
		Kty: KeyTypeOct,
		Kid: kid,
		Use: use,
		Alg: alg,
		K:   b64Encode(secret),
	}
}

// SymmetricKey decodes the k member.
func (k *JWK) SymmetricKey() ([]byte, error) {
	if k.Kty != KeyTypeOct {
		return nil, errors.New("jose: not a symmetric key")
	}
	return b64Decode(k.K)
}

func padLeft(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
