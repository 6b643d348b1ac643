package jose

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"io"
)

// KeyMgmtAlg is a supported JWE "alg" (key management) value (§4.1.2).
type KeyMgmtAlg string

const (
	RSAOAEP    KeyMgmtAlg = "RSA-OAEP"
	RSAOAEP256 KeyMgmtAlg = "RSA-OAEP-256"
	RSA1_5     KeyMgmtAlg = "RSA1_5"
	A128GCMKW  KeyMgmtAlg = "A128GCMKW"
	A192GCMKW  KeyMgmtAlg = "A192GCMKW"
	A256GCMKW  KeyMgmtAlg = "A256GCMKW"
	DirAlg     KeyMgmtAlg = "dir"
)

// minRSAModulusBits is the minimum RSA key size this package accepts for key
// wrapping, per §4.1.2.
const minRSAModulusBits = 2048

// gcmKWIVBytes and gcmKWMinInputBytes are shape constraints for the
// A*GCMKW family: the wrapped-key nonce is 96 bits, and any GCM-sealed
// payload carries a 16-byte tag, so the minimum plausible ciphertext the
// unwrap path will accept is 12 bytes of key material.
const (
	gcmKWIVBytes       = 12
	gcmKWTagBytes      = 16
	gcmKWMinInputBytes = 28
)

// WrappedKey is the result of key-managing a CEK: the encrypted_key segment
// of a JWE, plus (for the GCMKW family) the header parameters the wrapper
// must additionally carry.
type WrappedKey struct {
	EncryptedKey []byte
	IV           []byte // A*GCMKW only
	Tag          []byte // A*GCMKW only
}

// WrapKey wraps cek under key using alg, returning the JWE encrypted_key
// segment (and, for GCMKW, the iv/tag header parameters).
func WrapKey(alg KeyMgmtAlg, key *JWK, cek []byte) (*WrappedKey, error) {
	switch alg {
	case RSAOAEP:
		pub, err := key.RSAPublicKey()
		if err != nil {
			return nil, err
		}
		if err := checkRSAModulus(pub); err != nil {
			return nil, err
		}
		ct, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, cek, nil)
		if err != nil {
			return nil, ErrCryptoOperationFailed
		}
		return &WrappedKey{EncryptedKey: ct}, nil

	case RSAOAEP256:
		pub, err := key.RSAPublicKey()
		if err != nil {
			return nil, err
		}
		if err := checkRSAModulus(pub); err != nil {
			return nil, err
		}
		ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, cek, nil)
		if err != nil {
			return nil, ErrCryptoOperationFailed
		}
		return &WrappedKey{EncryptedKey: ct}, nil

	case RSA1_5:
		pub, err := key.RSAPublicKey()
		if err != nil {
			return nil, err
		}
		if err := checkRSAModulus(pub); err != nil {
			return nil, err
		}
		ct, err := rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
		if err != nil {
			return nil, ErrCryptoOperationFailed
		}
		return &WrappedKey{EncryptedKey: ct}, nil

	case A128GCMKW, A192GCMKW, A256GCMKW:
		kek, err := key.SymmetricKey()
		if err != nil {
			return nil, err
		}
		iv := make([]byte, gcmKWIVBytes)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, err
		}
		ct, tag, err := gcmEncrypt(kek, iv, cek, nil)
		if err != nil {
			return nil, ErrCryptoOperationFailed
		}
		return &WrappedKey{EncryptedKey: ct, IV: iv, Tag: tag}, nil

	case DirAlg:
		return &WrappedKey{EncryptedKey: nil}, nil

	default:
		return nil, errors.New("jose: unsupported key management algorithm " + string(alg))
	}
}

// UnwrapKey recovers the CEK. For dir, key's own symmetric secret is
// returned verbatim and wrapped.EncryptedKey MUST be empty (a non-empty encrypted_key alongside
// alg=dir is a malformed JWE, §4.1.2).
func UnwrapKey(alg KeyMgmtAlg, key *JWK, wrapped *WrappedKey, encLen int) ([]byte, error) {
	switch alg {
	case RSAOAEP:
		priv, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		cek, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, wrapped.EncryptedKey, nil)
		if err != nil {
			return nil, ErrCryptoOperationFailed
		}
		return cek, nil

	case RSAOAEP256:
		priv, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		cek, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped.EncryptedKey, nil)
		if err != nil {
			return nil, ErrCryptoOperationFailed
		}
		return cek, nil

	case RSA1_5:
		priv, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		// RFC 7518 §4.2's Bleichenbacher countermeasure: on failure, return a
		// random CEK of the expected length rather than an error, so callers
		// following the rest of the JWE decrypt path fail uniformly on the
		// eventual tag check instead of on this step.
		cek, err := rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped.EncryptedKey)
		if err != nil || len(cek) != encLen {
			random := make([]byte, encLen)
			if _, rerr := io.ReadFull(rand.Reader, random); rerr != nil {
				return nil, ErrCryptoOperationFailed
			}
			return random, nil
		}
		return cek, nil

	case A128GCMKW, A192GCMKW, A256GCMKW:
		kek, err := key.SymmetricKey()
		if err != nil {
			return nil, err
		}
		if len(wrapped.IV) != gcmKWIVBytes || len(wrapped.Tag) != gcmKWTagBytes {
			return nil, ErrCryptoOperationFailed
		}
		if len(wrapped.EncryptedKey)+len(wrapped.Tag) < gcmKWMinInputBytes {
			return nil, ErrCryptoOperationFailed
		}
		return gcmDecrypt(kek, wrapped.IV, wrapped.EncryptedKey, wrapped.Tag, nil)

	case DirAlg:
		if len(wrapped.EncryptedKey) != 0 {
			return nil, ErrCryptoOperationFailed
		}
		direct, err := key.SymmetricKey()
		if err != nil {
			return nil, err
		}
		return direct, nil

	default:
		return nil, errors.New("jose: unsupported key management algorithm " + string(alg))
	}
}

func checkRSAModulus(pub *rsa.PublicKey) error {
	if pub.N.BitLen() < minRSAModulusBits {
		return ErrWeakKey
	}
	return nil
}
