package jose

import (
	"encoding/json"
	"strings"
)

// JWE is a parsed JSON Web Encryption compact serialization (§4.1.1): five
// base64url segments — protected header, encrypted key, IV, ciphertext, tag.
type JWE struct {
	Header       Header
	EncryptedKey []byte
	IV           []byte
	Ciphertext   []byte
	Tag          []byte
}

// EncryptJWT encrypts payload into a compact JWE using keyAlg for key
// management and enc for content encryption. key is the recipient's public
// (or symmetric) key. For the GCMKW family the per-message iv/tag are
// carried as additional protected-header parameters, per RFC 7518 §4.7.
func EncryptJWT(payload *Payload, keyAlg KeyMgmtAlg, enc ContentEncAlg, key *JWK) (string, error) {
	plaintext, err := payload.MarshalJSON()
	if err != nil {
		return "", err
	}

	cek, err := resolveCEK(keyAlg, enc, key)
	if err != nil {
		return "", err
	}

	wrapped, err := WrapKey(keyAlg, key, cek)
	if err != nil {
		return "", err
	}

	header := Header{
		Alg: string(keyAlg),
		Enc: string(enc),
		Kid: key.Kid,
		Cty: "JWT",
	}
	headerJSON, err := json.Marshal(jweHeaderWire{
		Header: header,
		IV:     optB64(wrapped.IV),
		Tag:    optB64(wrapped.Tag),
	})
	if err != nil {
		return "", err
	}
	aad := []byte(b64Encode(headerJSON))

	iv, ciphertext, tag, err := encryptContent(enc, cek, plaintext, aad)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		string(aad),
		b64Encode(wrapped.EncryptedKey),
		b64Encode(iv),
		b64Encode(ciphertext),
		b64Encode(tag),
	}, "."), nil
}

// resolveCEK returns the content encryption key to use: for alg=dir this is
// the recipient's own symmetric secret; otherwise a fresh random CEK sized
// for enc.
func resolveCEK(keyAlg KeyMgmtAlg, enc ContentEncAlg, key *JWK) ([]byte, error) {
	if keyAlg == DirAlg {
		return key.SymmetricKey()
	}
	return GenerateCEK(enc)
}

// DecryptJWT parses and decrypts a compact JWE, returning the enclosed
// payload. key is the recipient's private (or symmetric) key.
func DecryptJWT(compact string, key *JWK) (*Payload, error) {
	jwe, headerJSON, err := parseJWECompact(compact)
	if err != nil {
		return nil, err
	}

	var wire jweHeaderWire
	if err := json.Unmarshal(headerJSON, &wire); err != nil {
		return nil, ErrMalformedCompact
	}

	keyAlg := KeyMgmtAlg(jwe.Header.Alg)
	enc := ContentEncAlg(jwe.Header.Enc)

	wrapped := &WrappedKey{EncryptedKey: jwe.EncryptedKey}
	if wire.IV != "" {
		if wrapped.IV, err = b64Decode(wire.IV); err != nil {
			return nil, ErrMalformedCompact
		}
	}
	if wire.Tag != "" {
		if wrapped.Tag, err = b64Decode(wire.Tag); err != nil {
			return nil, ErrMalformedCompact
		}
	}

	cek, err := UnwrapKey(keyAlg, key, wrapped, CEKSize(enc))
	if err != nil {
		return nil, ErrCryptoOperationFailed
	}

	aad := []byte(b64Encode(headerJSON))
	plaintext, err := decryptContent(enc, cek, jwe.IV, jwe.Ciphertext, jwe.Tag, aad)
	if err != nil {
		return nil, ErrCryptoOperationFailed
	}

	payload := &Payload{}
	if err := payload.UnmarshalJSON(plaintext); err != nil {
		return nil, ErrMalformedCompact
	}
	return payload, nil
}

// jweHeaderWire is the wire shape of a JWE protected header, including the
// GCMKW-only iv/tag parameters.
type jweHeaderWire struct {
	Header
	IV  string `json:"iv,omitempty"`
	Tag string `json:"tag,omitempty"`
}

func optB64(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return b64Encode(b)
}

func parseJWECompact(compact string) (*JWE, []byte, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 5 {
		return nil, nil, ErrMalformedCompact
	}

	headerJSON, err := b64Decode(parts[0])
	if err != nil {
		return nil, nil, ErrMalformedCompact
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, ErrMalformedCompact
	}

	encryptedKey, err := b64Decode(parts[1])
	if err != nil {
		return nil, nil, ErrMalformedCompact
	}
	iv, err := b64Decode(parts[2])
	if err != nil {
		return nil, nil, ErrMalformedCompact
	}
	ciphertext, err := b64Decode(parts[3])
	if err != nil {
		return nil, nil, ErrMalformedCompact
	}
	tag, err := b64Decode(parts[4])
	if err != nil {
		return nil, nil, ErrMalformedCompact
	}

	return &JWE{
		Header:       header,
		EncryptedKey: encryptedKey,
		IV:           iv,
		Ciphertext:   ciphertext,
		Tag:          tag,
	}, headerJSON, nil
}
