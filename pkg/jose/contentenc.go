package jose

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"hash"
	"io"
)

// ContentEncAlg is a supported JWE "enc" value (§4.1.1). Each maps to a
// fixed (cekBytes, ivBytes, tagBytes) tuple per RFC 7518 §5.
type ContentEncAlg string

const (
	A128CBCHS256 ContentEncAlg = "A128CBC-HS256"
	A192CBCHS384 ContentEncAlg = "A192CBC-HS384"
	A256CBCHS512 ContentEncAlg = "A256CBC-HS512"
	A128GCM      ContentEncAlg = "A128GCM"
	A192GCM      ContentEncAlg = "A192GCM"
	A256GCM      ContentEncAlg = "A256GCM"
)

type encParams struct {
	cekBytes int
	ivBytes  int
	tagBytes int
	gcm      bool
}

func paramsFor(enc ContentEncAlg) (encParams, bool) {
	switch enc {
	case A128CBCHS256:
		return encParams{cekBytes: 32, ivBytes: 16, tagBytes: 16}, true
	case A192CBCHS384:
		return encParams{cekBytes: 48, ivBytes: 16, tagBytes: 24}, true
	case A256CBCHS512:
		return encParams{cekBytes: 64, ivBytes: 16, tagBytes: 32}, true
	case A128GCM:
		return encParams{cekBytes: 16, ivBytes: 12, tagBytes: 16, gcm: true}, true
	case A192GCM:
		return encParams{cekBytes: 24, ivBytes: 12, tagBytes: 16, gcm: true}, true
	case A256GCM:
		return encParams{cekBytes: 32, ivBytes: 12, tagBytes: 16, gcm: true}, true
	default:
		return encParams{}, false
	}
}

// CEKSize returns the content encryption key size in bytes for enc, or 0 if
// enc is unrecognized.
func CEKSize(enc ContentEncAlg) int {
	p, ok := paramsFor(enc)
	if !ok {
		return 0
	}
	return p.cekBytes
}

// GenerateCEK returns a fresh random content encryption key sized for enc.
func GenerateCEK(enc ContentEncAlg) ([]byte, error) {
	p, ok := paramsFor(enc)
	if !ok {
		return nil, errors.New("jose: unsupported content encryption algorithm " + string(enc))
	}
	cek := make([]byte, p.cekBytes)
	if _, err := io.ReadFull(rand.Reader, cek); err != nil {
		return nil, err
	}
	return cek, nil
}

// encryptContent performs JWE content encryption (§4.1.1, RFC 7518 §5) and
// returns (iv, ciphertext, tag). aad is the ASCII-encoded protected header,
// per RFC 7516 §5.1 step 14.
func encryptContent(enc ContentEncAlg, cek, plaintext, aad []byte) (iv, ciphertext, tag []byte, err error) {
	p, ok := paramsFor(enc)
	if !ok {
		return nil, nil, nil, errors.New("jose: unsupported content encryption algorithm " + string(enc))
	}
	if len(cek) != p.cekBytes {
		return nil, nil, nil, ErrCryptoOperationFailed
	}

	iv = make([]byte, p.ivBytes)
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, err
	}

	if p.gcm {
		ciphertext, tag, err = gcmEncrypt(cek, iv, plaintext, aad)
		return iv, ciphertext, tag, err
	}
	ciphertext, tag, err = cbcHMACEncrypt(enc, cek, iv, plaintext, aad)
	return iv, ciphertext, tag, err
}

// decryptContent is the inverse of encryptContent. Every failure path
// returns ErrCryptoOperationFailed: a bad tag and bad padding must be
// indistinguishable to the caller (§7.3 padding-oracle defense).
func decryptContent(enc ContentEncAlg, cek, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	p, ok := paramsFor(enc)
	if !ok {
		return nil, ErrCryptoOperationFailed
	}
	if len(cek) != p.cekBytes || len(iv) != p.ivBytes || len(tag) != p.tagBytes {
		return nil, ErrCryptoOperationFailed
	}

	if p.gcm {
		return gcmDecrypt(cek, iv, ciphertext, tag, aad)
	}
	return cbcHMACDecrypt(enc, cek, iv, ciphertext, tag, aad)
}

func gcmEncrypt(key, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, aad)
	tagSize := gcm.Overhead()
	return sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:], nil
}

func gcmDecrypt(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCryptoOperationFailed
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, ErrCryptoOperationFailed
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, ErrCryptoOperationFailed
	}
	return plaintext, nil
}

// cbcHMACEncrypt implements the AES-CBC-HMAC-SHA2 composite of RFC 7518 §5.2:
// the CEK is split into a MAC key (first half) and an encryption key (second
// half), PKCS#7 padding is applied, then HMAC is computed over
// AAD || IV || ciphertext || AAD-bit-length(64 bits, big-endian) and
// truncated to the leftmost tagBytes octets.
func cbcHMACEncrypt(enc ContentEncAlg, cek, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	macKey, encKey := splitCBCKey(cek)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext = make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(ciphertext, padded)

	tag = cbcHMACTag(enc, macKey, aad, iv, ciphertext)
	return ciphertext, tag, nil
}

func cbcHMACDecrypt(enc ContentEncAlg, cek, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	macKey, encKey := splitCBCKey(cek)

	expectedTag := cbcHMACTag(enc, macKey, aad, iv, ciphertext)
	if subtle.ConstantTimeCompare(expectedTag, tag) != 1 {
		return nil, ErrCryptoOperationFailed
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, ErrCryptoOperationFailed
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrCryptoOperationFailed
	}
	padded := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(padded, ciphertext)

	plaintext, ok := pkcs7Unpad(padded, block.BlockSize())
	if !ok {
		return nil, ErrCryptoOperationFailed
	}
	return plaintext, nil
}

func splitCBCKey(cek []byte) (macKey, encKey []byte) {
	half := len(cek) / 2
	return cek[:half], cek[half:]
}

func cbcHMACTag(enc ContentEncAlg, macKey, aad, iv, ciphertext []byte) []byte {
	p, _ := paramsFor(enc)

	al := make([]byte, 8)
	binary.BigEndian.PutUint64(al, uint64(len(aad))*8)

	mac := newCBCHMAC(enc, macKey)
	mac.Write(aad)
	mac.Write(iv)
	mac.Write(ciphertext)
	mac.Write(al)
	full := mac.Sum(nil)
	return full[:p.tagBytes]
}

func newCBCHMAC(enc ContentEncAlg, macKey []byte) hash.Hash {
	switch enc {
	case A128CBCHS256:
		return hmac.New(sha256.New, macKey)
	case A192CBCHS384:
		return hmac.New(sha512.New384, macKey)
	case A256CBCHS512:
		return hmac.New(sha512.New, macKey)
	default:
		return hmac.New(sha256.New, macKey)
	}
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, false
	}
	mismatch := 0
	for i := len(data) - padLen; i < len(data); i++ {
		mismatch |= int(data[i]) ^ padLen
	}
	if mismatch != 0 {
		return nil, false
	}
	return data[:len(data)-padLen], true
}
