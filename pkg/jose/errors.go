package jose

import "errors"

// ErrCryptoOperationFailed is the single sentinel every encrypt/decrypt/verify
// primitive in this package returns on failure. Per §4.1.1/§7.3 of the spec,
// the cause (bad tag, bad padding, wrong key, truncated input) is never
// distinguishable from the caller's side of the API — that distinction is
// exactly what a padding-oracle attacker would exploit.
var ErrCryptoOperationFailed = errors.New("jose: cryptographic operation failed")

// ErrNoKeyForAlgorithm is returned by key selection when no candidate key
// matches the requested algorithm (§4.1.3).
var ErrNoKeyForAlgorithm = errors.New("jose: no key for algorithm")

// ErrMalformedCompact is returned when a compact-serialized JWT/JWE does not
// have the expected number of base64url segments.
var ErrMalformedCompact = errors.New("jose: malformed compact serialization")

// ErrWeakKey is returned when an RSA key's modulus is below the minimum
// enforced size (§4.1.2: 2048 bits).
var ErrWeakKey = errors.New("jose: RSA modulus below minimum size")
