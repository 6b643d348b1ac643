package jose

// JWKSet is an unordered set of JWKs addressable by kid (§3).
type JWKSet struct {
	Keys []*JWK `json:"keys"`
}

// ByKid returns the key with the given kid, or nil.
func (s *JWKSet) ByKid(kid string) *JWK {
	if s == nil || kid == "" {
		return nil
	}
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k
		}
	}
	return nil
}

// Select resolves a signing/verification key by (alg, kid) per §3: lookup
// prefers an exact alg match, then falls back to algorithm-agnostic keys
// (alg == ""), per the JWK spec. A key with alg == "none" is never returned.
func (s *JWKSet) Select(alg, kid string) (*JWK, error) {
	if s == nil {
		return nil, ErrNoKeyForAlgorithm
	}

	if kid != "" {
		if k := s.ByKid(kid); k != nil && k.UsableForSigning() && (k.Alg == "" || k.Alg == alg) {
			return k, nil
		}
	}

	// Exact alg match.
	for _, k := range s.Keys {
		if k.Alg == alg && k.UsableForSigning() {
			return k, nil
		}
	}

	// Algorithm-agnostic key.
	for _, k := range s.Keys {
		if k.Alg == "" && k.UsableForSigning() {
			return k, nil
		}
	}

	return nil, ErrNoKeyForAlgorithm
}

// ForUse filters the set to keys declared for the given use (sig/enc). Keys
// with no declared use are considered eligible for either.
func (s *JWKSet) ForUse(use KeyUse) []*JWK {
	if s == nil {
		return nil
	}
	var out []*JWK
	for _, k := range s.Keys {
		if k.Use == "" || k.Use == use {
			out = append(out, k)
		}
	}
	return out
}

// Add appends a key to the set.
func (s *JWKSet) Add(k *JWK) {
	s.Keys = append(s.Keys, k)
}
