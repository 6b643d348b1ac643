// Package tokenregistry implements the model.TokenRegistry collaborator
// interface: an in-memory record of every issued token's lifecycle, used by
// refresh-token rotation (reuse detection, family revocation) and
// introspection/revocation endpoints.
package tokenregistry

import (
	"context"
	"sync"

	"github.com/oidcforge/core/pkg/model"
)

// Registry is an in-memory model.TokenRegistry. It is safe for concurrent
// use; a production deployment backed by a real database would implement
// the same interface against persistent storage.
type Registry struct {
	mu      sync.RWMutex
	byJTI   map[string]*model.TokenRecord
	byFamily map[string][]string
}

var _ model.TokenRegistry = (*Registry)(nil)

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byJTI:    map[string]*model.TokenRecord{},
		byFamily: map[string][]string{},
	}
}

// Put records a newly issued token.
func (r *Registry) Put(ctx context.Context, rec *model.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byJTI[rec.JTI] = rec
	if rec.FamilyID != "" {
		r.byFamily[rec.FamilyID] = append(r.byFamily[rec.FamilyID], rec.JTI)
	}
	return nil
}

// Get looks up a token record by jti.
func (r *Registry) Get(ctx context.Context, jti string) (*model.TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byJTI[jti]
	if !ok {
		return &model.TokenRecord{JTI: jti, Status: model.TokenStatusUnknown}, nil
	}
	return rec, nil
}

// SetStatus updates a token's lifecycle status.
func (r *Registry) SetStatus(ctx context.Context, jti string, status model.TokenStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byJTI[jti]
	if !ok {
		return nil
	}
	rec.Status = status
	return nil
}

// RevokeFamily marks every token that rotated from the same refresh-token
// chain as revoked, per §4.2.3's reuse-detection invariant: redeeming an
// already-used refresh token poisons the whole family.
func (r *Registry) RevokeFamily(ctx context.Context, familyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, jti := range r.byFamily[familyID] {
		if rec, ok := r.byJTI[jti]; ok {
			rec.Status = model.TokenStatusRevoked
		}
	}
	return nil
}
