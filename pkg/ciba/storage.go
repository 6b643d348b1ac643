package ciba

import (
	"context"
	"sync"
	"time"

	"github.com/oidcforge/core/pkg/model"
)

// Storage is an in-memory model.BackChannelRequestStorage. A production
// deployment backed by persistent storage would implement the same
// interface against a database.
type Storage struct {
	mu       sync.Mutex
	requests map[string]*model.BackChannelAuthenticationRequest
}

var _ model.BackChannelRequestStorage = (*Storage)(nil)

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{requests: map[string]*model.BackChannelAuthenticationRequest{}}
}

func (s *Storage) Save(ctx context.Context, req *model.BackChannelAuthenticationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.AuthReqID] = req
	return nil
}

func (s *Storage) Get(ctx context.Context, authReqID string) (*model.BackChannelAuthenticationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[authReqID]
	if !ok {
		return nil, nil
	}
	return req, nil
}

func (s *Storage) Delete(ctx context.Context, authReqID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, authReqID)
	return nil
}

func (s *Storage) UpdateLastPolledAt(ctx context.Context, authReqID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[authReqID]; ok {
		req.LastPolledAt = time.Now()
	}
	return nil
}
