// Package session holds the portal credential supplied by the form UI.
//
// The agent never manages authentication itself: the UI obtains a bearer
// token from the portal login flow and hands it over so monitor-triggered
// sync passes can authenticate. Refresh and expiry stay with the portal.
package session

import "sync"

// TokenStore is an in-memory holder for the current portal bearer token.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Set replaces the stored token.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Get returns the stored token, or empty when no session is active.
func (s *TokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear drops the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
