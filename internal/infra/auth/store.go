// Package auth provides the authentication service client and the
// volatile session credential store.
package auth

import "sync"

// Store holds the session bearer credential in memory only. It is
// written by Login and read by every outbound resource call; nothing is
// ever persisted, so the credential dies with the session.
type Store struct {
	mu         sync.RWMutex
	credential string
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the session credential.
func (s *Store) Set(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
}

// Clear drops the session credential.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
}

// Credential returns the session credential and whether one is set.
func (s *Store) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential, s.credential != ""
}
