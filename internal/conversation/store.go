// Package conversation keeps the per-user message window sent to the model.
package conversation

import (
	"slices"
	"strings"
	"sync"
)

// Store holds ordered history per user. It is volatile and safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	history map[string][]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{history: make(map[string][]string)}
}

// Get returns a copy of the user's history, empty when unknown.
func (s *Store) Get(user string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.history[user])
}

// Set replaces the user's history.
func (s *Store) Set(user string, lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[user] = slices.Clone(lines)
}

// Append adds one line to the user's history.
func (s *Store) Append(user, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[user] = append(s.history[user], line)
}

// Clear forgets the user's history.
func (s *Store) Clear(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.history, user)
}

// Joined returns the history as model input.
func (s *Store) Joined(user string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return strings.Join(s.history[user], "\n")
}

// WrapTurn frames a follow-up user message for the history.
func WrapTurn(text string) string {
	return "\n---\n" + text + "\n---"
}
