// Package draft holds provisional email actions awaiting user confirmation.
package draft

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Draft is a proposed email action. Empty optional fields are absent.
type Draft struct {
	Body      string
	To        string
	Subject   string
	ThreadID  string
	CreatedAt time.Time
}

type entry struct {
	draft Draft
	seq   uint64
}

// Store maps user -> draft id -> Draft. Drafts live until deleted; there is no expiry.
type Store struct {
	mu     sync.RWMutex
	drafts map[string]map[string]entry
	seq    uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{drafts: make(map[string]map[string]entry)}
}

// NewID mints a draft id such as "draft-1a2b3c4d5".
// Ids are random, not guaranteed unique.
func (s *Store) NewID() string {
	return NewID()
}

// NewID mints a draft id.
func NewID() string {
	return "draft-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// Save stores d under id for user, replacing any previous draft with that id.
func (s *Store) Save(user, id string, d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drafts[user] == nil {
		s.drafts[user] = make(map[string]entry)
	}
	s.seq++
	s.drafts[user][id] = entry{draft: d, seq: s.seq}
}

// Get returns the user's draft with the given id.
func (s *Store) Get(user, id string) (Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.drafts[user][id]
	return e.draft, ok
}

// List returns a copy of all drafts of user keyed by id.
func (s *Store) List(user string) map[string]Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Draft, len(s.drafts[user]))
	for id, e := range s.drafts[user] {
		out[id] = e.draft
	}
	return out
}

// Delete removes a draft and reports whether it existed.
func (s *Store) Delete(user, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[user][id]; !ok {
		return false
	}
	delete(s.drafts[user], id)
	if len(s.drafts[user]) == 0 {
		delete(s.drafts, user)
	}
	return true
}

// Latest returns the id of the user's draft with the greatest CreatedAt.
// Equal timestamps resolve to the most recently saved draft.
func (s *Store) Latest(user string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		bestID string
		best   entry
		found  bool
	)
	for id, e := range s.drafts[user] {
		if !found || newer(e, best) {
			bestID, best, found = id, e, true
		}
	}
	return bestID, found
}

func newer(a, b entry) bool {
	if !a.draft.CreatedAt.Equal(b.draft.CreatedAt) {
		return a.draft.CreatedAt.After(b.draft.CreatedAt)
	}
	return a.seq > b.seq
}

// Count returns the number of pending drafts of user.
func (s *Store) Count(user string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.drafts[user])
}

// Reset drops every draft.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.drafts)
}
