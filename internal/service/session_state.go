package service

import (
	"encoding/json"
	"log/slog"
	"sync"

	domainauth "github.com/target/inventory-console/internal/domain/auth"
	"github.com/target/inventory-console/internal/ports"
)

var _ ports.SessionClearer = (*SessionState)(nil)

// SessionState holds the current user's Identity and notifies subscribers on change.
// Role predicates are derived from the Identity on every read.
type SessionState struct {
	mu       sync.RWMutex
	identity *domainauth.Identity

	// notifyMu serializes notifications so observers never run concurrently.
	notifyMu sync.Mutex
	subsMu   sync.Mutex
	nextID   int
	subs     []subscriber
}

type subscriber struct {
	id int
	fn func(*domainauth.Identity)
}

// NewSessionState creates an empty SessionState. When store is non-nil, an observer
// that mirrors the Identity into the current_user entry is registered first.
func NewSessionState(store ports.KeyValueStore, logger *slog.Logger) *SessionState {
	s := &SessionState{}
	if store != nil {
		if logger == nil {
			logger = slog.Default()
		}
		s.Subscribe(persistIdentity(store, logger.With("component", "session_state")))
	}
	return s
}

// persistIdentity writes the snapshot when present and removes it when absent.
func persistIdentity(store ports.KeyValueStore, logger *slog.Logger) func(*domainauth.Identity) {
	return func(id *domainauth.Identity) {
		if id == nil {
			store.Remove(domainauth.CurrentUserKey)
			return
		}
		buf, err := json.Marshal(id)
		if err != nil {
			logger.Warn("failed to encode identity snapshot", "error", err)
			return
		}
		store.Set(domainauth.CurrentUserKey, string(buf))
	}
}

// Current returns a copy of the Identity, or nil when logged out.
func (s *SessionState) Current() *domainauth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// Authenticated reports whether an Identity is present.
func (s *SessionState) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// Role returns the held role, or "" when logged out.
func (s *SessionState) Role() domainauth.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Role
}

// Email returns the current user's email, or "" when logged out.
func (s *SessionState) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Email
}

func (s *SessionState) IsAdmin() bool { return s.Role() == domainauth.RoleAdmin }

func (s *SessionState) IsManagerOrAbove() bool { return s.hasAtLeast(domainauth.RoleManager) }

func (s *SessionState) IsOperatorOrAbove() bool { return s.hasAtLeast(domainauth.RoleOperator) }

func (s *SessionState) hasAtLeast(required domainauth.Role) bool {
	role := s.Role()
	return role != "" && role.AtLeast(required)
}

// Set replaces the Identity wholesale and always notifies.
func (s *SessionState) Set(id domainauth.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	cp := id
	s.mu.Lock()
	s.identity = &cp
	s.mu.Unlock()

	s.notify(&cp)
}

// Clear drops the Identity. Clearing an already-empty state does not notify.
func (s *SessionState) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	had := s.identity != nil
	s.identity = nil
	s.mu.Unlock()

	if had {
		s.notify(nil)
	}
}

// Subscribe registers fn to run after every change, in registration order.
// fn receives a copy of the new Identity (nil when cleared) and must not call
// Set or Clear. The returned function unregisters fn.
func (s *SessionState) Subscribe(fn func(*domainauth.Identity)) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *SessionState) notify(id *domainauth.Identity) {
	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		var arg *domainauth.Identity
		if id != nil {
			cp := *id
			arg = &cp
		}
		sub.fn(arg)
	}
}
