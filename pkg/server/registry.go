package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dukeofxor/gotalker/pkg/wire"
)

var (
	// ErrUsernameTaken reports a login with a username that is already registered.
	ErrUsernameTaken = errors.New("server: username already in use")

	// ErrAddressBanned reports a login from a banned address.
	ErrAddressBanned = errors.New("server: address is banned")
)

// Registry is the shared directory of authenticated sessions and banned
// addresses. A single mutex guards both, so the ban check, the username
// uniqueness check, and the insert behind a login form one critical section.
type Registry struct {
	mu     sync.RWMutex
	order  []registration // registration order, preserved for who-is-in
	byName map[string]*Session
	banned map[string]struct{}
}

type registration struct {
	session  *Session
	username string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Session),
		banned: make(map[string]struct{}),
	}
}

// Register inserts a session under the given username. The session's address
// must not be banned and the username must be free; both are checked
// case-sensitively inside the same lock acquisition as the insert, so two
// concurrent logins for one username cannot both succeed. When both checks
// would fail, the ban takes precedence.
func (r *Registry) Register(s *Session, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.banned[s.addr()]; ok {
		return ErrAddressBanned
	}
	if _, ok := r.byName[username]; ok {
		return ErrUsernameTaken
	}

	r.byName[username] = s
	r.order = append(r.order, registration{session: s, username: username})
	return nil
}

// Remove deregisters a session by identity. Removing an unregistered
// session is a no-op.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, reg := range r.order {
		if reg.session == s {
			delete(r.byName, reg.username)
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Usernames returns a snapshot of all registered usernames in registration
// order.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	for i, reg := range r.order {
		names[i] = reg.username
	}
	return names
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IsBanned reports whether an address is banned.
func (r *Registry) IsBanned(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.banned[addr]
	return ok
}

// Ban adds an address to the ban set and returns any registered sessions
// connected from it, so the caller can disconnect them. The ban set is
// append-only; there is no unban.
func (r *Registry) Ban(addr string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.banned[addr] = struct{}{}

	var affected []*Session
	for _, reg := range r.order {
		if reg.session.addr() == addr {
			affected = append(affected, reg.session)
		}
	}
	return affected
}

// Broadcast delivers an envelope to every registered session, including the
// sender if it is registered. Recipients are snapshotted under the lock;
// delivery happens outside it, and a failed send to one recipient never
// prevents delivery attempts to the rest.
func (r *Registry) Broadcast(e *wire.Envelope) {
	r.mu.RLock()
	recipients := make([]*Session, len(r.order))
	for i, reg := range r.order {
		recipients[i] = reg.session
	}
	r.mu.RUnlock()

	for _, s := range recipients {
		if err := s.send(e); err != nil {
			slog.Debug("broadcast send failed", "client", s.label(), "err", err)
		}
	}
}

// Whisper delivers a text message from sender to the session registered
// under target only. An absent target is a silent drop; the returned bool
// lets callers observe it without changing that behavior.
func (r *Registry) Whisper(target, text, sender string) bool {
	r.mu.RLock()
	s := r.byName[target]
	r.mu.RUnlock()

	if s == nil {
		return false
	}
	e := &wire.Envelope{ServerText: &wire.TextServerMessage{SenderUsername: sender, Text: text}}
	if err := s.send(e); err != nil {
		slog.Debug("whisper send failed", "client", s.label(), "err", err)
	}
	return true
}
