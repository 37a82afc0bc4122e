package server

import (
	"errors"
	"net"
	"sync"

	"github.com/dukeofxor/gotalker/pkg/wire"
)

// State is a session's position in its lifecycle.
type State int

const (
	// StateUnauthenticated covers a connected client that has not logged in.
	StateUnauthenticated State = iota
	// StateAuthenticated covers a logged-in, registered client.
	StateAuthenticated
	// StateClosed is terminal; the receive loop has exited.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one client connection and runs its receive loop. It dispatches
// each incoming envelope against the current state: before login only a
// LoginRequest is accepted (anything else disconnects the client after that
// single message), after login the chat operations are available.
//
// All state transitions happen on the session's own goroutine; the only
// cross-goroutine entry points are send (serialized by sendMu) and Kick.
type Session struct {
	conn     wire.Conn
	registry *Registry
	display  Display
	metrics  *Metrics

	sendMu sync.Mutex

	state    State
	username string // set once on successful login, immutable after
}

// NewSession wraps an accepted connection. The caller runs the receive loop
// via Run, typically on its own goroutine.
func NewSession(conn wire.Conn, registry *Registry, display Display, metrics *Metrics) *Session {
	s := &Session{
		conn:     conn,
		registry: registry,
		display:  display,
		metrics:  metrics,
	}
	s.display.Message(s.label(), "Connected")
	return s
}

// Run executes the receive loop until the session closes. It always
// deregisters the session and releases the connection before returning.
func (s *Session) Run() {
	defer s.teardown()

	for s.state != StateClosed {
		e, err := s.conn.ReadEnvelope()
		if err != nil {
			if wire.IsDisconnect(err) {
				s.display.Message(s.label(), "Disconnected without logging out")
			}
			// Malformed payloads are fatal too, just without the notice.
			s.state = StateClosed
			return
		}

		switch s.state {
		case StateUnauthenticated:
			s.dispatchUnauthenticated(e)
		case StateAuthenticated:
			s.dispatchAuthenticated(e)
		}
	}
}

// dispatchUnauthenticated handles one envelope before login. Only a
// LoginRequest keeps the connection alive.
func (s *Session) dispatchUnauthenticated(e *wire.Envelope) {
	if e.Login == nil {
		s.display.Message(s.label(), "Disconnected")
		s.state = StateClosed
		return
	}

	// The username is written before Register so that any goroutine that
	// finds this session through the registry lock also sees the name.
	username := e.Login.Username
	s.username = username
	if err := s.registry.Register(s, username); err != nil {
		s.username = ""
		s.metrics.FailedLogins.Add(1)
		switch {
		case errors.Is(err, ErrAddressBanned):
			s.reply(&wire.Envelope{LoginFailed: &wire.LoginFailed{Reason: "You are banned from this server"}})
			s.display.Message(s.label(), "Failed to login because user is banned from this server")
		case errors.Is(err, ErrUsernameTaken):
			s.reply(&wire.Envelope{LoginFailed: &wire.LoginFailed{Reason: "Username already in use"}})
			s.display.Message(s.label(), "Failed to login because username was already in use")
		}
		// The client stays unauthenticated and may retry with another name.
		return
	}

	s.state = StateAuthenticated
	s.metrics.SuccessfulLogins.Add(1)
	s.display.Message(s.label(), "Logged in")
	// No envelope on success; the client infers it from the absence of a failure.
}

// dispatchAuthenticated handles one envelope after login.
func (s *Session) dispatchAuthenticated(e *wire.Envelope) {
	switch {
	case e.Logout != nil:
		s.registry.Remove(s)
		s.display.Message(s.label(), "Logged out")
		s.state = StateClosed
		s.display.Message(s.label(), "Disconnected")

	case e.Text != nil:
		s.registry.Broadcast(&wire.Envelope{ServerText: &wire.TextServerMessage{
			SenderUsername: s.username,
			Text:           e.Text.Text,
		}})
		s.metrics.MessagesBroadcast.Add(1)
		s.display.Message(s.label(), "Sent TextMessage: "+e.Text.Text)

	case e.Whisper != nil:
		if s.registry.Whisper(e.Whisper.TargetUsername, e.Whisper.Text, s.username) {
			s.metrics.WhispersSent.Add(1)
		} else {
			// Whisper to an absent target drops silently; nothing goes back
			// to the sender.
			s.metrics.WhispersDropped.Add(1)
		}
		s.display.Message(s.label(), "Sent WhisperMessage: "+e.Whisper.Text)

	case e.WhoIsIn != nil:
		s.reply(&wire.Envelope{ClientList: &wire.ClientListResponse{
			Usernames: s.registry.Usernames(),
		}})
		s.metrics.WhoIsInServed.Add(1)
		s.display.Message(s.label(), "Sent WhoisinMessage")

	default:
		// Recognized but inapplicable variants are ignored once logged in.
	}
}

// reply sends a direct response on this connection. Send failures here are
// reported to the display; the session keeps running.
func (s *Session) reply(e *wire.Envelope) {
	if err := s.send(e); err != nil {
		s.display.Message(s.label(), "Error sending message")
	}
}

// send writes one envelope to the connection. It serializes concurrent
// writers (the session's own responses and registry-driven deliveries).
func (s *Session) send(e *wire.Envelope) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.WriteEnvelope(e)
}

// Kick closes the connection from outside the session's goroutine. The
// receive loop observes the closed connection and tears down normally.
func (s *Session) Kick() {
	_ = s.conn.Close()
}

// teardown deregisters and releases the connection. Safe to reach from any
// point in the lifecycle; every step tolerates already being done.
func (s *Session) teardown() {
	s.state = StateClosed
	s.registry.Remove(s)
	_ = s.conn.Close()
}

// addr returns the peer host address without the port, which is what the ban
// set is keyed by.
func (s *Session) addr() string {
	addr := s.conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// label identifies this client in display messages: the peer address, plus
// the username once one is known.
func (s *Session) label() string {
	if s.username != "" {
		return s.addr() + "][" + s.username
	}
	return s.addr()
}
