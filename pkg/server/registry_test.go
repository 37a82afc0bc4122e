package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/dukeofxor/gotalker/pkg/wire"
)

// fakeConn is a connection whose peer address can be chosen and whose writes
// are recorded.
type fakeConn struct {
	addr string

	mu        sync.Mutex
	sent      []*wire.Envelope
	failSends bool
}

func (c *fakeConn) ReadEnvelope() (*wire.Envelope, error) { return nil, io.EOF }

func (c *fakeConn) WriteEnvelope(e *wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSends {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, e)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) RemoteAddr() net.Addr { return &net.IPAddr{IP: net.ParseIP(c.addr)} }

func (c *fakeConn) received() []*wire.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*wire.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

type discardDisplay struct{}

func (discardDisplay) Message(_, _ string) {}

// fakeSession builds a session over a fakeConn without running its loop.
func fakeSession(t *testing.T, addr string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{addr: addr}
	return NewSession(conn, NewRegistry(), discardDisplay{}, NewMetrics()), conn
}

func TestRegisterUniqueness(t *testing.T) {
	reg := NewRegistry()
	a, _ := fakeSession(t, "10.0.0.1")
	b, _ := fakeSession(t, "10.0.0.2")
	c, _ := fakeSession(t, "10.0.0.3")

	if err := reg.Register(a, "alice"); err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	if err := reg.Register(b, "alice"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username err = %v, want ErrUsernameTaken", err)
	}
	// Uniqueness is case-sensitive exact match.
	if err := reg.Register(c, "Alice"); err != nil {
		t.Fatalf("Register Alice: %v", err)
	}

	names := reg.Usernames()
	if len(names) != 2 || names[0] != "alice" || names[1] != "Alice" {
		t.Fatalf("Usernames() = %v, want [alice Alice] in registration order", names)
	}
}

func TestRegisterBanPrecedence(t *testing.T) {
	reg := NewRegistry()
	a, _ := fakeSession(t, "10.0.0.1")
	if err := reg.Register(a, "alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	reg.Ban("192.0.2.1")
	if !reg.IsBanned("192.0.2.1") {
		t.Fatal("IsBanned = false after Ban")
	}

	banned, _ := fakeSession(t, "192.0.2.1")

	// Banned address with a free username is rejected.
	if err := reg.Register(banned, "bob"); !errors.Is(err, ErrAddressBanned) {
		t.Fatalf("banned register err = %v, want ErrAddressBanned", err)
	}
	// When both checks would fail, the ban wins.
	if err := reg.Register(banned, "alice"); !errors.Is(err, ErrAddressBanned) {
		t.Fatalf("banned+taken register err = %v, want ErrAddressBanned", err)
	}
}

func TestRegisterConcurrentSameUsername(t *testing.T) {
	reg := NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		s, _ := fakeSession(t, "10.0.0.1")
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			errs[i] = reg.Register(s, "alice")
		}(i, s)
	}
	wg.Wait()

	var wins, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || taken != attempts-1 {
		t.Fatalf("got %d winners and %d rejections, want exactly 1 and %d", wins, taken, attempts-1)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	reg := NewRegistry()
	a, _ := fakeSession(t, "10.0.0.1")
	stranger, _ := fakeSession(t, "10.0.0.9")

	if err := reg.Register(a, "alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	reg.Remove(stranger) // never registered; no-op
	reg.Remove(a)
	reg.Remove(a) // second remove is a no-op

	if n := reg.Count(); n != 0 {
		t.Fatalf("Count() = %d after removes, want 0", n)
	}
	// The username is free again.
	if err := reg.Register(stranger, "alice"); err != nil {
		t.Fatalf("re-register after remove: %v", err)
	}
}

func TestBroadcastFanOut(t *testing.T) {
	reg := NewRegistry()

	conns := make([]*fakeConn, 3)
	for i, name := range []string{"alice", "bob", "carol"} {
		s, conn := fakeSession(t, "10.0.0.1")
		conns[i] = conn
		if err := reg.Register(s, name); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	reg.Broadcast(&wire.Envelope{ServerText: &wire.TextServerMessage{SenderUsername: "alice", Text: "hi"}})

	for i, conn := range conns {
		got := conn.received()
		if len(got) != 1 {
			t.Fatalf("recipient %d received %d envelopes, want 1", i, len(got))
		}
		st := got[0].ServerText
		if st == nil || st.SenderUsername != "alice" || st.Text != "hi" {
			t.Fatalf("recipient %d got %+v", i, got[0])
		}
	}
}

func TestBroadcastSendFailureIsolated(t *testing.T) {
	reg := NewRegistry()

	first, firstConn := fakeSession(t, "10.0.0.1")
	broken, brokenConn := fakeSession(t, "10.0.0.2")
	last, lastConn := fakeSession(t, "10.0.0.3")
	brokenConn.failSends = true

	for name, s := range map[string]*Session{"alice": first, "bob": broken, "carol": last} {
		if err := reg.Register(s, name); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	reg.Broadcast(&wire.Envelope{ServerText: &wire.TextServerMessage{SenderUsername: "alice", Text: "hi"}})

	if len(firstConn.received()) != 1 || len(lastConn.received()) != 1 {
		t.Fatal("a failing recipient prevented delivery to the others")
	}
}

func TestWhisperIsolation(t *testing.T) {
	reg := NewRegistry()

	alice, aliceConn := fakeSession(t, "10.0.0.1")
	bob, bobConn := fakeSession(t, "10.0.0.2")
	if err := reg.Register(alice, "alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(bob, "bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !reg.Whisper("alice", "secret", "bob") {
		t.Fatal("Whisper to present target returned false")
	}

	got := aliceConn.received()
	if len(got) != 1 || got[0].ServerText == nil ||
		got[0].ServerText.SenderUsername != "bob" || got[0].ServerText.Text != "secret" {
		t.Fatalf("alice received %+v, want whisper from bob", got)
	}
	if len(bobConn.received()) != 0 {
		t.Fatal("whisper leaked back to the sender")
	}
}

func TestWhisperAbsentTarget(t *testing.T) {
	reg := NewRegistry()
	bob, bobConn := fakeSession(t, "10.0.0.2")
	if err := reg.Register(bob, "bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if reg.Whisper("nobody", "hello?", "bob") {
		t.Fatal("Whisper to absent target returned true")
	}
	if len(bobConn.received()) != 0 {
		t.Fatal("whisper to absent target produced an envelope")
	}
}

func TestBanReturnsAffectedSessions(t *testing.T) {
	reg := NewRegistry()

	alice, _ := fakeSession(t, "10.0.0.1")
	bob, _ := fakeSession(t, "192.0.2.1")
	if err := reg.Register(alice, "alice"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(bob, "bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	affected := reg.Ban("192.0.2.1")
	if len(affected) != 1 || affected[0] != bob {
		t.Fatalf("Ban affected %v, want only bob's session", affected)
	}
}
