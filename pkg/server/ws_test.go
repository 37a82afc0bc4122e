package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dukeofxor/gotalker/pkg/store"
	"github.com/dukeofxor/gotalker/pkg/wire"
)

func wsWrite(t *testing.T, conn *websocket.Conn, e *wire.Envelope) {
	t.Helper()
	data, err := wire.Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

func wsRead(t *testing.T, conn *websocket.Conn) *wire.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	e, err := wire.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return e
}

func TestWebSocketGateway(t *testing.T) {
	srv := New(DefaultConfig(), Dependencies{Bans: store.NewMemory(), Display: discardDisplay{}})

	hs := httptest.NewServer(http.HandlerFunc(srv.handleWSRequest))
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	// A websocket client goes through the same login gate as TCP clients.
	wsWrite(t, conn, &wire.Envelope{Login: &wire.LoginRequest{Username: "alice"}})
	waitFor(t, "alice registered via websocket", func() bool {
		names := srv.Registry().Usernames()
		return len(names) == 1 && names[0] == "alice"
	})

	wsWrite(t, conn, &wire.Envelope{WhoIsIn: &wire.WhoIsInRequest{}})
	e := wsRead(t, conn)
	if e.ClientList == nil || len(e.ClientList.Usernames) != 1 || e.ClientList.Usernames[0] != "alice" {
		t.Fatalf("who-is-in over websocket = %+v, want [alice]", e)
	}
}

func TestWebSocketGatewayUnauthenticatedGate(t *testing.T) {
	srv := New(DefaultConfig(), Dependencies{Bans: store.NewMemory(), Display: discardDisplay{}})

	hs := httptest.NewServer(http.HandlerFunc(srv.handleWSRequest))
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	wsWrite(t, conn, &wire.Envelope{Text: &wire.TextMessage{Text: "hi"}})

	// The server drops the connection after one pre-login non-login message.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection survived an unauthenticated text message")
	}
}
