package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dukeofxor/gotalker/pkg/wire"
)

// wsConn adapts a websocket connection into an envelope stream: one JSON
// envelope per websocket text message, no length prefix.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadEnvelope() (*wire.Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, io.EOF
		}
		return nil, err
	}
	return wire.Decode(data)
}

func (c *wsConn) WriteEnvelope(e *wire.Envelope) error {
	data, err := wire.Encode(e)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWSRequest upgrades one HTTP request and runs the connection through
// the same session loop as TCP clients.
func (s *Server) handleWSRequest(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(wire.MaxMessageSize)
	s.handleConn(&wsConn{conn: conn})
}

// StartWS starts the WebSocket gateway. Clients connecting to /ws speak the
// same envelope protocol as TCP clients and share the same registry; the two
// transports are indistinguishable past the session constructor.
func (s *Server) StartWS() error {
	if s.cfg.WSAddr == "" {
		return nil // gateway disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWSRequest)

	srv := &http.Server{
		Addr:              s.cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("websocket gateway listening", "addr", s.cfg.WSAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("websocket gateway error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()

	return nil
}
