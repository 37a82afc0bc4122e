// Package wire defines the chat message envelope and its framing.
//
// Each connection carries a stream of discrete envelopes. On a raw stream
// socket an envelope is framed as [4-byte big-endian length][JSON payload];
// other transports (the WebSocket gateway) carry one JSON payload per
// transport message and reuse Encode/Decode directly.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

// MaxMessageSize is the maximum encoded envelope size (64KB).
const MaxMessageSize = 65536

// ErrUnknownMessage reports a payload that parsed as JSON but carried no
// recognized envelope variant.
var ErrUnknownMessage = errors.New("wire: unknown message")

// Conn is a single client connection carrying a stream of envelopes.
// Implementations are not required to be safe for concurrent use; callers
// serialize writes themselves.
type Conn interface {
	ReadEnvelope() (*Envelope, error)
	WriteEnvelope(*Envelope) error
	Close() error
	RemoteAddr() net.Addr
}

// Encode serializes an envelope to its JSON payload.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("wire: message too large: %d bytes", len(data))
	}
	return data, nil
}

// Decode parses a JSON payload into an envelope. Payloads that do not set
// any known variant fail with ErrUnknownMessage.
func Decode(data []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("wire: unmarshal: %w", err)
	}
	if e.empty() {
		return nil, ErrUnknownMessage
	}
	return e, nil
}

// WriteEnvelope writes one length-prefixed envelope to a writer.
func WriteEnvelope(w io.Writer, e *Envelope) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data))) //nolint:gosec // length already bounds-checked in Encode
	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("wire: write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadEnvelope reads one length-prefixed envelope from a reader.
func ReadEnvelope(r io.Reader) (*Envelope, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("wire: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxMessageSize {
		return nil, fmt.Errorf("wire: message too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("wire: read payload: %w", err)
	}
	return Decode(data)
}

// StreamConn adapts a net.Conn into an envelope stream using the
// length-prefixed framing.
type StreamConn struct {
	conn net.Conn
}

// NewStreamConn wraps an accepted stream socket.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{conn: conn}
}

func (c *StreamConn) ReadEnvelope() (*Envelope, error) {
	return ReadEnvelope(c.conn)
}

func (c *StreamConn) WriteEnvelope(e *Envelope) error {
	return WriteEnvelope(c.conn, e)
}

func (c *StreamConn) Close() error {
	return c.conn.Close()
}

func (c *StreamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// IsDisconnect reports whether a read or write error means the peer is gone,
// as opposed to a malformed payload on a live connection.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
