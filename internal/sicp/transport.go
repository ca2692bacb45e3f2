package sicp

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

// Sender performs one SICP round trip. It is the seam between the retry
// and controller layers and the network; tests substitute fakes.
type Sender interface {
	// Send writes the frame and, when expectReply is true, reads back one
	// length-prefixed reply. A short reply (peer closed or read timeout
	// after the length byte arrived) is returned as-is so callers can
	// detect partial frames via length mismatch.
	Send(ctx context.Context, frame Frame, expectReply bool) ([]byte, error)
}

// Transport sends frames to one panel over TCP, one connection per frame.
//
// Panels behave like half-duplex request/response devices; a fresh
// connection per frame avoids stuck connections after a panel-side timeout
// and keeps the protocol stateless between commands.
//
// Thread Safety: Send is safe for concurrent use, though callers above
// this layer serialise per panel anyway.
type Transport struct {
	host    string
	port    int
	timeout time.Duration
	dialer  net.Dialer
}

var _ Sender = (*Transport)(nil)

// NewTransport creates a transport for one panel endpoint. The timeout
// bounds each individual connect, write, and read operation.
func NewTransport(host string, port int, timeout time.Duration) *Transport {
	return &Transport{host: host, port: port, timeout: timeout}
}

// Send performs one round trip:
//
//  1. Connect with the configured timeout. Socket-level failures become
//     *ConnectionError.
//  2. Write the full frame. Fire-and-forget commands (expectReply false)
//     return an empty reply immediately after the write.
//  3. Read exactly one byte: the reply's declared total length.
//  4. Read until that many bytes are collected, the per-read timeout
//     elapses, or the peer closes early — whichever comes first. A short
//     read is returned as-is, not as an error.
//
// The connection is closed on every exit path.
func (t *Transport) Send(ctx context.Context, frame Frame, expectReply bool) ([]byte, error) {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	conn, err := t.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, t.connErr(err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, t.connErr(err)
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, t.connErr(err)
	}

	if !expectReply {
		return nil, nil
	}

	return t.readReply(conn)
}

// readReply reads one length-prefixed reply from the connection.
func (t *Transport) readReply(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, t.connErr(err)
	}

	// First byte declares the reply's total length, itself included.
	first := make([]byte, 1)
	if _, err := io.ReadFull(conn, first); err != nil {
		if errors.Is(err, io.EOF) {
			// Peer closed without data: empty reply, caller decides.
			return nil, nil
		}
		return nil, t.connErr(err)
	}

	expected := int(first[0])
	received := make([]byte, 1, max(expected, 1))
	received[0] = first[0]

	for len(received) < expected {
		if err := conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return nil, t.connErr(err)
		}
		chunk := make([]byte, expected-len(received))
		n, err := conn.Read(chunk)
		received = append(received, chunk[:n]...)
		if err != nil {
			// Early close or timeout mid-reply: hand back what arrived
			// so parsers surface a length mismatch.
			break
		}
	}

	return received, nil
}

// connErr wraps a socket error with the panel's endpoint.
func (t *Transport) connErr(err error) *ConnectionError {
	return &ConnectionError{Host: t.host, Port: t.port, Cause: err}
}
