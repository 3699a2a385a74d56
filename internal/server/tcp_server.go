package server

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/faultdns/faultdns/internal/pool"
)

// lenBufPool reduces allocations for TCP length prefix reads/writes.
// Each buffer is exactly 2 bytes for the DNS-over-TCP length field.
var lenBufPool = pool.Bytes(2)

// TCP server configuration constants.
const (
	maxTCPMessageSize        = 65535            // Maximum DNS message size over TCP
	tcpReadTimeout           = 10 * time.Second // Read timeout per message
	tcpConnectionIdleTimeout = 30 * time.Second // Idle timeout for connection
	maxQueriesPerConnection  = 256              // Max queries before closing connection
	defaultMaxTCPConns       = 128              // Connection cap when the caller sets none
)

// TCPServer handles DNS queries over TCP with connection pipelining.
//
// TCP DNS message format (RFC 1035 section 4.2.2):
// Each message is prefixed with a 2-byte big-endian length field.
//
// The total connection count is semaphore-bounded. When the cap is reached,
// accepting pauses until a slot frees up; unlike UDP, overload delays
// queries rather than dropping them, so nothing disappears from the query
// log. Idle connections are closed after a timeout, and shutdown waits for
// in-flight connections to finish.
type TCPServer struct {
	Logger   *slog.Logger  // Optional logger
	Handler  *QueryHandler // Query processor
	MaxConns int           // Maximum concurrent connections

	ln  net.Listener        // The TCP listener
	wg  sync.WaitGroup      // Tracks the accept loop and active connections
	sem *semaphore.Weighted // Connection limiter
}

// Run starts the TCP server and blocks until ctx is cancelled.
func (s *TCPServer) Run(ctx context.Context, addr string) error {
	ln, err := listenTCPReusePort(ctx, addr)
	if err != nil {
		return err
	}
	s.ln = ln

	maxConns := s.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxTCPConns
	}
	s.sem = semaphore.NewWeighted(int64(maxConns))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	}()

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

// acceptLoop accepts connections until the context is cancelled or the
// listener is closed.
func (s *TCPServer) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}

		// Blocking acquire: at the cap, new connections wait for a slot
		// instead of being refused.
		if err := s.sem.Acquire(ctx, 1); err != nil {
			_ = c.Close()
			return
		}

		conn := c
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection processes DNS queries on a single TCP connection.
// Supports pipelining: multiple queries can be sent on the same connection.
// The connection closes on shutdown, idle timeout, a read/write error, or
// after maxQueriesPerConnection queries.
func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Set initial idle timeout
	_ = conn.SetDeadline(time.Now().Add(tcpConnectionIdleTimeout))

	for i := 0; i < maxQueriesPerConnection; i++ {
		if ctx.Err() != nil {
			return
		}

		msg, ok := s.readMessage(conn)
		if !ok {
			return
		}
		if len(msg) == 0 {
			continue // empty message, try next
		}

		// Reset idle timeout after activity
		_ = conn.SetDeadline(time.Now().Add(tcpConnectionIdleTimeout))

		if s.Handler == nil {
			return
		}

		res := s.Handler.Handle(ctx, "tcp", conn.RemoteAddr().String(), msg)
		if len(res.ResponseBytes) == 0 {
			continue
		}

		if !s.writeMessage(conn, res.ResponseBytes) {
			return
		}
	}
}

// readMessage reads a length-prefixed DNS message from the connection.
// Returns nil, false on error or if the message is too large.
func (s *TCPServer) readMessage(conn net.Conn) ([]byte, bool) {
	// Read 2-byte length prefix using pooled buffer
	_ = conn.SetReadDeadline(time.Now().Add(tcpReadTimeout))
	lenBufPtr := lenBufPool.Get()
	lenBuf := *lenBufPtr
	_, err := io.ReadFull(conn, lenBuf)
	if err != nil {
		lenBufPool.Put(lenBufPtr)
		return nil, false
	}
	msgLen := int(binary.BigEndian.Uint16(lenBuf))
	lenBufPool.Put(lenBufPtr)

	if msgLen == 0 {
		return nil, true // empty message
	}
	if msgLen > maxTCPMessageSize {
		return nil, false // message too large
	}

	// Read message body
	_ = conn.SetReadDeadline(time.Now().Add(tcpReadTimeout))
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, msg); err != nil {
		return nil, false
	}
	return msg, true
}

// writeMessage writes a length-prefixed DNS message to the connection.
// Uses net.Buffers to send prefix and body without a combined allocation.
// Returns false on error.
func (s *TCPServer) writeMessage(conn net.Conn, response []byte) bool {
	respLen := len(response)
	if respLen > maxTCPMessageSize {
		return false
	}

	_ = conn.SetWriteDeadline(time.Now().Add(tcpReadTimeout))

	lenBufPtr := lenBufPool.Get()
	lenBuf := *lenBufPtr
	binary.BigEndian.PutUint16(lenBuf, uint16(respLen))

	bufs := net.Buffers{lenBuf, response}
	_, err := bufs.WriteTo(conn)

	lenBufPool.Put(lenBufPtr)
	return err == nil
}

// Stop gracefully shuts down the TCP server.
// Waits up to the specified timeout for connections to close.
func (s *TCPServer) Stop(timeout time.Duration) error {
	if s.ln != nil {
		_ = s.ln.Close()
	}

	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("tcp server: timeout waiting for connections")
	}
}

// listenTCPReusePort creates a TCP listener with SO_REUSEPORT enabled, for
// the same clean-rebind reason as the UDP socket.
func listenTCPReusePort(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}
