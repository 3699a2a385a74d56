package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/pool"
)

// bufferPool reduces allocations for incoming UDP packets.
// Each buffer is sized for the largest accepted DNS message.
var bufferPool = pool.Bytes(dnswire.MaxIncomingMessageSize)

// defaultMaxConcurrency bounds in-flight handlers when the caller sets none.
const defaultMaxConcurrency = 256

// UDPServer handles DNS queries over UDP.
//
// Features:
//   - Buffer pooling to reduce GC pressure under load
//   - Semaphore-bounded handler concurrency (excess queries are dropped,
//     which is honest UDP behavior and shows up in the drop counter)
//   - Classic 512-byte response truncation with TC set
//   - SO_REUSEPORT sockets so consecutive runs rebind cleanly
//   - Graceful shutdown that drains in-flight requests
type UDPServer struct {
	Logger         *slog.Logger  // Optional logger
	Handler        *QueryHandler // Query processor
	MaxConcurrency int           // Maximum concurrent request handlers

	conn *net.UDPConn        // The UDP socket
	wg   sync.WaitGroup      // Tracks in-flight requests
	sem  *semaphore.Weighted // Concurrency limiter
}

// Run starts the UDP server, listening on the given address.
func (s *UDPServer) Run(ctx context.Context, addr string) error {
	conn, err := listenUDPReusePort(ctx, addr)
	if err != nil {
		return err
	}
	return s.RunOnConn(ctx, conn)
}

// RunOnConn runs the server on an existing UDP connection.
// This is useful for testing and when the caller manages the socket.
//
// Request processing flow:
//  1. Read a packet from the socket (1s read deadline for shutdown checks)
//  2. Acquire a handler slot (drop the packet if all slots are busy)
//  3. Process the request in a goroutine
//  4. Truncate the response to the classic UDP limit if needed
//  5. Send the response
func (s *UDPServer) RunOnConn(ctx context.Context, conn *net.UDPConn) error {
	s.conn = conn
	defer conn.Close()

	maxConc := s.MaxConcurrency
	if maxConc <= 0 {
		maxConc = defaultMaxConcurrency
	}
	s.sem = semaphore.NewWeighted(int64(maxConc))

	for {
		if ctx.Err() != nil {
			break
		}

		payload, remote, ok := s.receivePacket(ctx, conn)
		if !ok {
			continue
		}

		if !s.sem.TryAcquire(1) {
			droppedTotal.Inc()
			continue
		}

		s.wg.Add(1)
		go s.handleRequest(ctx, conn, payload, remote)
	}

	return nil
}

// receivePacket reads a UDP packet using a pooled buffer.
// Returns the packet data and source address, or ok=false if no packet was received.
func (s *UDPServer) receivePacket(ctx context.Context, conn *net.UDPConn) ([]byte, *net.UDPAddr, bool) {
	bufPtr := bufferPool.Get()
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	n, remote, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, false // timeout, check context and retry
		}
		return nil, nil, false
	}
	if remote == nil {
		return nil, nil, false
	}

	// Copy data out of pooled buffer
	data := make([]byte, n)
	copy(data, buf[:n])
	return data, remote, true
}

// handleRequest processes a single DNS request.
func (s *UDPServer) handleRequest(ctx context.Context, conn *net.UDPConn, payload []byte, peer *net.UDPAddr) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	if s.Handler == nil {
		return
	}

	res := s.Handler.Handle(ctx, "udp", peer.String(), payload)
	if len(res.ResponseBytes) == 0 {
		return
	}

	out := truncateUDPResponse(res.ResponseBytes, dnswire.DefaultUDPPayloadSize)
	if len(out) < len(res.ResponseBytes) {
		truncatedTotal.Inc()
	}
	_, _ = conn.WriteToUDP(out, peer)
}

// Stop gracefully shuts down the UDP server.
// Waits up to the specified timeout for in-flight requests to complete.
// Returns an error if the timeout is exceeded.
func (s *UDPServer) Stop(timeout time.Duration) error {
	if s.conn == nil {
		return nil
	}
	_ = s.conn.Close()

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
		return errors.New("udp server: timeout waiting for in-flight requests")
	}
}

// listenUDPReusePort opens a UDP socket with SO_REUSEPORT enabled. The
// fixture is started and stopped once per evaluation run; reuse keeps a
// dying process from blocking the next run's bind.
func listenUDPReusePort(ctx context.Context, addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, errors.New("udp server: unexpected packet connection type")
	}
	return conn, nil
}
