// Package transport implements the TCP transport and request/response
// multiplexer for AMS/ADS communication: it owns the socket, runs the
// background receive loop, and routes incoming frames to either a pending
// synchronous request or the notification handler.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twincatio/goads/internal/ams"
)

// ConnectionState represents the state of the connection.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnecting
	StateClosed
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrConnectionFailed = errors.New("connection failed")
)

// receiveTick bounds how long the receiver blocks on a single socket read
// before re-checking its shutdown signal, so Close() is noticed promptly
// even with no traffic in flight.
const receiveTick = 1 * time.Second

// NotificationHandler is called for every spontaneous DEVICE_NOTIFICATION frame.
type NotificationHandler func(*ams.Packet)

// correlationKey combines a command id and invoke id into the 64-bit key
// used to match a response to the request that produced it: high 32 bits
// are the command id, low 32 bits are the invoke id.
type correlationKey uint64

func newCorrelationKey(commandID uint16, invokeID uint32) correlationKey {
	return correlationKey(uint64(commandID)<<32 | uint64(invokeID))
}

// Conn owns one AMS/TCP socket and multiplexes it: a dedicated receiver
// goroutine demultiplexes every inbound frame into either a waiting
// request (by correlation key) or the notification handler.
type Conn struct {
	conn      net.Conn
	writeMu   sync.Mutex
	state     atomic.Int32
	timeout   time.Duration
	invokeID  atomic.Uint32
	responses chan *pendingResponse

	pending   map[correlationKey]chan<- *ams.Packet
	pendingMu sync.RWMutex

	notificationHandler NotificationHandler
	notifHandlerMu      sync.RWMutex

	// localPort, when non-zero, filters inbound frames to this connection's
	// own target port — the shared-loopback-router case where several
	// connections read from what is ultimately the same machine.
	localPort uint16

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	readLoopDone   chan struct{}

	lastError error
	errorMu   sync.RWMutex
}

type pendingResponse struct {
	key    correlationKey
	packet *ams.Packet
	err    error
}

// Dial opens a TCP connection to address (host:port) and starts the
// background receiver. The socket is tuned for low-latency request/response
// traffic: keepalive enabled, Nagle's algorithm disabled, linger disabled so
// a later Close doesn't block on lingering data.
func Dial(ctx context.Context, address string, timeout time.Duration) (*Conn, error) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}

	if tcpConn, ok := netConn.(*net.TCPConn); ok {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: set keepalive: %w", err)
		}
		if err := tcpConn.SetKeepAlivePeriod(30 * time.Second); err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: set keepalive period: %w", err)
		}
		if err := tcpConn.SetNoDelay(true); err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: set nodelay: %w", err)
		}
		if err := tcpConn.SetLinger(0); err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: set linger: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	c := &Conn{
		conn:           netConn,
		timeout:        timeout,
		responses:      make(chan *pendingResponse, 16),
		pending:        make(map[correlationKey]chan<- *ams.Packet),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
		readLoopDone:   make(chan struct{}),
	}
	c.state.Store(int32(StateConnected))

	go c.readLoop()
	go c.dispatchLoop()

	return c, nil
}

// RawConn exposes the underlying net.Conn for the one-shot loopback
// handshake, which precedes any AMS framing and has no correlation id.
func (c *Conn) RawConn() net.Conn {
	return c.conn
}

// SetLocalPort restricts delivery to frames addressed to this port, used
// after a loopback handshake assigns the connection's effective source port.
func (c *Conn) SetLocalPort(port uint16) {
	c.localPort = port
}

func (c *Conn) Close() error {
	return c.CloseWithTimeout(5 * time.Second)
}

// CloseWithTimeout signals shutdown, unblocks every pending waiter with a
// nil response, and closes the socket. It then waits up to timeout for the
// receiver goroutine to exit; if the receiver is still running when the
// timeout elapses, it returns without waiting further.
func (c *Conn) CloseWithTimeout(timeout time.Duration) error {
	if !c.compareAndSwapState(StateConnected, StateDisconnecting) {
		current := c.getState()
		if current == StateClosed || current == StateDisconnecting {
			return nil
		}
		c.state.Store(int32(StateDisconnecting))
	}

	c.shutdownCancel()

	done := make(chan struct{})
	go func() {
		c.pendingMu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = nil
		c.pendingMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		c.setError(errors.New("close timeout: pending requests abandoned"))
	}

	err := c.conn.Close()

	select {
	case <-c.readLoopDone:
	case <-time.After(timeout):
	}
	close(c.responses)

	c.state.Store(int32(StateClosed))
	return err
}

func (c *Conn) compareAndSwapState(old, new ConnectionState) bool {
	return c.state.CompareAndSwap(int32(old), int32(new))
}

func (c *Conn) getState() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Conn) setError(err error) {
	c.errorMu.Lock()
	c.lastError = err
	c.errorMu.Unlock()

	for {
		s := c.state.Load()
		if ConnectionState(s) == StateDisconnecting || ConnectionState(s) == StateClosed {
			return
		}
		if c.state.CompareAndSwap(s, int32(StateError)) {
			return
		}
	}
}

func (c *Conn) getError() error {
	c.errorMu.RLock()
	defer c.errorMu.RUnlock()
	return c.lastError
}

// NextInvokeID returns the next client-chosen invoke id, wrapping at 2^30 as
// required by the wire format (the top two bits are reserved).
func (c *Conn) NextInvokeID() uint32 {
	for {
		cur := c.invokeID.Load()
		next := (cur + 1) % (1 << 30)
		if c.invokeID.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// SetNotificationHandler installs the handler invoked for every
// DEVICE_NOTIFICATION frame. It must be set before the first notification
// can arrive to avoid dropping it.
func (c *Conn) SetNotificationHandler(handler NotificationHandler) {
	c.notifHandlerMu.Lock()
	c.notificationHandler = handler
	c.notifHandlerMu.Unlock()
}

// SendRequest writes req and waits for the response carrying the same
// correlation key (command id, invoke id), or for ctx/shutdown/timeout.
// The caller is responsible for serialising concurrent calls if command
// ordering matters to it — SendRequest itself supports any number of
// outstanding requests at once, since correlation is per invoke id.
func (c *Conn) SendRequest(ctx context.Context, req *ams.Packet) (*ams.Packet, error) {
	state := c.getState()
	if state != StateConnected {
		if err := c.getError(); err != nil {
			return nil, fmt.Errorf("transport: connection %s: %w", state, err)
		}
		return nil, fmt.Errorf("transport: connection %s", state)
	}

	key := newCorrelationKey(req.Header.CommandID, req.Header.InvokeID)
	respCh := make(chan *ams.Packet, 1)

	c.pendingMu.Lock()
	if c.pending == nil {
		c.pendingMu.Unlock()
		return nil, ErrConnectionClosed
	}
	c.pending[key] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		if c.pending != nil {
			delete(c.pending, key)
		}
		c.pendingMu.Unlock()
	}()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			c.setError(err)
			return nil, fmt.Errorf("transport: set write deadline: %w", err)
		}
	}

	c.writeMu.Lock()
	err := ams.WritePacket(c.conn, req)
	c.writeMu.Unlock()
	if err != nil {
		c.setError(err)
		return nil, fmt.Errorf("transport: write failed: %w", err)
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp, ok := <-respCh:
		if !ok || resp == nil {
			if err := c.getError(); err != nil {
				return nil, fmt.Errorf("transport: connection closed: %w", err)
			}
			return nil, ErrConnectionClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.shutdownCtx.Done():
		return nil, ErrConnectionClosed
	case <-time.After(timeout):
		return nil, fmt.Errorf("transport: request timeout after %v", timeout)
	}
}

// readLoop is the single goroutine permitted to read the socket. It blocks
// in short ticks so it notices shutdown promptly even while idle, decodes
// one frame per iteration, and hands it to dispatchLoop.
func (c *Conn) readLoop() {
	defer close(c.readLoopDone)
	defer func() {
		if c.getState() == StateConnected {
			c.setError(errors.New("read loop terminated unexpectedly"))
		}
	}()

	for {
		select {
		case <-c.shutdownCtx.Done():
			return
		default:
		}

		if c.getState() != StateConnected {
			return
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(receiveTick)); err != nil {
			c.setError(fmt.Errorf("set read deadline: %w", err))
			c.deliverFatal(err)
			return
		}

		packet, err := ams.ReadPacket(c.conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if c.getState() == StateConnected {
				c.setError(fmt.Errorf("read packet failed: %w", err))
				c.deliverFatal(err)
			}
			return
		}

		select {
		case c.responses <- &pendingResponse{
			key:    newCorrelationKey(packet.Header.CommandID, packet.Header.InvokeID),
			packet: packet,
		}:
		case <-c.shutdownCtx.Done():
			return
		}
	}
}

func (c *Conn) deliverFatal(err error) {
	select {
	case c.responses <- &pendingResponse{err: err}:
	case <-c.shutdownCtx.Done():
	}
}

func (c *Conn) dispatchLoop() {
	for resp := range c.responses {
		if resp.err != nil {
			go c.Close()
			return
		}

		if resp.packet.Header.CommandID == 0x0008 {
			if c.localPort != 0 && uint16(resp.packet.Header.TargetPort) != c.localPort {
				continue
			}
			c.notifHandlerMu.RLock()
			handler := c.notificationHandler
			c.notifHandlerMu.RUnlock()
			if handler != nil {
				go handler(resp.packet)
			}
			continue
		}

		if c.localPort != 0 && uint16(resp.packet.Header.TargetPort) != c.localPort {
			continue
		}

		c.pendingMu.RLock()
		ch, ok := c.pending[resp.key]
		c.pendingMu.RUnlock()

		if ok && ch != nil {
			select {
			case ch <- resp.packet:
			default:
			}
		}
	}
}
