// Package goads provides a Go client library for TwinCAT ADS/AMS communication over TCP.
package goads

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/twincatio/goads/internal/ads"
	"github.com/twincatio/goads/internal/ams"
	"github.com/twincatio/goads/internal/symbols"
	"github.com/twincatio/goads/internal/transport"
)

// defaultTCPPort is the fixed AMS/TCP port every router listens on.
const defaultTCPPort = "48898"

// Client represents an ADS client connection. All exported methods are safe
// for concurrent use; request/response commands are serialized through
// cmdMu so that a correlation slot is never reused before its response (or
// timeout) has been observed, while notifications and Close may proceed
// concurrently with an in-flight command.
type Client struct {
	conn        *transport.Conn
	targetNetID ams.NetID
	targetPort  ams.Port
	sourceNetID ams.NetID
	sourcePort  ams.Port
	logger      Logger
	metrics     Metrics

	// cmdMu serializes user-initiated request/response commands. It is held
	// for the duration of sendRequest, not by the transport layer, so that
	// internal/transport.Conn stays independently testable without it.
	cmdMu sync.Mutex

	subscriptions   map[uint32]*Subscription
	subscriptionsMu sync.RWMutex

	symbolHandles   map[string]uint32
	symbolHandlesMu sync.Mutex

	symbolTable   *symbols.Table
	symbolTableMu sync.RWMutex

	typeRegistry   *symbols.TypeRegistry
	typeRegistryMu sync.RWMutex
}

// DeviceInfo represents device information returned by ReadDeviceInfo.
type DeviceInfo struct {
	Name         string
	MajorVersion uint8
	MinorVersion uint8
	VersionBuild uint16
}

// DeviceState represents the state of an ADS device.
type DeviceState struct {
	ADSState    ads.ADSState
	DeviceState uint16
}

// Option is a functional option for configuring a Client.
type Option func(*clientConfig) error

type clientConfig struct {
	address     string
	targetNetID ams.NetID
	targetPort  ams.Port
	sourceNetID ams.NetID
	sourcePort  ams.Port
	timeout     time.Duration
	logger      Logger
	metrics     Metrics
	registerNet bool
}

// WithTarget sets the target host (required). A bare host ("plc.local",
// "127.0.0.1") is connected to on the fixed AMS/TCP router port 48898; a
// "host:port" address is used as given, for the rare router listening on a
// non-default port.
func WithTarget(address string) Option {
	return func(c *clientConfig) error {
		if address == "" {
			return fmt.Errorf("goads: target address cannot be empty")
		}
		c.address = withDefaultPort(address, defaultTCPPort)
		return nil
	}
}

// withDefaultPort appends port to address if address does not already carry
// one.
func withDefaultPort(address, port string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, port)
}

// isLoopbackHost reports whether address (bare host or host:port) resolves
// to the loopback interface, as "localhost" or a loopback IP literal.
func isLoopbackHost(address string) bool {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	if host == "localhost" {
		return true
	}
	return net.ParseIP(host).IsLoopback()
}

// WithAMSNetID sets the target AMS NetID (required unless WithAMSNetIDString is used).
func WithAMSNetID(netID ams.NetID) Option {
	return func(c *clientConfig) error {
		c.targetNetID = netID
		return nil
	}
}

// WithAMSNetIDString parses "a.b.c.d.e.f" and sets it as the target AMS NetID.
func WithAMSNetIDString(netID string) Option {
	return func(c *clientConfig) error {
		parsed, err := ams.ParseNetID(netID)
		if err != nil {
			return fmt.Errorf("goads: target net id: %w", err)
		}
		c.targetNetID = parsed
		return nil
	}
}

// WithAMSPort sets the target AMS port (optional, defaults to 851).
func WithAMSPort(port ams.Port) Option {
	return func(c *clientConfig) error {
		c.targetPort = port
		return nil
	}
}

// WithSourceNetID sets the source AMS NetID (optional).
func WithSourceNetID(netID ams.NetID) Option {
	return func(c *clientConfig) error {
		c.sourceNetID = netID
		return nil
	}
}

// WithSourcePort sets the source AMS port (optional).
func WithSourcePort(port ams.Port) Option {
	return func(c *clientConfig) error {
		c.sourcePort = port
		return nil
	}
}

// WithTimeout sets the timeout for requests (optional).
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) error {
		if timeout <= 0 {
			return fmt.Errorf("goads: timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

// WithRouterRegistration forces the loopback registration handshake to
// discover a source NetID/port from the target's AMS router, even when the
// target is not a loopback address. New already performs this handshake
// automatically whenever the target is loopback and no source identity was
// configured; this option is only needed to opt in when the target isn't
// loopback (e.g. a router reachable through a NAT/port-forward that still
// treats the connection as local).
func WithRouterRegistration() Option {
	return func(c *clientConfig) error {
		c.registerNet = true
		return nil
	}
}

// New creates a new ADS client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		targetPort: ams.PortPLCRuntime1,
		timeout:    5 * time.Second,
		logger:     DefaultLogger,
		metrics:    DefaultMetrics,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.address == "" {
		return nil, fmt.Errorf("goads: target address is required")
	}

	cfg.metrics.ConnectionAttempts()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	conn, err := transport.Dial(ctx, cfg.address, cfg.timeout)
	if err != nil {
		cfg.metrics.ConnectionFailures()
		return nil, fmt.Errorf("goads: connection failed: %w", err)
	}

	// Per the AMS wire contract, a loopback target with no explicit source
	// identity gets the router handshake automatically; WithRouterRegistration
	// forces it for non-loopback targets too.
	needsHandshake := cfg.registerNet ||
		(isLoopbackHost(cfg.address) && cfg.sourceNetID.IsZero() && cfg.sourcePort == 0)

	if needsHandshake {
		netID, port, err := performRouterHandshake(conn, cfg.timeout)
		if err != nil {
			conn.Close()
			cfg.metrics.ConnectionFailures()
			return nil, fmt.Errorf("goads: router registration: %w", err)
		}
		cfg.sourceNetID = netID
		cfg.sourcePort = ams.Port(port)
	} else if cfg.sourcePort == 0 {
		cfg.sourcePort = 32905
	}

	client := &Client{
		conn:          conn,
		targetNetID:   cfg.targetNetID,
		targetPort:    cfg.targetPort,
		sourceNetID:   cfg.sourceNetID,
		sourcePort:    cfg.sourcePort,
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		subscriptions: make(map[uint32]*Subscription),
		symbolHandles: make(map[string]uint32),
		symbolTable:   symbols.NewTable(),
		typeRegistry:  symbols.NewTypeRegistry(),
	}

	conn.SetLocalPort(uint16(cfg.sourcePort))
	conn.SetNotificationHandler(client.handleNotification)

	cfg.metrics.ConnectionSuccesses()
	cfg.metrics.ConnectionActive(true)
	client.logger.Info("client connected", "address", cfg.address, "target_port", cfg.targetPort)

	return client, nil
}

// performRouterHandshake issues the 16-byte loopback registration frame on
// the raw socket, ahead of any AMS framing, and parses the 14-byte reply
// carrying the NetID/port the router assigned this connection.
func performRouterHandshake(conn *transport.Conn, timeout time.Duration) (ams.NetID, uint16, error) {
	raw := conn.RawConn()
	if err := raw.SetDeadline(time.Now().Add(timeout)); err != nil {
		return ams.NetID{}, 0, err
	}
	defer raw.SetDeadline(time.Time{})

	req := ams.RouterRegisterRequest(uint32(timePseudoProcessID()))
	if _, err := raw.Write(req); err != nil {
		return ams.NetID{}, 0, fmt.Errorf("write registration request: %w", err)
	}

	netID, port, err := ams.ReadRouterRegisterResponse(raw)
	if err != nil {
		return ams.NetID{}, 0, err
	}
	return netID, uint16(port), nil
}

// timePseudoProcessID stands in for an OS process id in the registration
// frame; the router only uses it to key its internal client table, not as a
// real PID, so any stable-for-the-connection value is acceptable.
func timePseudoProcessID() uint32 {
	return 0
}

// Close closes the client connection and all active subscriptions. Active
// subscriptions are deleted on the device first, then owned symbol handles
// are released, and only then is the transport closed.
func (c *Client) Close() error {
	c.subscriptionsMu.Lock()
	subs := make([]*Subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subscriptionsMu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil && c.logger != nil {
			c.logger.Warn("delete notification failed during close", "handle", sub.handle, "error", err)
		}
	}

	c.symbolHandlesMu.Lock()
	handles := make([]uint32, 0, len(c.symbolHandles))
	for _, h := range c.symbolHandles {
		handles = append(handles, h)
	}
	c.symbolHandles = make(map[string]uint32)
	c.symbolHandlesMu.Unlock()

	for _, h := range handles {
		if err := c.ReleaseSymbolHandle(context.Background(), h); err != nil && c.logger != nil {
			c.logger.Warn("release symbol handle failed during close", "handle", h, "error", err)
		}
	}

	if c.metrics != nil {
		c.metrics.ConnectionActive(false)
	}
	if c.logger != nil {
		c.logger.Info("client closing")
	}

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// sendRequest serializes one command through cmdMu, so a client-chosen
// invoke id is never reused by a second in-flight command from this Client
// before its response arrives.
func (c *Client) sendRequest(ctx context.Context, commandID ads.CommandID, reqData []byte) (*ams.Packet, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	start := time.Now()
	op := commandID.String()
	c.metrics.OperationStarted(op)

	invokeID := c.conn.NextInvokeID()
	reqPacket := ams.NewRequestPacket(
		c.targetNetID, c.targetPort,
		c.sourceNetID, c.sourcePort,
		uint16(commandID), invokeID, reqData,
	)

	respPacket, err := c.conn.SendRequest(ctx, reqPacket)
	if err == nil && respPacket.Header.ErrorCode != 0 {
		err = ads.Error(respPacket.Header.ErrorCode)
	}

	c.metrics.OperationCompleted(op, time.Since(start), err)
	if err != nil {
		c.metrics.ErrorOccurred(ClassifyError(err, op).Category, op)
		c.logger.Debug("command failed", "command", op, "error", err)
		return nil, err
	}

	return respPacket, nil
}

// GetSymbolHandle retrieves a handle for the given symbol name. The handle
// is registered in the client's owned-handle set so that Close releases it
// even if the caller never does. The handle can be used with Read/Write
// operations using the handle's IndexGroup/IndexOffset; it may also be
// released earlier with ReleaseSymbolHandle.
func (c *Client) GetSymbolHandle(ctx context.Context, symbolName string) (uint32, error) {
	return c.acquireSymbolHandle(ctx, symbolName)
}

// acquireSymbolHandle resolves symbolName to a handle over the wire and
// records it in symbolHandles, the single path by which a handle becomes
// owned and therefore released by Close.
func (c *Client) acquireSymbolHandle(ctx context.Context, symbolName string) (uint32, error) {
	nameBytes := append([]byte(symbolName), 0)

	readData, err := c.ReadWrite(ctx, ads.IndexGroupSymbolHandleByName, 0, 4, nameBytes)
	if err != nil {
		return 0, fmt.Errorf("get symbol handle for %q: %w", symbolName, err)
	}

	var resp ads.GetSymbolHandleByNameResponse
	if err := resp.UnmarshalBinary(readData); err != nil {
		return 0, fmt.Errorf("parse symbol handle response: %w", err)
	}

	c.symbolHandlesMu.Lock()
	c.symbolHandles[symbolName] = resp.Handle
	c.symbolHandlesMu.Unlock()

	return resp.Handle, nil
}

// cachedSymbolHandle returns a handle for symbolName, acquiring one via
// acquireSymbolHandle on first use. Cached handles are released all at once
// by Close.
func (c *Client) cachedSymbolHandle(ctx context.Context, symbolName string) (uint32, error) {
	c.symbolHandlesMu.Lock()
	if h, ok := c.symbolHandles[symbolName]; ok {
		c.symbolHandlesMu.Unlock()
		return h, nil
	}
	c.symbolHandlesMu.Unlock()

	return c.acquireSymbolHandle(ctx, symbolName)
}

// ReadValueByName resolves symbolName to a handle (acquiring and caching one
// on first use) and reads length bytes through IndexGroupSymbolValueByHandle.
func (c *Client) ReadValueByName(ctx context.Context, symbolName string, length uint32) ([]byte, error) {
	handle, err := c.cachedSymbolHandle(ctx, symbolName)
	if err != nil {
		return nil, fmt.Errorf("read value %q: %w", symbolName, err)
	}
	return c.Read(ctx, ads.IndexGroupSymbolValueByHandle, handle, length)
}

// WriteValueByName resolves symbolName to a handle (acquiring and caching
// one on first use) and writes data through IndexGroupSymbolValueByHandle.
func (c *Client) WriteValueByName(ctx context.Context, symbolName string, data []byte) error {
	handle, err := c.cachedSymbolHandle(ctx, symbolName)
	if err != nil {
		return fmt.Errorf("write value %q: %w", symbolName, err)
	}
	return c.Write(ctx, ads.IndexGroupSymbolValueByHandle, handle, data)
}

// ReleaseSymbolHandle releases a previously acquired symbol handle.
func (c *Client) ReleaseSymbolHandle(ctx context.Context, handle uint32) error {
	handleData := make([]byte, 4)
	binary.LittleEndian.PutUint32(handleData, handle)

	if err := c.Write(ctx, ads.IndexGroupReleaseSymbolHandle, 0, handleData); err != nil {
		return fmt.Errorf("release symbol handle %d: %w", handle, err)
	}
	return nil
}

// GetSymbolUploadInfo retrieves the number of symbols and total size of the
// symbol table, as reported by ADSIGRP_SYM_UPLOADINFO.
func (c *Client) GetSymbolUploadInfo(ctx context.Context) (symbolCount, symbolLength uint32, err error) {
	readData, err := c.Read(ctx, ads.IndexGroupSymbolUploadInfo, 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("get symbol upload info: %w", err)
	}

	var resp ads.SymbolUploadInfoResponse
	if err := resp.UnmarshalBinary(readData); err != nil {
		return 0, 0, fmt.Errorf("parse symbol upload info: %w", err)
	}

	return resp.SymbolCount, resp.SymbolLength, nil
}

// UploadSymbolTable downloads the complete symbol table from the PLC in its
// raw TwinCAT wire format; use RefreshSymbols/ListSymbols for parsed access.
func (c *Client) UploadSymbolTable(ctx context.Context) ([]byte, error) {
	_, symbolLength, err := c.GetSymbolUploadInfo(ctx)
	if err != nil {
		return nil, err
	}
	if symbolLength == 0 {
		return nil, fmt.Errorf("symbol table is empty")
	}

	readData, err := c.Read(ctx, ads.IndexGroupSymbolUpload, 0, symbolLength)
	if err != nil {
		return nil, fmt.Errorf("upload symbol table: %w", err)
	}
	return readData, nil
}

// RefreshSymbols downloads and parses the symbol table from the PLC.
// It must be called (directly, or implicitly via the symbol-name-taking
// methods) before any symbol-name based operation, and can be called again
// to pick up a changed PLC program.
func (c *Client) RefreshSymbols(ctx context.Context) error {
	data, err := c.UploadSymbolTable(ctx)
	if err != nil {
		return fmt.Errorf("refresh symbols: %w", err)
	}

	c.symbolTableMu.Lock()
	defer c.symbolTableMu.Unlock()

	if err := c.symbolTable.Load(data); err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}
	return nil
}

func (c *Client) ensureSymbolsLoaded(ctx context.Context) error {
	c.symbolTableMu.RLock()
	loaded := c.symbolTable.IsLoaded()
	c.symbolTableMu.RUnlock()

	if !loaded {
		return c.RefreshSymbols(ctx)
	}
	return nil
}

// GetSymbol retrieves cached symbol information by name.
func (c *Client) GetSymbol(name string) (*symbols.Symbol, error) {
	c.symbolTableMu.RLock()
	defer c.symbolTableMu.RUnlock()
	return c.symbolTable.Get(name)
}

// ListSymbols returns all symbols in the cache, loading it first if needed.
func (c *Client) ListSymbols(ctx context.Context) ([]*symbols.Symbol, error) {
	if err := c.ensureSymbolsLoaded(ctx); err != nil {
		return nil, err
	}
	c.symbolTableMu.RLock()
	defer c.symbolTableMu.RUnlock()
	return c.symbolTable.List()
}

// FindSymbols searches for symbols matching pattern (case-insensitive substring).
func (c *Client) FindSymbols(ctx context.Context, pattern string) ([]*symbols.Symbol, error) {
	if err := c.ensureSymbolsLoaded(ctx); err != nil {
		return nil, err
	}
	c.symbolTableMu.RLock()
	defer c.symbolTableMu.RUnlock()
	return c.symbolTable.Find(pattern)
}

// ReadSymbol reads the raw bytes of a PLC symbol by name.
func (c *Client) ReadSymbol(ctx context.Context, symbolName string) ([]byte, error) {
	if err := c.ensureSymbolsLoaded(ctx); err != nil {
		return nil, err
	}
	symbol, err := c.GetSymbol(symbolName)
	if err != nil {
		return nil, fmt.Errorf("read symbol %q: %w", symbolName, err)
	}
	return c.Read(ctx, symbol.IndexGroup, symbol.IndexOffset, symbol.Size)
}

// WriteSymbol writes raw bytes to a PLC symbol by name; len(data) must equal
// the symbol's declared size.
func (c *Client) WriteSymbol(ctx context.Context, symbolName string, data []byte) error {
	if err := c.ensureSymbolsLoaded(ctx); err != nil {
		return err
	}
	symbol, err := c.GetSymbol(symbolName)
	if err != nil {
		return fmt.Errorf("write symbol %q: %w", symbolName, err)
	}
	if uint32(len(data)) != symbol.Size {
		return fmt.Errorf("write symbol %q: data size mismatch (expected %d bytes, got %d)",
			symbolName, symbol.Size, len(data))
	}
	return c.Write(ctx, symbol.IndexGroup, symbol.IndexOffset, data)
}

// ReadDeviceInfo reads the device name and version.
func (c *Client) ReadDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	req := ads.ReadDeviceInfoRequest{}
	reqData, _ := req.MarshalBinary()

	respPacket, err := c.sendRequest(ctx, ads.CmdReadDeviceInfo, reqData)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadDeviceInfoResponse
	if err := resp.UnmarshalBinary(respPacket.Data); err != nil {
		return nil, err
	}
	if resp.Result != 0 {
		return nil, ads.Error(resp.Result)
	}

	return &DeviceInfo{
		Name:         resp.DeviceName,
		MajorVersion: resp.MajorVersion,
		MinorVersion: resp.MinorVersion,
		VersionBuild: resp.VersionBuild,
	}, nil
}

// Read reads length bytes at indexGroup/indexOffset from the ADS device.
func (c *Client) Read(ctx context.Context, indexGroup, indexOffset, length uint32) ([]byte, error) {
	req := ads.ReadRequest{IndexGroup: indexGroup, IndexOffset: indexOffset, Length: length}
	reqData, _ := req.MarshalBinary()

	respPacket, err := c.sendRequest(ctx, ads.CmdRead, reqData)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadResponse
	if err := resp.UnmarshalBinary(respPacket.Data); err != nil {
		return nil, err
	}
	if resp.Result != 0 {
		return nil, ads.Error(resp.Result)
	}
	c.metrics.BytesReceived(int64(len(resp.Data)))
	return resp.Data, nil
}

// Write writes data at indexGroup/indexOffset on the ADS device.
func (c *Client) Write(ctx context.Context, indexGroup, indexOffset uint32, data []byte) error {
	req := ads.WriteRequest{IndexGroup: indexGroup, IndexOffset: indexOffset, Length: uint32(len(data)), Data: data}
	reqData, _ := req.MarshalBinary()

	respPacket, err := c.sendRequest(ctx, ads.CmdWrite, reqData)
	if err != nil {
		return err
	}

	var resp ads.WriteResponse
	if err := resp.UnmarshalBinary(respPacket.Data); err != nil {
		return err
	}
	if resp.Result != 0 {
		return ads.Error(resp.Result)
	}
	c.metrics.BytesSent(int64(len(data)))
	return nil
}

// ReadState reads the ADS and device state.
func (c *Client) ReadState(ctx context.Context) (*DeviceState, error) {
	req := ads.ReadStateRequest{}
	reqData, _ := req.MarshalBinary()

	respPacket, err := c.sendRequest(ctx, ads.CmdReadState, reqData)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadStateResponse
	if err := resp.UnmarshalBinary(respPacket.Data); err != nil {
		return nil, err
	}
	if resp.Result != 0 {
		return nil, ads.Error(resp.Result)
	}

	return &DeviceState{ADSState: resp.ADSState, DeviceState: resp.DeviceState}, nil
}

// WriteControl changes the ADS state of the device (start/stop/reset/etc).
// data is optional and may be nil for most transitions.
func (c *Client) WriteControl(ctx context.Context, adsState ads.ADSState, deviceState uint16, data []byte) error {
	req := ads.WriteControlRequest{ADSState: adsState, DeviceState: deviceState, Length: uint32(len(data)), Data: data}
	reqData, _ := req.MarshalBinary()

	respPacket, err := c.sendRequest(ctx, ads.CmdWriteControl, reqData)
	if err != nil {
		return err
	}

	var resp ads.WriteControlResponse
	if err := resp.UnmarshalBinary(respPacket.Data); err != nil {
		return err
	}
	if resp.Result != 0 {
		return ads.Error(resp.Result)
	}
	return nil
}

// ReadWrite writes writeData and reads readLength bytes back in one round trip.
func (c *Client) ReadWrite(ctx context.Context, indexGroup, indexOffset, readLength uint32, writeData []byte) ([]byte, error) {
	req := ads.ReadWriteRequest{
		IndexGroup:  indexGroup,
		IndexOffset: indexOffset,
		ReadLength:  readLength,
		WriteLength: uint32(len(writeData)),
		Data:        writeData,
	}
	reqData, _ := req.MarshalBinary()

	respPacket, err := c.sendRequest(ctx, ads.CmdReadWrite, reqData)
	if err != nil {
		return nil, err
	}

	var resp ads.ReadWriteResponse
	if err := resp.UnmarshalBinary(respPacket.Data); err != nil {
		return nil, err
	}
	if resp.Result != 0 {
		return nil, ads.Error(resp.Result)
	}
	return resp.Data, nil
}
