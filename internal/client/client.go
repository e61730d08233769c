// Package client implements the avatar parameter OSC client: typed
// parameter set/get operations over a UDP send socket, a background
// receive loop feeding the parameter cache, and change notifications
// published through the event bus.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oscbridge-project/oscbridge/internal/config"
	"github.com/oscbridge-project/oscbridge/internal/events"
	"github.com/oscbridge-project/oscbridge/internal/metrics"
	"github.com/oscbridge-project/oscbridge/internal/osc"
	"github.com/oscbridge-project/oscbridge/internal/params"
)

var (
	// ErrClosed is returned by any operation on a closed client.
	ErrClosed = errors.New("client is closed")

	// ErrValueOutOfRange is returned when a float parameter is outside
	// [-1, 1] or an int parameter is outside [0, 255].
	ErrValueOutOfRange = errors.New("parameter value out of range")

	// ErrTooManyParameters is returned when a batched send exceeds the
	// per-call limit.
	ErrTooManyParameters = errors.New("too many parameters in batch")
)

// Parameter is one (name, value) pair in a batched send.
type Parameter struct {
	Name  string
	Value osc.Value
}

// Client owns the send and receive sockets of the parameter exchange.
// Set and Get calls run on the caller's goroutine; the receive loop runs
// in the background for the lifetime of the client.
type Client struct {
	logger zerolog.Logger
	bus    *events.EventBus
	store  *params.Store

	sendConn *net.UDPConn
	recvConn *net.UDPConn

	cancel context.CancelFunc
	done   chan struct{}

	// The batch buffer and offset table are reused verbatim across
	// calls and never cleared; sendMu makes each batched send exclusive
	// and every slice taken below is bounded by a computed length,
	// never by buffer content.
	sendMu   sync.Mutex
	batchBuf []byte
	offsets  [osc.MaxBatchSize]int

	mu        sync.Mutex
	closed    bool
	avatar    uuid.UUID
	hasAvatar bool
}

// New opens a UDP socket connected to the peer's send endpoint, binds
// the receive endpoint, and starts the receive loop. Empty or zero
// fields in cfg fall back to the loopback defaults (send 9000,
// receive 9001); a negative receive port binds an ephemeral one.
func New(cfg config.OSCConfig, bus *events.EventBus) (*Client, error) {
	if cfg.SendHost == "" {
		cfg.SendHost = config.DefaultSendHost
	}
	if cfg.SendPort == 0 {
		cfg.SendPort = config.DefaultSendPort
	}
	if cfg.ReceiveHost == "" {
		cfg.ReceiveHost = config.DefaultReceiveHost
	}
	if cfg.ReceivePort == 0 {
		cfg.ReceivePort = config.DefaultReceivePort
	} else if cfg.ReceivePort < 0 {
		// Negative means let the kernel pick a free port; the bound
		// address is available through ReceiveAddr.
		cfg.ReceivePort = 0
	}

	sendAddr, err := net.ResolveUDPAddr("udp", cfg.SendAddr())
	if err != nil {
		return nil, fmt.Errorf("resolve send endpoint %s: %w", cfg.SendAddr(), err)
	}
	sendConn, err := net.DialUDP("udp", nil, sendAddr)
	if err != nil {
		return nil, fmt.Errorf("dial send endpoint %s: %w", cfg.SendAddr(), err)
	}

	recvAddr, err := net.ResolveUDPAddr("udp", cfg.ReceiveAddr())
	if err != nil {
		sendConn.Close()
		return nil, fmt.Errorf("resolve receive endpoint %s: %w", cfg.ReceiveAddr(), err)
	}
	recvConn, err := net.ListenUDP("udp", recvAddr)
	if err != nil {
		sendConn.Close()
		return nil, fmt.Errorf("bind receive endpoint %s: %w", cfg.ReceiveAddr(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		logger:   log.With().Str("component", "client").Str("peer", sendAddr.String()).Logger(),
		bus:      bus,
		store:    params.NewStore(),
		sendConn: sendConn,
		recvConn: recvConn,
		cancel:   cancel,
		done:     make(chan struct{}),
		batchBuf: make([]byte, osc.MaxPacketSize),
	}

	r := newReceiver(recvConn, c)
	go func() {
		defer close(c.done)
		r.run(ctx)
	}()

	c.logger.Info().
		Str("send", sendAddr.String()).
		Str("receive", recvConn.LocalAddr().String()).
		Msg("OSC client started")

	return c, nil
}

// ReceiveAddr returns the bound receive endpoint. Useful when the
// configured port was negative and the kernel picked one.
func (c *Client) ReceiveAddr() net.Addr {
	return c.recvConn.LocalAddr()
}

// SetFloat caches and sends a float parameter. The value must lie
// within [-1, 1].
func (c *Client) SetFloat(name string, value float32) error {
	return c.setFloat(name, value, true)
}

// SendFloat sends a float parameter without touching the cache.
func (c *Client) SendFloat(name string, value float32) error {
	return c.setFloat(name, value, false)
}

func (c *Client) setFloat(name string, value float32, cache bool) error {
	if value < -1.0 || value > 1.0 {
		return fmt.Errorf("float parameter %q = %g: %w", name, value, ErrValueOutOfRange)
	}
	return c.set(name, osc.Float32Value(value), cache)
}

// SetInt caches and sends an int parameter. The value must lie within
// [0, 255]; it travels as a single-byte quantity widened to int32.
func (c *Client) SetInt(name string, value int) error {
	return c.setInt(name, value, true)
}

// SendInt sends an int parameter without touching the cache.
func (c *Client) SendInt(name string, value int) error {
	return c.setInt(name, value, false)
}

func (c *Client) setInt(name string, value int, cache bool) error {
	if value < 0 || value > 255 {
		return fmt.Errorf("int parameter %q = %d: %w", name, value, ErrValueOutOfRange)
	}
	return c.set(name, osc.Int32Value(int32(uint8(value))), cache)
}

// SetBool caches and sends a bool parameter.
func (c *Client) SetBool(name string, value bool) error {
	return c.set(name, osc.BoolValue(value), true)
}

// SendBool sends a bool parameter without touching the cache.
func (c *Client) SendBool(name string, value bool) error {
	return c.set(name, osc.BoolValue(value), false)
}

// set encodes one parameter message and dispatches it.
func (c *Client) set(name string, v osc.Value, cache bool) error {
	if c.isClosed() {
		return ErrClosed
	}

	data, err := osc.BuildParameterMessage(name, v)
	if err != nil {
		return err
	}

	if cache {
		c.store.Set(name, v)
	}

	if _, err := c.sendConn.Write(data); err != nil {
		metrics.SendErrors.Inc()
		return fmt.Errorf("send parameter %q: %w", name, err)
	}
	metrics.MessagesSent.Inc()

	c.logger.Debug().
		Str("parameter", name).
		Str("type", v.Kind().String()).
		Str("value", v.String()).
		Msg("parameter sent")

	return nil
}

// SetMany sends up to MaxBatchSize parameters in one call. All messages
// are written back-to-back into the shared send buffer, then dispatched
// in order as per-item slices whose lengths are the differences between
// consecutive offsets. The returned slice holds one send result per
// item; a failed item does not roll back the others.
func (c *Client) SetMany(items []Parameter, skipCache bool) ([]error, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if len(items) > osc.MaxBatchSize {
		return nil, fmt.Errorf("batch of %d items: %w", len(items), ErrTooManyParameters)
	}
	if len(items) == 0 {
		return nil, nil
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	cursor := 0
	for i, item := range items {
		c.offsets[i] = cursor
		n, err := osc.WriteMessageAt(c.batchBuf, cursor, osc.ParameterAddress(item.Name), item.Value)
		if err != nil {
			return nil, fmt.Errorf("batch item %d (%q): %w", i, item.Name, err)
		}
		cursor += n
	}

	results := make([]error, len(items))
	for i, item := range items {
		end := cursor
		if i+1 < len(items) {
			end = c.offsets[i+1]
		}

		if !skipCache {
			c.store.Set(item.Name, item.Value)
		}

		if _, err := c.sendConn.Write(c.batchBuf[c.offsets[i]:end]); err != nil {
			metrics.SendErrors.Inc()
			results[i] = fmt.Errorf("send parameter %q: %w", item.Name, err)
			continue
		}
		metrics.MessagesSent.Inc()
	}
	metrics.BatchSends.Inc()

	c.logger.Debug().Int("count", len(items)).Int("bytes", cursor).Msg("batch sent")
	return results, nil
}

// TryGetFloat returns the cached float value for name. A cached value
// of a different type yields false.
func (c *Client) TryGetFloat(name string) (float32, bool) {
	if c.isClosed() {
		return 0, false
	}
	return c.store.Float32(name)
}

// TryGetInt returns the cached int value for name.
func (c *Client) TryGetInt(name string) (int, bool) {
	if c.isClosed() {
		return 0, false
	}
	v, ok := c.store.Int32(name)
	return int(v), ok
}

// TryGetBool returns the cached bool value for name.
func (c *Client) TryGetBool(name string) (bool, bool) {
	if c.isClosed() {
		return false, false
	}
	return c.store.Bool(name)
}

// GetAll returns a snapshot of the whole parameter cache.
func (c *Client) GetAll() map[string]osc.Value {
	return c.store.Snapshot()
}

// Avatar returns the identity parsed from the most recent avatar change
// message, if one was received.
func (c *Client) Avatar() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avatar, c.hasAvatar
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops the receive loop, releases both sockets and clears the
// cache. It is idempotent; any later Set call returns ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	// Closing the socket unblocks the receive loop's pending read.
	c.recvConn.Close()
	<-c.done

	err := c.sendConn.Close()
	c.store.Clear()
	c.logger.Info().Msg("OSC client closed")
	return err
}

// handleMessage dispatches one parsed inbound message. Parameter
// updates go through the change gate in the store; avatar changes are
// parsed into a GUID; everything else is consumed and ignored.
func (c *Client) handleMessage(ctx context.Context, m osc.Message) {
	if name, ok := osc.ParameterName(m.Address); ok {
		switch m.Tag {
		case osc.TagInt32, osc.TagFloat32, osc.TagTrue, osc.TagFalse:
			c.applyUpdate(ctx, name, m.Value)
		default:
			c.logger.Debug().Str("parameter", name).Str("tag", string(m.Tag)).Msg("ignoring parameter update with unsupported tag")
		}
		return
	}

	if osc.IsAvatarChange(m.Address) && m.Tag == osc.TagString {
		id, err := osc.ParseAvatarID(m.Str)
		if err != nil {
			// Consumed regardless: leaving it in the stream would
			// poison the overflow buffer.
			c.logger.Debug().Err(err).Msg("avatar change with unparseable id")
			return
		}

		c.mu.Lock()
		c.avatar = id
		c.hasAvatar = true
		c.mu.Unlock()

		metrics.AvatarChanges.Inc()
		c.logger.Info().Str("avatar", id.String()).Msg("avatar changed")
		c.bus.EmitSync(ctx, events.Event{
			Type:    events.EventAvatarChanged,
			Source:  m.Address,
			Payload: events.AvatarChangedPayload{ID: id, Raw: m.Str},
		})
		return
	}

	c.logger.Trace().Str("address", m.Address).Msg("ignoring message")
}

// applyUpdate writes a network update through the change gate and fires
// the typed and generic change events when the value actually changed.
func (c *Client) applyUpdate(ctx context.Context, name string, v osc.Value) {
	if !c.store.PutIfChanged(name, v) {
		return
	}
	metrics.ParameterChanges.Inc()

	typed := events.Event{Source: osc.ParameterAddress(name)}
	switch v.Kind() {
	case osc.KindInt32:
		typed.Type = events.EventIntParameterChanged
		typed.Payload = events.IntParameterPayload{Name: name, Value: v.Int32()}
	case osc.KindFloat32:
		typed.Type = events.EventFloatParameterChanged
		typed.Payload = events.FloatParameterPayload{Name: name, Value: v.Float32()}
	case osc.KindBool:
		typed.Type = events.EventBoolParameterChanged
		typed.Payload = events.BoolParameterPayload{Name: name, Value: v.Bool()}
	}

	c.logger.Debug().
		Str("parameter", name).
		Str("type", v.Kind().String()).
		Str("value", v.String()).
		Msg("parameter received")

	c.bus.EmitSync(ctx, typed)
	c.bus.EmitSync(ctx, events.Event{
		Type:    events.EventParameterChanged,
		Source:  osc.ParameterAddress(name),
		Payload: events.ParameterChangedPayload{Name: name, Value: v},
	})
}
