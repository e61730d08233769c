package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/oscbridge-project/oscbridge/internal/config"
	"github.com/oscbridge-project/oscbridge/internal/events"
	"github.com/oscbridge-project/oscbridge/internal/osc"
)

// testPeer stands in for the remote side of the exchange: it collects
// every datagram the client sends.
type testPeer struct {
	conn      *net.UDPConn
	datagrams chan []byte
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind peer: %v", err)
	}

	p := &testPeer{conn: conn, datagrams: make(chan []byte, 512)}
	go func() {
		buf := make([]byte, osc.MaxPacketSize)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			d := make([]byte, n)
			copy(d, buf[:n])
			p.datagrams <- d
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return p
}

func (p *testPeer) port() int {
	return p.conn.LocalAddr().(*net.UDPAddr).Port
}

// next waits for one datagram from the client.
func (p *testPeer) next(t *testing.T) []byte {
	t.Helper()
	select {
	case d := <-p.datagrams:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a datagram")
		return nil
	}
}

// expectNone asserts that no datagram arrives within the window.
func (p *testPeer) expectNone(t *testing.T) {
	t.Helper()
	select {
	case d := <-p.datagrams:
		t.Fatalf("unexpected datagram of %d bytes", len(d))
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestClient(t *testing.T, peer *testPeer, bus *events.EventBus) *Client {
	t.Helper()

	c, err := New(config.OSCConfig{
		SendHost:    "127.0.0.1",
		SendPort:    peer.port(),
		ReceiveHost: "127.0.0.1",
		ReceivePort: -1,
	}, bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// inject delivers a raw inbound datagram to the client's receive socket.
func inject(t *testing.T, c *Client, data []byte) {
	t.Helper()
	conn, err := net.Dial("udp", c.ReceiveAddr().String())
	if err != nil {
		t.Fatalf("dial receive endpoint: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("inject datagram: %v", err)
	}
}

func TestSetFloatCachesAndSends(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	if err := c.SetFloat("Speed", 0.5); err != nil {
		t.Fatalf("SetFloat: %v", err)
	}

	if got, ok := c.TryGetFloat("Speed"); !ok || got != 0.5 {
		t.Errorf("TryGetFloat = %g, %v", got, ok)
	}

	want, err := osc.BuildParameterMessage("Speed", osc.Float32Value(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if got := peer.next(t); !bytes.Equal(got, want) {
		t.Errorf("wire bytes = % x, want % x", got, want)
	}
}

func TestSendFloatSkipsCache(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	if err := c.SendFloat("Speed", -1); err != nil {
		t.Fatalf("SendFloat: %v", err)
	}
	peer.next(t)

	if _, ok := c.TryGetFloat("Speed"); ok {
		t.Error("SendFloat populated the cache")
	}
}

func TestSetFloatOutOfRange(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	for _, v := range []float32{1.01, -1.01, 100} {
		if err := c.SetFloat("Speed", v); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("SetFloat(%g) = %v, want ErrValueOutOfRange", v, err)
		}
	}

	// Nothing may be cached or sent for a rejected value.
	if _, ok := c.TryGetFloat("Speed"); ok {
		t.Error("rejected value was cached")
	}
	peer.expectNone(t)
}

func TestSetIntRange(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	for _, v := range []int{0, 255} {
		if err := c.SetInt("Level", v); err != nil {
			t.Errorf("SetInt(%d) = %v", v, err)
		}
		peer.next(t)
	}
	if got, ok := c.TryGetInt("Level"); !ok || got != 255 {
		t.Errorf("TryGetInt = %d, %v", got, ok)
	}

	for _, v := range []int{-1, 256, 1000} {
		if err := c.SetInt("Level", v); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("SetInt(%d) = %v, want ErrValueOutOfRange", v, err)
		}
	}
	peer.expectNone(t)
}

func TestSetBool(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	if err := c.SetBool("Grounded", true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	want, _ := osc.BuildParameterMessage("Grounded", osc.BoolValue(true))
	if got := peer.next(t); !bytes.Equal(got, want) {
		t.Errorf("wire bytes = % x, want % x", got, want)
	}
	if got, ok := c.TryGetBool("Grounded"); !ok || !got {
		t.Errorf("TryGetBool = %v, %v", got, ok)
	}
}

func TestTypedGetFiltersVariant(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	if err := c.SetInt("Level", 7); err != nil {
		t.Fatal(err)
	}
	peer.next(t)

	if _, ok := c.TryGetFloat("Level"); ok {
		t.Error("TryGetFloat returned an int parameter")
	}
	if _, ok := c.TryGetBool("Level"); ok {
		t.Error("TryGetBool returned an int parameter")
	}
}

func TestReceiveUpdatesCacheAndNotifies(t *testing.T) {
	peer := newTestPeer(t)
	bus := events.NewEventBus()

	got := make(chan events.IntParameterPayload, 8)
	bus.Subscribe(events.EventIntParameterChanged, "test", func(ctx context.Context, e events.Event) error {
		got <- e.Payload.(events.IntParameterPayload)
		return nil
	})

	c := newTestClient(t, peer, bus)

	msg, err := osc.BuildParameterMessage("Level", osc.Int32Value(42))
	if err != nil {
		t.Fatal(err)
	}
	inject(t, c, msg)

	select {
	case p := <-got:
		if p.Name != "Level" || p.Value != 42 {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification received")
	}

	if v, ok := c.TryGetInt("Level"); !ok || v != 42 {
		t.Errorf("TryGetInt = %d, %v", v, ok)
	}

	// An identical retransmission must not notify again.
	inject(t, c, msg)
	select {
	case p := <-got:
		t.Errorf("duplicate update fired a notification: %+v", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReceiveSplitDatagram(t *testing.T) {
	peer := newTestPeer(t)
	bus := events.NewEventBus()

	got := make(chan events.FloatParameterPayload, 8)
	bus.Subscribe(events.EventFloatParameterChanged, "test", func(ctx context.Context, e events.Event) error {
		got <- e.Payload.(events.FloatParameterPayload)
		return nil
	})

	c := newTestClient(t, peer, bus)

	msg, err := osc.BuildParameterMessage("Blend", osc.Float32Value(0.75))
	if err != nil {
		t.Fatal(err)
	}

	// The 4-byte float payload arrives split across two datagrams.
	cut := len(msg) - 2
	inject(t, c, msg[:cut])

	select {
	case p := <-got:
		t.Fatalf("notification from an incomplete message: %+v", p)
	case <-time.After(200 * time.Millisecond):
	}
	if _, ok := c.TryGetFloat("Blend"); ok {
		t.Fatal("incomplete payload reached the cache")
	}

	inject(t, c, msg[cut:])
	select {
	case p := <-got:
		if p.Value != 0.75 {
			t.Errorf("reassembled value = %g, want 0.75", p.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after reassembly")
	}
}

func TestReceiveAvatarChange(t *testing.T) {
	peer := newTestPeer(t)
	bus := events.NewEventBus()

	got := make(chan events.AvatarChangedPayload, 1)
	bus.Subscribe(events.EventAvatarChanged, "test", func(ctx context.Context, e events.Event) error {
		got <- e.Payload.(events.AvatarChangedPayload)
		return nil
	})

	c := newTestClient(t, peer, bus)
	if _, ok := c.Avatar(); ok {
		t.Fatal("avatar known before any change message")
	}

	raw := "avtr_0f722e5c-2171-4fa5-a642-0be661b7d2a3"
	addr, err := osc.EncodeString(osc.AvatarChangeAddress)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := osc.EncodeString(raw)
	if err != nil {
		t.Fatal(err)
	}
	msg := append(addr, ',', 's', 0, 0)
	msg = append(msg, payload...)
	inject(t, c, msg)

	select {
	case p := <-got:
		if p.Raw != raw {
			t.Errorf("raw = %q, want %q", p.Raw, raw)
		}
		id, ok := c.Avatar()
		if !ok || id.String() != "0f722e5c-2171-4fa5-a642-0be661b7d2a3" {
			t.Errorf("Avatar = %v, %v", id, ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no avatar change notification")
	}
}

func TestSetMany(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	items := []Parameter{
		{Name: "Speed", Value: osc.Float32Value(0.25)},
		{Name: "Level", Value: osc.Int32Value(7)},
		{Name: "Grounded", Value: osc.BoolValue(false)},
	}
	results, err := c.SetMany(items, false)
	if err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r != nil {
			t.Errorf("item %d failed: %v", i, r)
		}
	}

	// Each item must arrive as its own well-formed message.
	for _, item := range items {
		want, err := osc.BuildParameterMessage(item.Name, item.Value)
		if err != nil {
			t.Fatal(err)
		}
		if got := peer.next(t); !bytes.Equal(got, want) {
			t.Errorf("item %q wire bytes = % x, want % x", item.Name, got, want)
		}
	}

	// The batch also populated the cache.
	if v, ok := c.TryGetFloat("Speed"); !ok || v != 0.25 {
		t.Errorf("TryGetFloat(Speed) = %g, %v", v, ok)
	}
}

func TestSetManySkipCache(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	if _, err := c.SetMany([]Parameter{{Name: "X", Value: osc.Int32Value(1)}}, true); err != nil {
		t.Fatal(err)
	}
	peer.next(t)

	if _, ok := c.TryGetInt("X"); ok {
		t.Error("skipCache batch populated the cache")
	}
}

func TestSetManyTooMany(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	items := make([]Parameter, osc.MaxBatchSize+1)
	for i := range items {
		items[i] = Parameter{Name: "P", Value: osc.BoolValue(true)}
	}

	if _, err := c.SetMany(items, false); !errors.Is(err, ErrTooManyParameters) {
		t.Fatalf("SetMany = %v, want ErrTooManyParameters", err)
	}
	// The oversized batch must be rejected before any write.
	peer.expectNone(t)
}

func TestSetManyEmpty(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	results, err := c.SetMany(nil, false)
	if err != nil || results != nil {
		t.Errorf("SetMany(nil) = %v, %v", results, err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	peer := newTestPeer(t)
	c := newTestClient(t, peer, events.NewEventBus())

	if err := c.SetInt("Level", 3); err != nil {
		t.Fatal(err)
	}
	peer.next(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := c.SetFloat("Speed", 0); !errors.Is(err, ErrClosed) {
		t.Errorf("SetFloat after Close = %v, want ErrClosed", err)
	}
	if _, err := c.SetMany([]Parameter{{Name: "X", Value: osc.BoolValue(true)}}, false); !errors.Is(err, ErrClosed) {
		t.Errorf("SetMany after Close = %v, want ErrClosed", err)
	}
	if _, ok := c.TryGetInt("Level"); ok {
		t.Error("cache still readable after Close")
	}
}
