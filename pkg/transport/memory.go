package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
)

// Notifier lets a peripheral push notification payloads to its connected
// host. Payloads for a characteristic are delivered in call order.
type Notifier interface {
	Notify(charUUID uint16, payload []byte)
}

// Peripheral is the device side of the in-memory transport.
// Implemented by simulate.Peripheral.
type Peripheral interface {
	// Identity returns the stable device identity (address).
	Identity() string

	// Advertisement returns the record the peripheral currently advertises.
	Advertisement() advert.Record

	// Services returns characteristic UUIDs keyed by service UUID.
	Services() map[uint16][]uint16

	// Attach is called when a host connects; the peripheral keeps the
	// notifier to push notifications until Detach.
	Attach(n Notifier)

	// Detach is called when the connection closes.
	Detach()

	// HandleWrite processes a characteristic write from the host.
	HandleWrite(charUUID uint16, data []byte) error
}

// memoryChar is the in-memory characteristic handle.
type memoryChar struct {
	uuid uint16
}

func (c memoryChar) UUID() uint16 { return c.uuid }

// MemoryTransport is an in-process Transport backed by simulated peripherals.
// It preserves per-characteristic notification delivery order and is safe for
// concurrent use across devices.
type MemoryTransport struct {
	mu          sync.Mutex
	peripherals map[string]Peripheral
	conns       map[string]*memoryConn
	scanners    []chan advert.Record
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		peripherals: make(map[string]Peripheral),
		conns:       make(map[string]*memoryConn),
	}
}

// AddPeripheral registers a peripheral and announces it to active scans.
func (t *MemoryTransport) AddPeripheral(p Peripheral) {
	t.mu.Lock()
	t.peripherals[p.Identity()] = p
	scanners := append([]chan advert.Record(nil), t.scanners...)
	t.mu.Unlock()

	rec := p.Advertisement()
	for _, ch := range scanners {
		select {
		case ch <- rec:
		default:
		}
	}
}

// RemovePeripheral deregisters a peripheral, closing any open connection.
func (t *MemoryTransport) RemovePeripheral(identity string) {
	t.mu.Lock()
	conn := t.conns[identity]
	delete(t.peripherals, identity)
	delete(t.conns, identity)
	t.mu.Unlock()

	if conn != nil {
		conn.close()
	}
}

// Announce re-broadcasts a peripheral's advertisement to active scans.
func (t *MemoryTransport) Announce(identity string) {
	t.mu.Lock()
	p := t.peripherals[identity]
	scanners := append([]chan advert.Record(nil), t.scanners...)
	t.mu.Unlock()

	if p == nil {
		return
	}
	rec := p.Advertisement()
	for _, ch := range scanners {
		select {
		case ch <- rec:
		default:
		}
	}
}

// Scan streams advertisements from registered peripherals.
func (t *MemoryTransport) Scan(ctx context.Context, filter ScanFilter) (<-chan advert.Record, error) {
	ch := make(chan advert.Record, 32)
	out := make(chan advert.Record, 32)

	t.mu.Lock()
	t.scanners = append(t.scanners, ch)
	initial := make([]advert.Record, 0, len(t.peripherals))
	for _, p := range t.peripherals {
		initial = append(initial, p.Advertisement())
	}
	t.mu.Unlock()

	go func() {
		defer close(out)
		defer t.removeScanner(ch)

		for _, rec := range initial {
			if filter.Matches(rec) {
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
		for {
			select {
			case rec := <-ch:
				if filter.Matches(rec) {
					select {
					case out <- rec:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (t *MemoryTransport) removeScanner(ch chan advert.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.scanners {
		if s == ch {
			t.scanners = append(t.scanners[:i], t.scanners[i+1:]...)
			return
		}
	}
}

// Connect opens a connection to a registered peripheral.
func (t *MemoryTransport) Connect(ctx context.Context, identity string) (Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.peripherals[identity]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, identity)
	}
	if existing := t.conns[identity]; existing != nil {
		existing.close()
	}

	conn := &memoryConn{
		transport:  t,
		peripheral: p,
		subs:       make(map[uint16][]chan []byte),
	}
	t.conns[identity] = conn
	p.Attach(conn)
	return conn, nil
}

// Disconnect closes any open connection to the identity.
func (t *MemoryTransport) Disconnect(identity string) error {
	t.mu.Lock()
	conn := t.conns[identity]
	delete(t.conns, identity)
	t.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	return nil
}

// memoryConn is the host side of an in-memory connection.
type memoryConn struct {
	transport  *MemoryTransport
	peripheral Peripheral

	mu     sync.Mutex
	closed bool
	subs   map[uint16][]chan []byte
}

// DiscoverCharacteristics returns the peripheral's characteristics for a service.
func (c *memoryConn) DiscoverCharacteristics(serviceUUID uint16) (map[uint16]Characteristic, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrDisconnected
	}

	uuids, exists := c.peripheral.Services()[serviceUUID]
	if !exists {
		return nil, fmt.Errorf("%w: service %04X", ErrCharacteristicNotFound, serviceUUID)
	}

	chars := make(map[uint16]Characteristic, len(uuids))
	for _, u := range uuids {
		chars[u] = memoryChar{uuid: u}
	}
	return chars, nil
}

// Write forwards a characteristic write to the peripheral.
func (c *memoryConn) Write(ctx context.Context, char Characteristic, data []byte, withResponse bool) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The peripheral processes writes synchronously; without-response
	// writes simply ignore the handler error like a real radio would.
	err := c.peripheral.HandleWrite(char.UUID(), data)
	if withResponse {
		return err
	}
	return nil
}

// Notifications subscribes to a characteristic's notification stream.
func (c *memoryConn) Notifications(char Characteristic) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrDisconnected
	}

	ch := make(chan []byte, 32)
	c.subs[char.UUID()] = append(c.subs[char.UUID()], ch)
	return ch, nil
}

// Notify implements Notifier for the peripheral side.
func (c *memoryConn) Notify(charUUID uint16, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, ch := range c.subs[charUUID] {
		// Buffered per subscriber; a full channel drops the payload the
		// way a slow central misses notifications.
		select {
		case ch <- payload:
		default:
		}
	}
}

// Close tears down the connection and closes all notification streams.
func (c *memoryConn) Close() error {
	c.transport.mu.Lock()
	if c.transport.conns[c.peripheral.Identity()] == c {
		delete(c.transport.conns, c.peripheral.Identity())
	}
	c.transport.mu.Unlock()

	c.close()
	return nil
}

func (c *memoryConn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = make(map[uint16][]chan []byte)
	c.mu.Unlock()

	c.peripheral.Detach()
	for _, chans := range subs {
		for _, ch := range chans {
			close(ch)
		}
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Transport  = (*MemoryTransport)(nil)
	_ Connection = (*memoryConn)(nil)
	_ Notifier   = (*memoryConn)(nil)
)
