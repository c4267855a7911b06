package simulate_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearpair-protocol/nearpair-go/pkg/command"
	"github.com/nearpair-protocol/nearpair-go/pkg/pairing"
	"github.com/nearpair-protocol/nearpair-go/pkg/simulate"
)

// captureNotifier records pushed notifications per characteristic.
type captureNotifier struct {
	mu       sync.Mutex
	payloads map[uint16][][]byte
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{payloads: make(map[uint16][][]byte)}
}

func (c *captureNotifier) Notify(charUUID uint16, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[charUUID] = append(c.payloads[charUUID], append([]byte(nil), payload...))
}

func (c *captureNotifier) last(charUUID uint16) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps := c.payloads[charUUID]
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1]
}

func newTestPeripheral(t *testing.T) *simulate.Peripheral {
	t.Helper()
	p, err := simulate.NewPeripheral(simulate.Config{
		Address: "AA:BB:CC:DD:EE:02",
		ModelID: "0A1B2C",
		Name:    "NP Cans",
		RSSI:    -60,
		Battery: 50,
	})
	require.NoError(t, err)
	return p
}

func TestPeripheral_Advertisement(t *testing.T) {
	p := newTestPeripheral(t)

	rec := p.Advertisement()
	assert.Equal(t, "AA:BB:CC:DD:EE:02", rec.Address)
	assert.True(t, rec.HasServiceUUID(pairing.ServiceUUID))
	assert.Equal(t, []byte{0x0A, 0x1B, 0x2C}, rec.ServiceData[pairing.ServiceUUID])
	assert.Equal(t, "NP Cans", rec.LocalName)
}

func TestNewPeripheral_BadModelID(t *testing.T) {
	_, err := simulate.NewPeripheral(simulate.Config{Address: "x", ModelID: "nope"})
	assert.Error(t, err)
}

func TestPeripheral_CommandValidation(t *testing.T) {
	p := newTestPeripheral(t)
	n := newCaptureNotifier()
	p.Attach(n)
	defer p.Detach()

	// In-range command applies and acks accepted.
	require.NoError(t, p.HandleWrite(pairing.CharPassthrough, []byte{command.OpcodeVolume, 70}))
	assert.Equal(t, uint8(70), p.Volume())
	assert.Equal(t, command.EncodeAck(command.OpcodeVolume, true), n.last(pairing.CharPassthrough))

	// Out-of-range volume is refused and leaves state alone.
	require.NoError(t, p.HandleWrite(pairing.CharPassthrough, []byte{command.OpcodeVolume, 130}))
	assert.Equal(t, uint8(70), p.Volume())
	assert.Equal(t, command.EncodeAck(command.OpcodeVolume, false), n.last(pairing.CharPassthrough))

	// Undefined noise-control mode is refused.
	require.NoError(t, p.HandleWrite(pairing.CharPassthrough, []byte{command.OpcodeANC, 0x09}))
	assert.Equal(t, command.ANCOff, p.ANC())
	assert.Equal(t, command.EncodeAck(command.OpcodeANC, false), n.last(pairing.CharPassthrough))
}

func TestPeripheral_AccountKeyNeedsSession(t *testing.T) {
	p := newTestPeripheral(t)
	n := newCaptureNotifier()
	p.Attach(n)
	defer p.Detach()

	// An account-key write before any handshake cannot be opened.
	require.NoError(t, p.HandleWrite(pairing.CharAccountKey, make([]byte, 60)))
	assert.Equal(t, pairing.EncodeAck(pairing.AckRejected), n.last(pairing.CharAccountKey))
	assert.Zero(t, p.AccountKeyCount())
}

func TestPeripheral_BatteryNotification(t *testing.T) {
	p := newTestPeripheral(t)
	n := newCaptureNotifier()
	p.Attach(n)

	p.SetBattery(33)
	payload := n.last(pairing.CharPassthrough)
	require.NotNil(t, payload)

	note, err := command.DecodeNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, command.NotificationBattery, note.Kind)
	assert.Equal(t, uint8(33), note.Battery)

	// Disconnected devices stay silent.
	p.Detach()
	p.SetBattery(20)
	assert.Equal(t, payload, n.last(pairing.CharPassthrough))
}
