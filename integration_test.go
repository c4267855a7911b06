package nearpair_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearpair-protocol/nearpair-go/pkg/command"
	"github.com/nearpair-protocol/nearpair-go/pkg/keystore"
	"github.com/nearpair-protocol/nearpair-go/pkg/log"
	"github.com/nearpair-protocol/nearpair-go/pkg/session"
	"github.com/nearpair-protocol/nearpair-go/pkg/simulate"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

const (
	e2eAddress = "AA:BB:CC:DD:EE:77"
	e2eWait    = 3 * time.Second
	e2eTick    = 5 * time.Millisecond
)

// eventLog collects engine events for end-to-end assertions.
type eventLog struct {
	mu     sync.Mutex
	events []session.Event
}

func (l *eventLog) OnEvent(e session.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) has(kind session.EventKind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// TestE2E_PairAndControl walks the complete lifecycle through the public
// surface only: scan, discover, pair, command, battery, disconnect.
func TestE2E_PairAndControl(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dev, err := simulate.NewPeripheral(simulate.Config{
		Address: e2eAddress,
		ModelID: "72CF9C",
		Name:    "NP Buds Pro",
		RSSI:    -44,
		Battery: 85,
	})
	require.NoError(t, err)

	tr := transport.NewMemoryTransport()
	tr.AddPeripheral(dev)

	events := &eventLog{}
	reg := session.NewDeviceRegistry(tr, keystore.NewMemoryStore(), session.Options{
		Sink:             events,
		RoundTripTimeout: 500 * time.Millisecond,
	})
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = reg.Run(ctx) }()

	// Discovery through the scan loop.
	require.Eventually(t, func() bool {
		return reg.Session(e2eAddress) != nil
	}, e2eWait, e2eTick)
	require.True(t, events.has(session.EventDeviceDiscovered))

	// Pair.
	require.NoError(t, reg.Connect(ctx, e2eAddress))
	s := reg.Session(e2eAddress)
	require.Equal(t, session.StatePaired, s.State())
	require.Equal(t, 1, dev.AccountKeyCount())

	// Control: the first accepted command activates the session and the
	// device state reflects every accepted command.
	require.NoError(t, s.SetANC(ctx, command.ANCTransparency))
	require.NoError(t, s.SetEQ(ctx, command.EQJazz))
	require.NoError(t, s.SetVolume(ctx, 0.30))

	assert.Eventually(t, func() bool {
		return s.State() == session.StateActive
	}, e2eWait, e2eTick)
	assert.Eventually(t, func() bool {
		anc, eq, vol := s.Settings()
		return anc == command.ANCTransparency && eq == command.EQJazz && vol == 0.30
	}, e2eWait, e2eTick)
	assert.Equal(t, command.ANCTransparency, dev.ANC())
	assert.Equal(t, command.EQJazz, dev.EQ())
	assert.Equal(t, uint8(30), dev.Volume())

	// Battery reporting.
	dev.SetBattery(41)
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Battery != nil && *snap.Battery == 41
	}, e2eWait, e2eTick)

	// Teardown.
	s.Disconnect()
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.True(t, events.has(session.EventDisconnected))
}

// TestE2E_AccountKeyPersistence pairs, restarts the host side with the same
// state directory, and verifies the second pairing re-authenticates instead
// of minting a new account key.
func TestE2E_AccountKeyPersistence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	storePath := filepath.Join(t.TempDir(), "account_keys.npks")

	dev, err := simulate.NewPeripheral(simulate.Config{
		Address: e2eAddress,
		ModelID: "0A1B2C",
		Name:    "NP Cans",
	})
	require.NoError(t, err)

	pair := func() {
		tr := transport.NewMemoryTransport()
		tr.AddPeripheral(dev)

		store := keystore.NewFileStore(storePath)
		require.NoError(t, store.Load())

		reg := session.NewDeviceRegistry(tr, store, session.Options{
			ProtocolLog: log.NoopLogger{},
		})
		defer reg.Close()

		reg.HandleAdvertisement(dev.Advertisement())
		require.NoError(t, reg.Connect(context.Background(), e2eAddress))
	}

	pair()
	require.Equal(t, 1, dev.AccountKeyCount())

	// "Restart": fresh transport, registry, and store, same state file and
	// same device. No second key may appear on the device.
	pair()
	assert.Equal(t, 1, dev.AccountKeyCount(),
		"re-pairing after restart must reuse the persisted account key")
}
