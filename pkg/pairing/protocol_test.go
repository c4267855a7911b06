package pairing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearpair-protocol/nearpair-go/pkg/keys"
	"github.com/nearpair-protocol/nearpair-go/pkg/keystore"
	"github.com/nearpair-protocol/nearpair-go/pkg/pairing"
	"github.com/nearpair-protocol/nearpair-go/pkg/simulate"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

const testAddress = "AA:BB:CC:DD:EE:01"

// countingStore wraps a store and counts accesses, so tests can verify when
// the protocol touches persistent state.
type countingStore struct {
	keystore.Store

	mu   sync.Mutex
	gets int
	puts int
}

func (c *countingStore) Get(identity string) ([]byte, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(identity)
}

func (c *countingStore) Put(identity string, key []byte) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.Store.Put(identity, key)
}

func (c *countingStore) counts() (gets, puts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.puts
}

func newTestRig(t *testing.T, faults simulate.Faults) (*pairing.Protocol, *countingStore, *simulate.Peripheral, transport.Connection) {
	t.Helper()

	dev, err := simulate.NewPeripheral(simulate.Config{
		Address: testAddress,
		ModelID: "72CF9C",
		Name:    "NP Buds",
		Faults:  faults,
	})
	require.NoError(t, err)

	tr := transport.NewMemoryTransport()
	tr.AddPeripheral(dev)

	conn, err := tr.Connect(context.Background(), testAddress)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := &countingStore{Store: keystore.NewMemoryStore()}
	proto := pairing.NewProtocol(store, nil)
	proto.SetRoundTripTimeout(200 * time.Millisecond)
	return proto, store, dev, conn
}

func TestHandshake_FirstPairing(t *testing.T) {
	proto, store, dev, conn := newTestRig(t, simulate.Faults{})

	result, err := proto.Handshake(context.Background(), conn, testAddress)
	require.NoError(t, err)

	assert.Len(t, result.SessionKey, keys.SessionKeySize)
	assert.Len(t, result.AccountKey, keys.AccountKeySize)
	assert.True(t, result.NewAccountKey)

	// Exactly one key persisted, and only after the device accepted it.
	_, puts := store.counts()
	assert.Equal(t, 1, puts)
	assert.Equal(t, 1, dev.AccountKeyCount())

	stored, err := store.Get(testAddress)
	require.NoError(t, err)
	assert.Equal(t, result.AccountKey, stored)
}

func TestHandshake_ReauthenticatesWithStoredKey(t *testing.T) {
	proto, store, dev, conn := newTestRig(t, simulate.Faults{})

	first, err := proto.Handshake(context.Background(), conn, testAddress)
	require.NoError(t, err)
	require.True(t, first.NewAccountKey)
	require.NoError(t, conn.Close())

	// Reconnect: the stored key must be reused, never re-written.
	tr := transport.NewMemoryTransport()
	tr.AddPeripheral(dev)
	conn2, err := tr.Connect(context.Background(), testAddress)
	require.NoError(t, err)
	defer conn2.Close()

	second, err := proto.Handshake(context.Background(), conn2, testAddress)
	require.NoError(t, err)

	assert.False(t, second.NewAccountKey)
	assert.Equal(t, first.AccountKey, second.AccountKey)
	// Session keys are per-connection and must differ.
	assert.NotEqual(t, first.SessionKey, second.SessionKey)

	gets, puts := store.counts()
	assert.Equal(t, 1, puts, "re-authentication must not persist a second key")
	assert.Equal(t, 2, gets, "one lookup per handshake")
	assert.Equal(t, 1, dev.AccountKeyCount())
}

func TestHandshake_InvalidDeviceKey(t *testing.T) {
	proto, store, _, conn := newTestRig(t, simulate.Faults{InvalidPublicKey: true})

	_, err := proto.Handshake(context.Background(), conn, testAddress)
	assert.ErrorIs(t, err, keys.ErrInvalidPeerKey)

	// A handshake that dies at key validation must never touch the store.
	gets, puts := store.counts()
	assert.Zero(t, gets)
	assert.Zero(t, puts)
}

func TestHandshake_MalformedResponse(t *testing.T) {
	proto, store, _, conn := newTestRig(t, simulate.Faults{MalformedPairingResponse: true})

	_, err := proto.Handshake(context.Background(), conn, testAddress)
	assert.ErrorIs(t, err, pairing.ErrShortMessage)

	gets, puts := store.counts()
	assert.Zero(t, gets)
	assert.Zero(t, puts)
}

func TestHandshake_SilentDeviceTimesOut(t *testing.T) {
	proto, _, _, conn := newTestRig(t, simulate.Faults{SilentPairing: true})

	start := time.Now()
	_, err := proto.Handshake(context.Background(), conn, testAddress)
	assert.ErrorIs(t, err, pairing.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHandshake_AccountKeyRejected(t *testing.T) {
	proto, store, dev, conn := newTestRig(t, simulate.Faults{RejectAccountKey: true})

	_, err := proto.Handshake(context.Background(), conn, testAddress)
	assert.ErrorIs(t, err, pairing.ErrRejected)

	// The rejected key must not be persisted on either side.
	_, puts := store.counts()
	assert.Zero(t, puts)
	assert.Zero(t, dev.AccountKeyCount())
}

func TestHandshake_ContextCancelled(t *testing.T) {
	proto, _, _, conn := newTestRig(t, simulate.Faults{SilentPairing: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := proto.Handshake(ctx, conn, testAddress)
	assert.Error(t, err)
}

func TestHandshake_DisconnectedTransport(t *testing.T) {
	proto, _, _, conn := newTestRig(t, simulate.Faults{})
	require.NoError(t, conn.Close())

	_, err := proto.Handshake(context.Background(), conn, testAddress)
	assert.ErrorIs(t, err, transport.ErrDisconnected)
}
