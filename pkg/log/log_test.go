package log_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/nearpair-protocol/nearpair-go/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingLogger records events for assertions.
type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *capturingLogger) Log(event log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturingLogger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testEvent() log.Event {
	return log.Event{
		Timestamp:     time.Now(),
		SessionID:     "11111111-2222-3333-4444-555555555555",
		DeviceAddress: "AA:BB:CC:DD:EE:FF",
		ModelID:       "72CF9C",
		Category:      log.CategoryStateChange,
		StateChange: &log.StateChangeEvent{
			OldState: "HANDSHAKING",
			NewState: "PAIRED",
		},
	}
}

// TestMultiLogger verifies fan-out to all configured loggers.
func TestMultiLogger(t *testing.T) {
	c1 := &capturingLogger{}
	c2 := &capturingLogger{}
	m := log.NewMultiLogger(c1, c2, log.NoopLogger{})

	m.Log(testEvent())
	m.Log(testEvent())

	assert.Equal(t, 2, c1.count())
	assert.Equal(t, 2, c2.count())
}

// TestFileLoggerRoundTrip verifies events written to file decode back.
func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.nplog")

	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)

	want := testEvent()
	fl.Log(want)
	require.NoError(t, fl.Close())

	// Close twice is fine; logging after close is silently ignored.
	require.NoError(t, fl.Close())
	fl.Log(want)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := cbor.NewDecoder(f)
	var got log.Event
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.DeviceAddress, got.DeviceAddress)
	require.NotNil(t, got.StateChange)
	assert.Equal(t, "PAIRED", got.StateChange.NewState)

	// Exactly one event on file.
	assert.ErrorIs(t, dec.Decode(&got), io.EOF)
}

// TestSlogAdapter verifies the adapter does not panic on any event shape.
func TestSlogAdapter(t *testing.T) {
	a := log.NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))

	a.Log(testEvent())
	a.Log(log.Event{Category: log.CategoryBattery, Battery: &log.BatteryEvent{Percentage: 50}})
	a.Log(log.Event{Category: log.CategoryError, Error: &log.ErrorEventData{Message: "x", Step: "handshake"}})
	a.Log(log.Event{Category: log.CategoryAdvertisement, Advertisement: &log.AdvertisementEvent{RSSI: -40, Confidence: "SERVICE_DATA"}})
	a.Log(log.Event{})
}
