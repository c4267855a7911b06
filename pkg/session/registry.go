package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nearpair-protocol/nearpair-go/pkg/advert"
	"github.com/nearpair-protocol/nearpair-go/pkg/keystore"
	"github.com/nearpair-protocol/nearpair-go/pkg/log"
	"github.com/nearpair-protocol/nearpair-go/pkg/pairing"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

// Options configures a DeviceRegistry. The zero value is usable.
type Options struct {
	// Classifier decides which advertisements qualify. Nil uses the
	// default classifier with the name fallback enabled.
	Classifier *advert.Classifier

	// Sink receives lifecycle events. Nil discards them.
	Sink EventSink

	// ProtocolLog receives structured protocol events. Nil discards them.
	ProtocolLog log.Logger

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// RoundTripTimeout overrides the handshake per-round-trip timeout.
	// Zero keeps the protocol default.
	RoundTripTimeout time.Duration
}

// DeviceRegistry maps device identities to their sessions: at most one
// session per identity. It owns the scan loop and advertisement routing;
// everything per-device lives in the session itself.
type DeviceRegistry struct {
	transport  transport.Transport
	classifier *advert.Classifier
	protocol   *pairing.Protocol
	sink       EventSink
	plog       log.Logger
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*PairingSession
}

// NewDeviceRegistry builds a registry on the given transport and account
// key store.
func NewDeviceRegistry(tr transport.Transport, store keystore.Store, opts Options) *DeviceRegistry {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = advert.NewClassifier(advert.Options{Logger: opts.Logger})
	}
	sink := opts.Sink
	if sink == nil {
		sink = noopSink{}
	}
	plog := opts.ProtocolLog
	if plog == nil {
		plog = log.NoopLogger{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	protocol := pairing.NewProtocol(store, logger)
	if opts.RoundTripTimeout > 0 {
		protocol.SetRoundTripTimeout(opts.RoundTripTimeout)
	}
	return &DeviceRegistry{
		transport:  tr,
		classifier: classifier,
		protocol:   protocol,
		sink:       sink,
		plog:       plog,
		logger:     logger,
		sessions:   make(map[string]*PairingSession),
	}
}

// Run scans for qualifying advertisements and routes them into sessions
// until ctx ends. Restart it to resume scanning.
func (r *DeviceRegistry) Run(ctx context.Context) error {
	records, err := r.transport.Scan(ctx, transport.ScanFilter{
		ServiceUUIDs: []uint16{pairing.ServiceUUID},
	})
	if err != nil {
		return err
	}
	r.logger.Info("scan started")
	for rec := range records {
		r.HandleAdvertisement(rec)
	}
	r.logger.Info("scan stopped")
	return ctx.Err()
}

// HandleAdvertisement classifies one advertisement record and creates or
// refreshes the session for its device. Non-qualifying records are dropped.
func (r *DeviceRegistry) HandleAdvertisement(rec advert.Record) {
	cand, ok := r.classifier.Classify(rec)
	if !ok {
		return
	}

	r.plog.Log(log.Event{
		Timestamp:     time.Now(),
		DeviceAddress: rec.Address,
		ModelID:       cand.ModelID,
		Category:      log.CategoryAdvertisement,
		Advertisement: &log.AdvertisementEvent{
			Confidence: cand.Confidence.String(),
			RSSI:       rec.RSSI,
		},
	})

	r.mu.Lock()
	s, known := r.sessions[rec.Address]
	if known {
		s.updateAdvertisement(cand, rec.RSSI)
		r.mu.Unlock()
		return
	}
	identity := DeviceIdentity{Address: rec.Address, ModelID: cand.ModelID}
	s = newPairingSession(identity, cand, rec.RSSI, r.transport, r.protocol, r.sink, r.plog, r.logger)
	r.sessions[rec.Address] = s
	r.mu.Unlock()

	r.logger.Info("device discovered",
		"address", rec.Address,
		"model_id", cand.ModelID,
		"confidence", cand.Confidence.String())
	r.sink.OnEvent(Event{Kind: EventDeviceDiscovered, Device: s.Snapshot()})
}

// Session returns the session for an address, or nil when unknown.
func (r *DeviceRegistry) Session(address string) *PairingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[address]
}

// Devices returns a snapshot of every known device.
func (r *DeviceRegistry) Devices() []DiscoveredDevice {
	r.mu.Lock()
	sessions := make([]*PairingSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	devices := make([]DiscoveredDevice, 0, len(sessions))
	for _, s := range sessions {
		devices = append(devices, s.Snapshot())
	}
	return devices
}

// Connect dials and pairs the device at the given address.
func (r *DeviceRegistry) Connect(ctx context.Context, address string) error {
	s := r.Session(address)
	if s == nil {
		return transport.ErrDeviceNotFound
	}
	return s.Connect(ctx)
}

// Evict disconnects and forgets a device. A later advertisement recreates
// it as a fresh discovery.
func (r *DeviceRegistry) Evict(address string) {
	r.mu.Lock()
	s := r.sessions[address]
	delete(r.sessions, address)
	r.mu.Unlock()

	if s != nil {
		s.Disconnect()
		r.logger.Info("device evicted", "address", address)
	}
}

// Close disconnects every session. The registry stays usable; sessions are
// recreated on the next qualifying advertisement.
func (r *DeviceRegistry) Close() {
	r.mu.Lock()
	sessions := make([]*PairingSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*PairingSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}
}
