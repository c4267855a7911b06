package pairing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nearpair-protocol/nearpair-go/pkg/keys"
	"github.com/nearpair-protocol/nearpair-go/pkg/keystore"
	"github.com/nearpair-protocol/nearpair-go/pkg/transport"
)

// Key-derivation labels. Fixed: both ends must derive identical keys.
var (
	sessionKeySalt = []byte("nearpair-pairing-v1")
	sessionKeyInfo = []byte("session-key")
	reauthInfo     = []byte("nearpair reauth v1")
)

// ReauthProofSize is the length of the re-authentication possession proof.
const ReauthProofSize = 16

// DefaultRoundTripTimeout bounds each characteristic round trip.
const DefaultRoundTripTimeout = 5 * time.Second

// Protocol errors.
var (
	ErrTimeout  = errors.New("characteristic round trip timed out")
	ErrRejected = errors.New("device rejected pairing payload")
)

// Result is the outcome of a successful handshake.
type Result struct {
	// SessionKey is the derived symmetric key, scoped to this connection.
	SessionKey []byte

	// AccountKey is the persistent key for this identity (borrowed copy;
	// the store owns it).
	AccountKey []byte

	// NewAccountKey reports whether this handshake created and persisted
	// a fresh account key (first-time pairing).
	NewAccountKey bool
}

// Protocol drives the key-based-pairing handshake over a transport
// connection. Safe for concurrent use across connections.
type Protocol struct {
	store   keystore.Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewProtocol creates a handshake driver backed by the given account-key
// store. A nil logger disables logging.
func NewProtocol(store keystore.Store, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Protocol{
		store:   store,
		timeout: DefaultRoundTripTimeout,
		logger:  logger,
	}
}

// SetRoundTripTimeout overrides the per-round-trip timeout.
func (p *Protocol) SetRoundTripTimeout(d time.Duration) {
	if d > 0 {
		p.timeout = d
	}
}

// Handshake performs the key-based-pairing exchange with a connected device
// and returns the derived session key and account key. On any failure the
// ephemeral key pair is destroyed and a named error is returned; the caller
// owns the state transition.
func (p *Protocol) Handshake(ctx context.Context, conn transport.Connection, identity string) (*Result, error) {
	chars, err := conn.DiscoverCharacteristics(ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to discover pairing characteristics: %w", err)
	}
	pairingChar, ok := chars[CharKeyBasedPairing]
	if !ok {
		return nil, fmt.Errorf("%w: key-based pairing (%04X)",
			transport.ErrCharacteristicNotFound, CharKeyBasedPairing)
	}
	accountChar, ok := chars[CharAccountKey]
	if !ok {
		return nil, fmt.Errorf("%w: account key (%04X)",
			transport.ErrCharacteristicNotFound, CharAccountKey)
	}

	// Subscribe before writing so the response cannot race past us.
	pairingNotifs, err := conn.Notifications(pairingChar)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to pairing notifications: %w", err)
	}
	accountNotifs, err := conn.Notifications(accountChar)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to account-key notifications: %w", err)
	}

	// Step 1: fresh ephemeral key pair, strictly handshake-scoped.
	pair, err := keys.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	defer pair.Destroy()

	req, err := EncodePairingRequest(pair.Public())
	if err != nil {
		return nil, err
	}
	if err := p.roundTripWrite(ctx, conn, pairingChar, req); err != nil {
		return nil, fmt.Errorf("failed to write pairing request: %w", err)
	}

	// Step 2: device responds with its public key.
	payload, err := p.awaitNotification(ctx, pairingNotifs)
	if err != nil {
		return nil, fmt.Errorf("pairing response: %w", err)
	}
	devicePublic, err := DecodePairingResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed pairing response: %w", err)
	}

	// Step 3: ECDH and session key derivation.
	secret, err := keys.DeriveSharedSecret(pair, devicePublic)
	if err != nil {
		return nil, err
	}
	defer keys.Zero(secret)

	sessionKey, err := SessionKeyFromSecret(secret)
	if err != nil {
		return nil, err
	}

	// Step 4: first pairing writes a fresh sealed account key; a known
	// identity proves possession instead, keeping the key off the wire.
	accountKey, err := p.store.Get(identity)
	switch {
	case errors.Is(err, keystore.ErrKeyNotFound):
		accountKey, err = p.firstPairing(ctx, conn, accountChar, accountNotifs, identity, sessionKey)
		if err != nil {
			keys.Zero(sessionKey)
			return nil, err
		}
		p.logger.Debug("stored new account key", "identity", identity)
		return &Result{SessionKey: sessionKey, AccountKey: accountKey, NewAccountKey: true}, nil

	case err != nil:
		keys.Zero(sessionKey)
		return nil, fmt.Errorf("account key lookup failed: %w", err)

	default:
		if err := p.reauthenticate(ctx, conn, accountChar, accountNotifs, accountKey, devicePublic, sessionKey); err != nil {
			keys.Zero(sessionKey)
			return nil, err
		}
		p.logger.Debug("re-authenticated with stored account key", "identity", identity)
		return &Result{SessionKey: sessionKey, AccountKey: accountKey, NewAccountKey: false}, nil
	}
}

// firstPairing generates, delivers, and persists a fresh account key.
// The key reaches the store only after the device acknowledges it.
func (p *Protocol) firstPairing(ctx context.Context, conn transport.Connection, char transport.Characteristic, notifs <-chan []byte, identity string, sessionKey []byte) ([]byte, error) {
	accountKey, err := keys.GenerateAccountKey()
	if err != nil {
		return nil, err
	}

	sealed, err := keys.Seal(accountKey, sessionKey)
	if err != nil {
		return nil, err
	}
	if err := p.roundTripWrite(ctx, conn, char, sealed); err != nil {
		return nil, fmt.Errorf("failed to write account key: %w", err)
	}

	if err := p.awaitAck(ctx, notifs); err != nil {
		return nil, fmt.Errorf("account key: %w", err)
	}

	if err := p.store.Put(identity, accountKey); err != nil {
		return nil, fmt.Errorf("failed to persist account key: %w", err)
	}
	return accountKey, nil
}

// reauthenticate proves possession of the stored account key under the new
// session key.
func (p *Protocol) reauthenticate(ctx context.Context, conn transport.Connection, char transport.Characteristic, notifs <-chan []byte, accountKey, devicePublic, sessionKey []byte) error {
	proof, err := ReauthProof(accountKey, devicePublic)
	if err != nil {
		return err
	}

	sealed, err := keys.Seal(proof, sessionKey)
	if err != nil {
		return err
	}
	if err := p.roundTripWrite(ctx, conn, char, sealed); err != nil {
		return fmt.Errorf("failed to write re-auth proof: %w", err)
	}

	if err := p.awaitAck(ctx, notifs); err != nil {
		return fmt.Errorf("re-authentication: %w", err)
	}
	return nil
}

// roundTripWrite writes with response under the per-round-trip timeout.
func (p *Protocol) roundTripWrite(ctx context.Context, conn transport.Connection, char transport.Characteristic, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := conn.Write(wctx, char, data, true); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	return nil
}

// awaitNotification waits for the next payload on a characteristic, bounded
// by the round-trip timeout. A closed channel means the transport dropped.
func (p *Protocol) awaitNotification(ctx context.Context, notifs <-chan []byte) ([]byte, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-notifs:
		if !ok {
			return nil, transport.ErrDisconnected
		}
		return payload, nil
	case <-timer.C:
		// Device silence and explicit rejection are indistinguishable.
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// awaitAck waits for an account-key acknowledgement and maps rejection to
// ErrRejected.
func (p *Protocol) awaitAck(ctx context.Context, notifs <-chan []byte) error {
	payload, err := p.awaitNotification(ctx, notifs)
	if err != nil {
		return err
	}
	accepted, err := DecodeAck(payload)
	if err != nil {
		return err
	}
	if !accepted {
		return ErrRejected
	}
	return nil
}

// SessionKeyFromSecret derives the session key from an ECDH shared secret
// using the protocol's fixed salt and context label. Both ends use this.
func SessionKeyFromSecret(secret []byte) ([]byte, error) {
	return keys.DeriveSessionKey(secret, sessionKeySalt, sessionKeyInfo)
}

// ReauthProof derives the re-authentication possession proof from the stored
// account key and the device's fresh public key. Both ends compute this and
// compare; the account key itself never crosses the wire in cleartext.
func ReauthProof(accountKey, devicePublic []byte) ([]byte, error) {
	proof, err := keys.DeriveSessionKey(accountKey, devicePublic, reauthInfo)
	if err != nil {
		return nil, err
	}
	return proof[:ReauthProofSize], nil
}
