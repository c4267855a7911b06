package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key sizes in bytes.
const (
	// PublicKeySize is the length of an uncompressed P-256 point.
	PublicKeySize = 65

	// SessionKeySize is the length of a derived session key.
	SessionKeySize = 32

	// AccountKeySize is the length of a persistent account key.
	AccountKeySize = 32
)

// Crypto errors.
var (
	ErrInvalidPeerKey       = errors.New("invalid peer public key")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrEntropyExhausted     = errors.New("entropy source exhausted")
	ErrInvalidKeySize       = errors.New("invalid key size")
)

// Curve parameters for P-256.
var curve = elliptic.P256()

// EphemeralKeyPair is a fresh EC key pair scoped to one handshake attempt.
// Call Destroy as soon as the shared secret is derived or the handshake fails.
type EphemeralKeyPair struct {
	private []byte
	public  []byte
}

// GenerateEphemeralKeyPair creates a fresh P-256 key pair.
// Failure means the entropy source is exhausted and is fatal to the engine.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	private, x, y, err := elliptic.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyExhausted, err)
	}
	return &EphemeralKeyPair{
		private: private,
		public:  elliptic.Marshal(curve, x, y),
	}, nil
}

// Public returns the uncompressed public point bytes.
func (k *EphemeralKeyPair) Public() []byte {
	return k.public
}

// Destroy wipes the private scalar. The pair is unusable afterwards.
func (k *EphemeralKeyPair) Destroy() {
	Zero(k.private)
	k.private = nil
}

// DeriveSharedSecret performs ECDH between our ephemeral private key and the
// peer's raw public point. The peer bytes are untrusted: anything that does
// not decode to a point on the curve yields ErrInvalidPeerKey.
func DeriveSharedSecret(pair *EphemeralKeyPair, peerPublic []byte) ([]byte, error) {
	if pair == nil || pair.private == nil {
		return nil, errors.New("ephemeral key pair already destroyed")
	}
	if len(peerPublic) != PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidPeerKey, len(peerPublic), PublicKeySize)
	}

	px, py := elliptic.Unmarshal(curve, peerPublic)
	if px == nil {
		return nil, ErrInvalidPeerKey
	}
	if !curve.IsOnCurve(px, py) {
		return nil, ErrInvalidPeerKey
	}

	sx, _ := curve.ScalarMult(px, py, pair.private)
	if sx.Sign() == 0 {
		return nil, ErrInvalidPeerKey
	}

	// Fixed-width x coordinate so the secret is independent of leading zeros.
	secret := make([]byte, 32)
	sx.FillBytes(secret)
	return secret, nil
}

// DeriveSessionKey applies HKDF-SHA256 extract-and-expand to produce a
// 32-byte symmetric key. Deterministic for identical inputs.
func DeriveSessionKey(sharedSecret, salt, info []byte) ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, salt, info), key); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return key, nil
}

// GenerateAccountKey creates a fresh 256-bit account key.
func GenerateAccountKey() ([]byte, error) {
	key := make([]byte, AccountKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyExhausted, err)
	}
	return key, nil
}

// Seal encrypts and authenticates plaintext under key with AES-256-GCM.
// The random nonce is prepended to the returned ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyExhausted, err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a Seal output. Tag mismatch or a ciphertext
// too short to hold the nonce yields ErrAuthenticationFailed; this is a
// protocol-fatal condition for the exchange that triggered it.
func Open(ciphertext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrAuthenticationFailed)
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// newAEAD constructs the AES-256-GCM instance for a 32-byte key.
func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidKeySize, len(key), SessionKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Zero wipes a byte slice in place. Call on key material when its owning
// scope ends.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
