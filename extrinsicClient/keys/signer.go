package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/pkg/errors"
)

// Scheme names a signature scheme a capability signs with.
type Scheme string

const (
	SchemeSr25519 Scheme = "sr25519"
	SchemeEd25519 Scheme = "ed25519"
)

// signingContext is the schnorrkel context Substrate runtimes verify against.
var signingContext = []byte("substrate")

// ErrCapabilityWiped is returned when signing with a capability whose secret has been erased.
var ErrCapabilityWiped = errors.New("signing capability has been wiped")

// Capability signs payloads for a single keypair. The secret lives in a
// buffer owned by the capability until Wipe is called.
type Capability struct {
	scheme    Scheme
	publicKey []byte
	// sr25519: scalar (32) || nonce (32); ed25519: seed (32) || public key (32)
	secret []byte
}

// Scheme returns the scheme the capability signs with.
func (c *Capability) Scheme() Scheme { return c.scheme }

// PublicKey returns a copy of the 32-byte public key.
func (c *Capability) PublicKey() []byte {
	return append([]byte(nil), c.publicKey...)
}

// Address returns the SS58 address of the public key under the given prefix.
func (c *Capability) Address(prefix uint16) string {
	return EncodeAddress(c.publicKey, prefix)
}

// Sign signs msg. sr25519 signatures are randomized; ed25519 signatures are deterministic.
func (c *Capability) Sign(msg []byte) ([]byte, error) {
	if c.secret == nil {
		return nil, ErrCapabilityWiped
	}
	switch c.scheme {
	case SchemeSr25519:
		var key, nonce [32]byte
		copy(key[:], c.secret[:32])
		copy(nonce[:], c.secret[32:])
		sk := schnorrkel.NewSecretKey(key, nonce)
		wipe(key[:])
		wipe(nonce[:])
		defer sk.Decode([32]byte{}) //nolint:errcheck

		sig, err := sk.Sign(schnorrkel.NewSigningContext(signingContext, msg))
		if err != nil {
			return nil, errors.Wrap(err, "sr25519 sign")
		}
		enc := sig.Encode()
		return enc[:], nil
	case SchemeEd25519:
		return ed25519.Sign(ed25519.PrivateKey(c.secret), msg), nil
	default:
		return nil, errors.Errorf("unsupported scheme %q", c.scheme)
	}
}

// Wipe zeroes the secret. Every later Sign call fails.
func (c *Capability) Wipe() {
	if c.secret == nil {
		return
	}
	wipe(c.secret)
	c.secret = nil
}

// newCapability builds a capability from a decoded keystore secret. The secret
// is copied into a fresh buffer; the caller still owns and wipes its input.
// The derived public key must equal expectedPub.
func newCapability(scheme Scheme, secret, expectedPub []byte) (*Capability, error) {
	var (
		owned []byte
		pub   []byte
		err   error
	)
	switch scheme {
	case SchemeSr25519:
		owned, pub, err = sr25519Secret(secret)
	case SchemeEd25519:
		owned, pub, err = ed25519Secret(secret)
	default:
		return nil, errors.Errorf("unsupported scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pub, expectedPub) {
		wipe(owned)
		return nil, errors.New("derived public key does not match keystore")
	}
	return &Capability{scheme: scheme, publicKey: pub, secret: owned}, nil
}

// sr25519Secret accepts either the 64-byte "ed25519 bytes" form (scalar
// multiplied by the cofactor, then nonce) or a 32-byte mini secret.
func sr25519Secret(secret []byte) ([]byte, []byte, error) {
	owned := make([]byte, 64)
	switch len(secret) {
	case 64:
		copy(owned, secret)
		divideScalarByCofactor(owned[:32])
	case 32:
		var mini [32]byte
		copy(mini[:], secret)
		msk, err := schnorrkel.NewMiniSecretKeyFromRaw(mini)
		wipe(mini[:])
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid sr25519 seed")
		}
		key := msk.ExpandEd25519().Encode()
		h := sha512.Sum512(secret)
		copy(owned[:32], key[:])
		copy(owned[32:], h[32:])
		wipe(key[:])
		wipe(h[:])
	default:
		return nil, nil, errors.Errorf("invalid sr25519 secret length %d", len(secret))
	}

	var key [32]byte
	copy(key[:], owned[:32])
	sk := schnorrkel.NewSecretKey(key, [32]byte{})
	wipe(key[:])
	pub, err := sk.Public()
	sk.Decode([32]byte{}) //nolint:errcheck
	if err != nil {
		wipe(owned)
		return nil, nil, errors.Wrap(err, "invalid sr25519 secret")
	}
	enc := pub.Encode()
	return owned, enc[:], nil
}

func ed25519Secret(secret []byte) ([]byte, []byte, error) {
	var priv ed25519.PrivateKey
	switch len(secret) {
	case ed25519.PrivateKeySize:
		priv = ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
		if !bytes.Equal(priv[ed25519.SeedSize:], secret[ed25519.SeedSize:]) {
			wipe(priv)
			return nil, nil, errors.New("ed25519 secret carries a mismatched public key")
		}
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(secret)
	default:
		return nil, nil, errors.Errorf("invalid ed25519 secret length %d", len(secret))
	}
	pub := append([]byte(nil), priv[ed25519.SeedSize:]...)
	return priv, pub, nil
}

// divideScalarByCofactor converts a schnorrkel scalar stored in ed25519 form
// back to its canonical value, in place.
func divideScalarByCofactor(s []byte) {
	var low byte
	for i := len(s) - 1; i >= 0; i-- {
		r := s[i] & 0x07
		s[i] >>= 3
		s[i] += low
		low = r << 5
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
