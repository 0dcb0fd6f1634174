package keys

import (
	"bytes"
	"fmt"

	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
)

// CredentialSource is one of Mnemonic, Seed or KeystoreFile.
type CredentialSource interface {
	credentialSource()
}

// Mnemonic is a BIP-39 phrase with an optional derivation path.
type Mnemonic struct {
	Phrase     string
	DerivePath string
}

// Seed is a raw 32-byte secret seed.
type Seed struct {
	Seed [32]byte
}

// KeystoreFile is a parsed JSON keystore and the passphrase that unlocks it.
type KeystoreFile struct {
	Document   *KeystoreDocument
	Passphrase string
}

func (Mnemonic) credentialSource()     {}
func (Seed) credentialSource()         {}
func (KeystoreFile) credentialSource() {}

// Resolve turns a credential source into a signing capability. It performs no
// network or disk access. Callers must Wipe the capability once done.
func Resolve(src CredentialSource) (*Capability, error) {
	switch s := src.(type) {
	case Mnemonic:
		return nil, cerrors.NewUnsupportedCredentialError("mnemonic credentials are not supported")
	case Seed:
		return nil, cerrors.NewUnsupportedCredentialError("seed credentials are not supported")
	case KeystoreFile:
		return resolveKeystore(s)
	case nil:
		return nil, cerrors.NewValidationError("", "no credential source given")
	default:
		return nil, cerrors.NewValidationError("", fmt.Sprintf("unknown credential source %T", src))
	}
}

func resolveKeystore(src KeystoreFile) (*Capability, error) {
	doc := src.Document
	if doc == nil {
		return nil, cerrors.NewInvalidKeystoreError("keystore document is empty", nil)
	}

	scheme := Scheme(doc.DeclaredScheme())
	if scheme != SchemeSr25519 && scheme != SchemeEd25519 {
		return nil, cerrors.NewUnsupportedCredentialError(fmt.Sprintf("keystore scheme %q is not supported", scheme)).
			WithContext("address", doc.Address)
	}

	addressKey, err := DecodeAddress(doc.Address)
	if err != nil {
		return nil, cerrors.NewInvalidKeystoreError("invalid keystore address", err)
	}

	body, err := doc.decrypt(src.Passphrase)
	if err != nil {
		return nil, cerrors.NewInvalidKeystoreError("unable to decrypt keystore", err)
	}
	defer wipe(body)

	secret, public, err := decodePkcs8(body)
	if err != nil {
		return nil, cerrors.NewInvalidKeystoreError("invalid keystore body", err)
	}
	if !bytes.Equal(public, addressKey) {
		return nil, cerrors.NewInvalidKeystoreError("keystore public key does not match its address", nil)
	}

	capability, err := newCapability(scheme, secret, addressKey)
	if err != nil {
		return nil, cerrors.NewInvalidKeystoreError(fmt.Sprintf("keystore secret is not a valid %s key", scheme), err)
	}
	return capability, nil
}
