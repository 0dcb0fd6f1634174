package keys

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	stageScrypt    = "scrypt"
	stageSecretbox = "xsalsa20-poly1305"
	stageNone      = "none"

	saltLength         = 32
	scryptParamsLength = saltLength + 12
	nonceLength        = 24
	secretLength       = 64
	seedLength         = 32
	publicLength       = 32
)

var (
	pkcs8Header  = []byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32}
	pkcs8Divider = []byte{161, 35, 3, 33, 0}

	hexPattern = regexp.MustCompile(`^0x([0-9a-fA-F]{2})*$`)
)

// ScryptParams are the scrypt cost parameters stored next to the salt.
type ScryptParams struct {
	N, P, R uint32
}

// DefaultScryptParams matches the parameters wallets write today.
var DefaultScryptParams = ScryptParams{N: 1 << 15, P: 1, R: 8}

// parameter sets accepted when unlocking; anything else is refused rather
// than spending unbounded memory on attacker-chosen costs.
var allowedScryptParams = []ScryptParams{
	{N: 1 << 13, P: 10, R: 8},
	{N: 1 << 14, P: 5, R: 8},
	{N: 1 << 15, P: 3, R: 8},
	{N: 1 << 15, P: 1, R: 8},
	{N: 1 << 16, P: 2, R: 8},
	{N: 1 << 17, P: 1, R: 8},
}

// Encoding is the "encoding" descriptor of a keystore document.
type Encoding struct {
	Content json.RawMessage `json:"content"`
	Type    json.RawMessage `json:"type"`
	Version json.RawMessage `json:"version,omitempty"`
}

// KeystoreDocument is a JSON keystore as exported by Substrate wallets.
type KeystoreDocument struct {
	Address  string          `json:"address"`
	Encoded  string          `json:"encoded"`
	Encoding Encoding        `json:"encoding"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// ParseKeystore parses a keystore document.
func ParseKeystore(data []byte) (*KeystoreDocument, error) {
	var doc KeystoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid keystore json")
	}
	if doc.Address == "" || doc.Encoded == "" {
		return nil, errors.New("keystore is missing address or encoded fields")
	}
	return &doc, nil
}

// DeclaredScheme returns the second element of encoding.content when it is a
// list of at least two strings, and "ed25519" otherwise.
func (d *KeystoreDocument) DeclaredScheme() string {
	var content []string
	if err := json.Unmarshal(d.Encoding.Content, &content); err == nil && len(content) >= 2 {
		return content[1]
	}
	return string(SchemeEd25519)
}

// Stages returns encoding.type normalised to a list.
func (d *KeystoreDocument) Stages() ([]string, error) {
	raw := bytes.TrimSpace(d.Encoding.Type)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, errors.Wrap(err, "invalid encoding type")
	}
	return []string{single}, nil
}

// ciphertext decodes the "encoded" field: 0x-hex when it looks like hex, base64 otherwise.
func (d *KeystoreDocument) ciphertext() ([]byte, error) {
	if hexPattern.MatchString(d.Encoded) {
		return hex.DecodeString(d.Encoded[2:])
	}
	if b, err := base64.StdEncoding.DecodeString(d.Encoded); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(d.Encoded, "="))
	if err != nil {
		return nil, errors.Wrap(err, "encoded field is neither hex nor base64")
	}
	return b, nil
}

// decrypt runs the document's stages over the ciphertext and returns the
// plaintext PKCS8 body in a fresh buffer.
func (d *KeystoreDocument) decrypt(passphrase string) ([]byte, error) {
	stages, err := d.Stages()
	if err != nil {
		return nil, err
	}
	var useScrypt, useSecretbox bool
	for _, s := range stages {
		switch s {
		case stageScrypt:
			useScrypt = true
		case stageSecretbox:
			useSecretbox = true
		case stageNone:
		default:
			return nil, errors.Errorf("unsupported encoding stage %q", s)
		}
	}
	if useScrypt && !useSecretbox {
		return nil, errors.New("scrypt stage without a cipher")
	}

	data, err := d.ciphertext()
	if err != nil {
		return nil, err
	}
	if !useSecretbox {
		return data, nil
	}
	if passphrase == "" {
		return nil, errors.New("passphrase required to decode encrypted keystore")
	}

	var key [32]byte
	if useScrypt {
		if len(data) < scryptParamsLength {
			return nil, errors.New("encoded data too short for scrypt parameters")
		}
		params := ScryptParams{
			N: binary.LittleEndian.Uint32(data[saltLength:]),
			P: binary.LittleEndian.Uint32(data[saltLength+4:]),
			R: binary.LittleEndian.Uint32(data[saltLength+8:]),
		}
		if !scryptAllowed(params) {
			return nil, errors.Errorf("scrypt parameters N=%d p=%d r=%d are not allowed", params.N, params.P, params.R)
		}
		derived, err := scrypt.Key([]byte(passphrase), data[:saltLength], int(params.N), int(params.R), int(params.P), 64)
		if err != nil {
			return nil, errors.Wrap(err, "scrypt")
		}
		copy(key[:], derived)
		wipe(derived)
		data = data[scryptParamsLength:]
	} else {
		copy(key[:], passphrase)
	}
	defer wipe(key[:])

	if len(data) < nonceLength+secretbox.Overhead {
		return nil, errors.New("encoded data too short")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], data[:nonceLength])
	plain, ok := secretbox.Open(nil, data[nonceLength:], &nonce, &key)
	if !ok {
		return nil, errors.New("unable to decode using the supplied passphrase")
	}
	return plain, nil
}

func scryptAllowed(p ScryptParams) bool {
	for _, a := range allowedScryptParams {
		if a == p {
			return true
		}
	}
	return false
}

// decodePkcs8 splits a decrypted body into its secret and public key. Both
// results alias body.
func decodePkcs8(body []byte) (secret, public []byte, err error) {
	if len(body) < len(pkcs8Header) || !bytes.Equal(body[:len(pkcs8Header)], pkcs8Header) {
		return nil, nil, errors.New("invalid pkcs8 header")
	}
	offset := len(pkcs8Header)

	divOffset := offset + secretLength
	if !hasDivider(body, divOffset) {
		// legacy bodies carry a 32-byte seed instead of the expanded secret
		divOffset = offset + seedLength
		if !hasDivider(body, divOffset) {
			return nil, nil, errors.New("invalid pkcs8 divider")
		}
	}
	pubOffset := divOffset + len(pkcs8Divider)
	if len(body) < pubOffset+publicLength {
		return nil, nil, errors.New("pkcs8 body too short for public key")
	}
	return body[offset:divOffset], body[pubOffset : pubOffset+publicLength], nil
}

func hasDivider(body []byte, at int) bool {
	end := at + len(pkcs8Divider)
	return len(body) >= end && bytes.Equal(body[at:end], pkcs8Divider)
}
