package keys

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

type testPair struct {
	scheme Scheme
	secret []byte // keystore form
	public []byte
}

func seedBytes(start byte) [32]byte {
	var seed [32]byte
	for i := range seed {
		seed[i] = start + byte(i)
	}
	return seed
}

func newEd25519Pair(t *testing.T) testPair {
	t.Helper()
	seed := seedBytes(1)
	priv := ed25519.NewKeyFromSeed(seed[:])
	return testPair{scheme: SchemeEd25519, secret: priv, public: append([]byte(nil), priv[32:]...)}
}

func newSr25519Pair(t *testing.T) testPair {
	t.Helper()
	mini := seedBytes(7)
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(mini)
	require.NoError(t, err)

	key := msk.ExpandEd25519().Encode()
	multiplyScalarByCofactor(key[:])
	h := sha512.Sum512(mini[:])

	secret := append(append([]byte{}, key[:]...), h[32:]...)
	pub := msk.Public().Encode()
	return testPair{scheme: SchemeSr25519, secret: secret, public: pub[:]}
}

func multiplyScalarByCofactor(s []byte) {
	var high byte
	for i := range s {
		r := s[i] & 0xe0
		s[i] <<= 3
		s[i] += high
		high = r >> 5
	}
}

func pkcs8Body(secret, public []byte) []byte {
	body := append([]byte{}, pkcs8Header...)
	body = append(body, secret...)
	body = append(body, pkcs8Divider...)
	return append(body, public...)
}

type keystoreOptions struct {
	passphrase string
	hexEncoded bool
	content    interface{}
	encType    interface{}
	address    string
	body       []byte
	params     ScryptParams
}

// buildKeystore encrypts a pair the way wallet exports do.
func buildKeystore(t *testing.T, pair testPair, opts keystoreOptions) *KeystoreDocument {
	t.Helper()
	if opts.params == (ScryptParams{}) {
		opts.params = DefaultScryptParams
	}
	body := opts.body
	if body == nil {
		body = pkcs8Body(pair.secret, pair.public)
	}

	var salt [saltLength]byte
	copy(salt[:], []byte("0123456789abcdef0123456789abcdef"))
	derived, err := scrypt.Key([]byte(opts.passphrase), salt[:], int(opts.params.N), int(opts.params.R), int(opts.params.P), 64)
	require.NoError(t, err)
	var key [32]byte
	copy(key[:], derived)

	var nonce [nonceLength]byte
	copy(nonce[:], []byte("nonce-nonce-nonce-nonce!"))

	encoded := append([]byte{}, salt[:]...)
	encoded = binary.LittleEndian.AppendUint32(encoded, opts.params.N)
	encoded = binary.LittleEndian.AppendUint32(encoded, opts.params.P)
	encoded = binary.LittleEndian.AppendUint32(encoded, opts.params.R)
	encoded = append(encoded, nonce[:]...)
	encoded = secretbox.Seal(encoded, body, &nonce, &key)

	content := opts.content
	if content == nil {
		content = []string{"pkcs8", string(pair.scheme)}
	}
	encType := opts.encType
	if encType == nil {
		encType = []string{"scrypt", "xsalsa20-poly1305"}
	}
	address := opts.address
	if address == "" {
		address = EncodeAddress(pair.public, DefaultSS58Prefix)
	}

	var text string
	if opts.hexEncoded {
		text = "0x" + hex.EncodeToString(encoded)
	} else {
		text = base64.StdEncoding.EncodeToString(encoded)
	}

	raw, err := json.Marshal(map[string]interface{}{
		"address": address,
		"encoded": text,
		"encoding": map[string]interface{}{
			"content": content,
			"type":    encType,
			"version": "3",
		},
		"meta": map[string]interface{}{"name": "test", "whenCreated": 1700000000000},
	})
	require.NoError(t, err)

	doc, err := ParseKeystore(raw)
	require.NoError(t, err)
	return doc
}
