package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
)

const (
	alicePublicHex = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceAddress   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func TestResolveUnsupportedSources(t *testing.T) {
	sources := []CredentialSource{
		Mnemonic{Phrase: "bottom drive obey lake curtain smoke basket hold race lonely fit walk"},
		Mnemonic{Phrase: "", DerivePath: "//Alice"},
		Seed{Seed: seedBytes(1)},
		Seed{},
	}
	for _, src := range sources {
		capability, err := Resolve(src)
		require.Error(t, err)
		assert.Nil(t, capability)
		assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeUnsupportedCredential), "%T: %v", src, err)
	}
}

func TestResolveNilSource(t *testing.T) {
	_, err := Resolve(nil)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeValidation))
}

func TestResolveEd25519HexKeystore(t *testing.T) {
	pair := newEd25519Pair(t)
	doc := buildKeystore(t, pair, keystoreOptions{passphrase: "correct horse", hexEncoded: true})
	require.True(t, strings.HasPrefix(doc.Encoded, "0x"))

	capability, err := Resolve(KeystoreFile{Document: doc, Passphrase: "correct horse"})
	require.NoError(t, err)
	defer capability.Wipe()

	addressKey, err := DecodeAddress(doc.Address)
	require.NoError(t, err)
	assert.Equal(t, addressKey, capability.PublicKey())
	assert.Equal(t, SchemeEd25519, capability.Scheme())

	msg := []byte("payload")
	sig1, err := capability.Sign(msg)
	require.NoError(t, err)
	sig2, err := capability.Sign(msg)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)
	assert.True(t, ed25519.Verify(capability.PublicKey(), msg, sig1))
}

func TestResolveSr25519Keystore(t *testing.T) {
	pair := newSr25519Pair(t)
	doc := buildKeystore(t, pair, keystoreOptions{passphrase: "pass"})

	capability, err := Resolve(KeystoreFile{Document: doc, Passphrase: "pass"})
	require.NoError(t, err)
	defer capability.Wipe()

	assert.Equal(t, SchemeSr25519, capability.Scheme())
	assert.Equal(t, pair.public, capability.PublicKey())
	assert.Equal(t, doc.Address, capability.Address(DefaultSS58Prefix))

	msg := []byte("extrinsic payload")
	sig, err := capability.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	var pubArr [32]byte
	copy(pubArr[:], pair.public)
	pub, err := schnorrkel.NewPublicKey(pubArr)
	require.NoError(t, err)

	var sigArr [64]byte
	copy(sigArr[:], sig)
	decoded := &schnorrkel.Signature{}
	require.NoError(t, decoded.Decode(sigArr))

	ok, err := pub.Verify(decoded, schnorrkel.NewSigningContext([]byte("substrate"), msg))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolveInvalidKeystores(t *testing.T) {
	ed := newEd25519Pair(t)
	sr := newSr25519Pair(t)
	other := testPair{scheme: SchemeEd25519, public: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, 32))[32:]}

	tests := []struct {
		name       string
		doc        *KeystoreDocument
		passphrase string
	}{
		{
			name:       "wrong passphrase",
			doc:        buildKeystore(t, ed, keystoreOptions{passphrase: "right"}),
			passphrase: "wrong",
		},
		{
			name:       "empty passphrase",
			doc:        buildKeystore(t, ed, keystoreOptions{passphrase: "right"}),
			passphrase: "",
		},
		{
			name:       "address of another key",
			doc:        buildKeystore(t, ed, keystoreOptions{passphrase: "p", address: EncodeAddress(other.public, 42)}),
			passphrase: "p",
		},
		{
			name:       "scheme mismatch",
			doc:        buildKeystore(t, sr, keystoreOptions{passphrase: "p", content: []string{"pkcs8", "ed25519"}}),
			passphrase: "p",
		},
		{
			name:       "default scheme is ed25519",
			doc:        buildKeystore(t, sr, keystoreOptions{passphrase: "p", content: "pkcs8"}),
			passphrase: "p",
		},
		{
			name:       "bad pkcs8 header",
			doc:        buildKeystore(t, ed, keystoreOptions{passphrase: "p", body: append([]byte{0}, pkcs8Body(ed.secret, ed.public)[1:]...)}),
			passphrase: "p",
		},
		{
			name: "bad pkcs8 divider",
			doc: buildKeystore(t, ed, keystoreOptions{passphrase: "p", body: func() []byte {
				b := pkcs8Body(ed.secret, ed.public)
				b[len(pkcs8Header)+secretLength] = 0
				return b
			}()}),
			passphrase: "p",
		},
		{
			name:       "scrypt parameters outside the allowed set",
			doc:        buildKeystore(t, ed, keystoreOptions{passphrase: "p", params: ScryptParams{N: 1 << 10, P: 1, R: 8}}),
			passphrase: "p",
		},
		{
			name:       "unknown encoding stage",
			doc:        buildKeystore(t, ed, keystoreOptions{passphrase: "p", encType: []string{"scrypt", "aes-gcm"}}),
			passphrase: "p",
		},
		{
			name: "corrupted address checksum",
			doc: func() *KeystoreDocument {
				d := buildKeystore(t, ed, keystoreOptions{passphrase: "p", address: aliceAddress})
				d.Address = aliceAddress[:len(aliceAddress)-1] + "Z"
				return d
			}(),
			passphrase: "p",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capability, err := Resolve(KeystoreFile{Document: tt.doc, Passphrase: tt.passphrase})
			require.Error(t, err)
			assert.Nil(t, capability)
			assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeInvalidKeystore), err.Error())
		})
	}
}

func TestResolveUnsupportedScheme(t *testing.T) {
	ed := newEd25519Pair(t)
	doc := buildKeystore(t, ed, keystoreOptions{passphrase: "p", content: []string{"pkcs8", "ecdsa"}})

	_, err := Resolve(KeystoreFile{Document: doc, Passphrase: "p"})
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeUnsupportedCredential))
}

func TestResolveLegacySeedBody(t *testing.T) {
	ed := newEd25519Pair(t)
	body := pkcs8Body(ed.secret[:seedLength], ed.public)
	doc := buildKeystore(t, ed, keystoreOptions{passphrase: "p", body: body})

	capability, err := Resolve(KeystoreFile{Document: doc, Passphrase: "p"})
	require.NoError(t, err)
	defer capability.Wipe()
	assert.Equal(t, ed.public, capability.PublicKey())
}

func TestWipe(t *testing.T) {
	pair := newEd25519Pair(t)
	doc := buildKeystore(t, pair, keystoreOptions{passphrase: "p"})

	capability, err := Resolve(KeystoreFile{Document: doc, Passphrase: "p"})
	require.NoError(t, err)

	secret := capability.secret
	capability.Wipe()
	assert.Equal(t, make([]byte, len(secret)), secret)

	_, err = capability.Sign([]byte("late"))
	assert.ErrorIs(t, err, ErrCapabilityWiped)

	capability.Wipe()
}

func TestDeclaredSchemeAndStages(t *testing.T) {
	doc := &KeystoreDocument{Encoding: Encoding{
		Content: []byte(`["pkcs8","sr25519"]`),
		Type:    []byte(`"xsalsa20-poly1305"`),
	}}
	assert.Equal(t, "sr25519", doc.DeclaredScheme())
	stages, err := doc.Stages()
	require.NoError(t, err)
	assert.Equal(t, []string{"xsalsa20-poly1305"}, stages)

	doc.Encoding.Content = []byte(`["pkcs8"]`)
	assert.Equal(t, "ed25519", doc.DeclaredScheme())

	doc.Encoding.Type = []byte(`["scrypt","xsalsa20-poly1305"]`)
	stages, err = doc.Stages()
	require.NoError(t, err)
	assert.Equal(t, []string{"scrypt", "xsalsa20-poly1305"}, stages)
}

func TestParseKeystore(t *testing.T) {
	_, err := ParseKeystore([]byte(`{"address":""}`))
	assert.Error(t, err)

	_, err = ParseKeystore([]byte(`not json`))
	assert.Error(t, err)
}

func TestSS58(t *testing.T) {
	alice, err := hex.DecodeString(alicePublicHex)
	require.NoError(t, err)

	pub, prefix, err := DecodeSS58(aliceAddress)
	require.NoError(t, err)
	assert.Equal(t, alice, pub)
	assert.Equal(t, DefaultSS58Prefix, prefix)
	assert.Equal(t, aliceAddress, EncodeAddress(alice, DefaultSS58Prefix))

	_, _, err = DecodeSS58(aliceAddress[:len(aliceAddress)-1] + "Z")
	assert.Error(t, err)

	_, _, err = DecodeSS58("0OIl")
	assert.Error(t, err)

	pub, err = DecodeAddress("0x" + alicePublicHex)
	require.NoError(t, err)
	assert.Equal(t, alice, pub)

	for _, p := range []uint16{0, 2, 63, 64, 1284, 16383} {
		addr := EncodeAddress(alice, p)
		got, gotPrefix, err := DecodeSS58(addr)
		require.NoError(t, err, "prefix %d", p)
		assert.Equal(t, alice, got)
		assert.Equal(t, p, gotPrefix)
	}
}

func TestCofactorRoundTrip(t *testing.T) {
	scalar := seedBytes(3)
	scalar[31] &= 0x0f
	orig := scalar
	multiplyScalarByCofactor(scalar[:])
	divideScalarByCofactor(scalar[:])
	assert.Equal(t, orig, scalar)
}

func TestPasswordManagerNonInteractive(t *testing.T) {
	var out bytes.Buffer
	pm := NewPasswordManagerWithIO(strings.NewReader("secret phrase \n"), &out)

	pass, err := pm.PromptForKeystorePassphrase(aliceAddress)
	require.NoError(t, err)
	assert.Equal(t, "secret phrase ", pass)
	assert.Contains(t, out.String(), aliceAddress)

	pm = NewPasswordManagerWithIO(strings.NewReader(""), &out)
	_, err = pm.GetPassword("> ")
	assert.Error(t, err)
}
