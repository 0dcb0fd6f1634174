package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virto-network/subskribinto/extrinsicClient/config"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/metadata"
	mdt "github.com/virto-network/subskribinto/extrinsicClient/metadata/metadatatest"
	"github.com/virto-network/subskribinto/extrinsicClient/rpc/rpctest"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

func transferCall(amount uint64) []byte {
	call := []byte{mdt.BalancesIndex, mdt.TransferKeepAliveCallIndex, 0x00}
	call = append(call, bytes.Repeat([]byte{0xd4}, 32)...)
	return append(call, scale.EncodeCompact(amount)...)
}

func fixtureMetadata(t *testing.T) *metadata.Metadata {
	t.Helper()
	md, err := metadata.Decode(mdt.Encode(14))
	require.NoError(t, err)
	return md
}

func TestEraEncoding(t *testing.T) {
	tests := []struct {
		name     string
		period   uint64
		current  uint64
		expected []byte
	}{
		{"period 64 at 42", 64, 42, []byte{0xa5, 0x02}},
		{"period rounded up", 50, 42, []byte{0xa5, 0x02}},
		{"minimum period", 1, 5, []byte{0x11, 0x00}},
		{"quantized phase", 32768, 20000, []byte{0x4e, 0x9c}},
		{"clamped period", 1 << 20, 20000, []byte{0x2f, 0x4e}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MortalEra(tt.period, tt.current).Encode())
		})
	}
	assert.Equal(t, []byte{0x00}, ImmortalEra().Encode())
}

func TestEraBirth(t *testing.T) {
	era := MortalEra(64, 1000)
	assert.Equal(t, uint64(1000), era.Birth(1000))
	assert.Equal(t, uint64(1000), era.Birth(1063))
	assert.Equal(t, uint64(1064), era.Birth(1064))

	quantized := MortalEra(8192, 20001)
	assert.Equal(t, uint64(3616), quantized.Phase)
	assert.Equal(t, uint64(20000), quantized.Birth(20001))

	assert.Zero(t, ImmortalEra().Birth(99))
}

func TestStorageKeys(t *testing.T) {
	assert.Equal(t, "26aa394eea5630e07c48ae0c9558cef7", hex.EncodeToString(Twox128([]byte("System"))))
	assert.Equal(t, "80d41e5e16056765bc8461851072c9d7", hex.EncodeToString(Twox128([]byte("Events"))))
	assert.Equal(t,
		"0x26aa394eea5630e07c48ae0c9558cef780d41e5e16056765bc8461851072c9d7",
		hexString(PlainStorageKey("System", "Events")))
}

func TestHashJSON(t *testing.T) {
	raw, err := json.Marshal(genesisHash)
	require.NoError(t, err)

	var h Hash
	require.NoError(t, json.Unmarshal(raw, &h))
	assert.Equal(t, genesisHash, h)

	assert.Error(t, json.Unmarshal([]byte(`"0x1234"`), &h))
	assert.Error(t, json.Unmarshal([]byte(`"0xzz"`), &h))
	assert.True(t, Hash{}.IsZero())
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw   string
		kind  string
		block *Hash
		err   bool
	}{
		{raw: `"future"`, kind: statusFuture},
		{raw: `"ready"`, kind: statusReady},
		{raw: `"dropped"`, kind: statusDropped},
		{raw: `"invalid"`, kind: statusInvalid},
		{raw: `{"broadcast":["12D3KooW"]}`, kind: statusBroadcast},
		{raw: `{"inBlock":"` + bestBlock.Hex() + `"}`, kind: statusInBlock, block: &bestBlock},
		{raw: `{"retracted":"` + bestBlock.Hex() + `"}`, kind: statusRetracted, block: &bestBlock},
		{raw: `{"finalized":"` + finalBlock.Hex() + `"}`, kind: statusFinalized, block: &finalBlock},
		{raw: `{"finalityTimeout":"` + bestBlock.Hex() + `"}`, kind: statusFinalityTimeout, block: &bestBlock},
		{raw: `{"usurped":"` + bestBlock.Hex() + `"}`, kind: statusUsurped, block: &bestBlock},
		{raw: `"pending"`, err: true},
		{raw: `{"inBlock":"0x12"}`, err: true},
		{raw: `{"a":1,"b":2}`, err: true},
		{raw: `{"somethingElse":1}`, err: true},
		{raw: `42`, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			st, err := parseStatus(json.RawMessage(tt.raw))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, st.kind)
			assert.Equal(t, tt.block, st.block)
		})
	}
}

func TestBuildExtrinsicLayout(t *testing.T) {
	md := fixtureMetadata(t)
	signer := newEdSigner()
	call := transferCall(12345)
	params := extrinsicParams{
		specVersion: testSpecVersion,
		txVersion:   testTxVersion,
		genesis:     genesisHash,
		checkpoint:  genesisHash,
		era:         ImmortalEra(),
		nonce:       testNonce,
		tip:         new(big.Int),
	}

	ext, err := buildExtrinsic(md, signer, call, params)
	require.NoError(t, err)
	assert.Equal(t, blake2b256(ext.encoded), ext.hash)

	d := scale.NewDecoder(ext.encoded)
	body, err := d.ByteSlice()
	require.NoError(t, err)
	require.Zero(t, d.Remaining())

	assert.Equal(t, byte(0x84), body[0])
	assert.Equal(t, byte(0x00), body[1], "MultiAddress::Id")
	assert.Equal(t, signer.PublicKey(), body[2:34])
	assert.Equal(t, byte(0x00), body[34], "MultiSignature::Ed25519")
	sig := body[35:99]

	extra := []byte{0x00, byte(testNonce << 2), 0x00, 0x00, 0x00}
	assert.Equal(t, extra, body[99:99+len(extra)])
	assert.Equal(t, call, body[99+len(extra):])

	var additional []byte
	additional = binary.LittleEndian.AppendUint32(additional, testSpecVersion)
	additional = binary.LittleEndian.AppendUint32(additional, testTxVersion)
	additional = append(additional, genesisHash[:]...)
	additional = append(additional, genesisHash[:]...)
	additional = append(additional, 0x00)

	payload := append(append(append([]byte{}, call...), extra...), additional...)
	assert.True(t, ed25519.Verify(signer.PublicKey(), payload, sig))
}

func TestBuildExtrinsicHashesLongPayload(t *testing.T) {
	md := fixtureMetadata(t)
	signer := newEdSigner()
	remark := bytes.Repeat([]byte{0xab}, 300)
	call := append([]byte{mdt.SystemIndex, mdt.RemarkCallIndex}, scale.PrefixLength(remark)...)

	params := extrinsicParams{genesis: genesisHash, checkpoint: genesisHash, era: MortalEra(64, 42), nonce: 1}
	ext, err := buildExtrinsic(md, signer, call, params)
	require.NoError(t, err)

	d := scale.NewDecoder(ext.encoded)
	body, err := d.ByteSlice()
	require.NoError(t, err)
	sig := body[35:99]
	extra := []byte{0xa5, 0x02, 0x04, 0x00, 0x00, 0x00}
	assert.Equal(t, extra, body[99:105])

	var additional []byte
	additional = binary.LittleEndian.AppendUint32(additional, 0)
	additional = binary.LittleEndian.AppendUint32(additional, 0)
	additional = append(additional, genesisHash[:]...)
	additional = append(additional, genesisHash[:]...)
	additional = append(additional, 0x00)

	payload := append(append(append([]byte{}, call...), extra...), additional...)
	require.Greater(t, len(payload), maxRawPayload)
	digest := blake2b256(payload)
	assert.True(t, ed25519.Verify(signer.PublicKey(), digest[:], sig))
	assert.False(t, ed25519.Verify(signer.PublicKey(), payload, sig))
}

type schemeSigner struct {
	edSigner
	scheme keys.Scheme
}

func (s schemeSigner) Scheme() keys.Scheme { return s.scheme }

func TestSignatureVariantFollowsScheme(t *testing.T) {
	md := fixtureMetadata(t)

	sig, err := encodeSignature(md, keys.SchemeSr25519, make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, byte(1), sig[0])

	sig, err = encodeSignature(md, keys.SchemeEd25519, make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, byte(0), sig[0])

	_, err = buildExtrinsic(md, schemeSigner{newEdSigner(), "ecdsa"}, transferCall(1), extrinsicParams{})
	assert.Error(t, err)
}

func TestUnknownExtensions(t *testing.T) {
	md := fixtureMetadata(t)
	md.Extrinsic.SignedExtensions = append(md.Extrinsic.SignedExtensions,
		metadata.SignedExtension{Identifier: "CheckNothing", Type: mdt.TypeUnit, AdditionalSigned: mdt.TypeUnit},
		metadata.SignedExtension{Identifier: "MaybeSomething", Type: mdt.TypeOptionU32, AdditionalSigned: mdt.TypeUnit},
	)
	extra, _, err := encodeExtensions(md, extrinsicParams{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, extra)

	md.Extrinsic.SignedExtensions = append(md.Extrinsic.SignedExtensions,
		metadata.SignedExtension{Identifier: "ChargeSomething", Type: mdt.TypeU32, AdditionalSigned: mdt.TypeUnit},
	)
	_, _, err = encodeExtensions(md, extrinsicParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChargeSomething")

	md.Extrinsic.SignedExtensions = []metadata.SignedExtension{
		{Identifier: "NeedsAdditional", Type: mdt.TypeUnit, AdditionalSigned: mdt.TypeH256},
	}
	_, _, err = encodeExtensions(md, extrinsicParams{})
	assert.Error(t, err)
}

func TestChargeAssetTxPayment(t *testing.T) {
	md := fixtureMetadata(t)
	md.Extrinsic.SignedExtensions = []metadata.SignedExtension{
		{Identifier: "ChargeAssetTxPayment", Type: mdt.TypeUnit, AdditionalSigned: mdt.TypeUnit},
		{Identifier: "CheckEra", Type: mdt.TypeEra, AdditionalSigned: mdt.TypeH256},
	}
	extra, additional, err := encodeExtensions(md, extrinsicParams{tip: big.NewInt(100), era: ImmortalEra(), checkpoint: finalizedHead})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x91, 0x01, 0x00, 0x00}, extra)
	assert.Equal(t, finalizedHead[:], additional)
}

func TestDecodeDispatch(t *testing.T) {
	md := fixtureMetadata(t)

	t.Run("success", func(t *testing.T) {
		d, err := decodeDispatch(md, 42, events(transferEvent(), successEvent()), testExtrinsicIndex)
		require.NoError(t, err)
		assert.True(t, d.Success)
		assert.Empty(t, d.Error)
		assert.Equal(t, []string{"Balances::Transfer", "System::ExtrinsicSuccess"}, d.Events)
	})

	t.Run("module error", func(t *testing.T) {
		raw := events(failedEvent(3, mdt.BalancesIndex, mdt.InsufficientBalanceIndex, 0, 0, 0))
		d, err := decodeDispatch(md, 42, raw, testExtrinsicIndex)
		require.NoError(t, err)
		assert.False(t, d.Success)
		assert.Equal(t, "Balances::InsufficientBalance", d.Error)
	})

	t.Run("unknown module error", func(t *testing.T) {
		raw := events(failedEvent(3, mdt.BalancesIndex, 99, 0, 0, 0))
		d, err := decodeDispatch(md, 42, raw, testExtrinsicIndex)
		require.NoError(t, err)
		assert.Equal(t, "Module", d.Error)
	})

	t.Run("plain error", func(t *testing.T) {
		d, err := decodeDispatch(md, 42, events(failedEvent(2)), testExtrinsicIndex)
		require.NoError(t, err)
		assert.False(t, d.Success)
		assert.Equal(t, "BadOrigin", d.Error)
	})

	t.Run("extrinsic without result", func(t *testing.T) {
		_, err := decodeDispatch(md, 42, events(), testExtrinsicIndex)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := decodeDispatch(md, 42, []byte{0x04, 0x07}, testExtrinsicIndex)
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	n := newFakeNode(t)
	c := openTest(t, n, testOptions())

	assert.Equal(t, "kreivo-parachain", c.ChainName())
	assert.Equal(t, genesisHash, c.Genesis())
	assert.Equal(t, uint32(testSpecVersion), c.Runtime().SpecVersion)
	assert.Equal(t, uint8(15), c.Metadata().Version)
	assert.Equal(t, mdt.SS58Prefix, c.SS58Prefix())
	assert.Equal(t, n.URL(), c.Endpoint())
	assert.Zero(t, n.CallCount("state_getMetadata"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestOpenFallsBackToStateGetMetadata(t *testing.T) {
	n := newFakeNode(t)
	n.Handle("state_call", func([]json.RawMessage) (interface{}, error) {
		return nil, &rpctest.Error{Code: -32000, Message: "Exported method Metadata_metadata_at_version is not found"}
	})
	c := openTest(t, n, testOptions())

	assert.Equal(t, uint8(14), c.Metadata().Version)
	assert.Equal(t, 1, n.CallCount("state_getMetadata"))
}

func TestOpenSS58Override(t *testing.T) {
	n := newFakeNode(t)
	opts := testOptions()
	opts.SS58Prefix = 42
	c := openTest(t, n, opts)
	assert.Equal(t, uint16(42), c.SS58Prefix())
}

func TestOpenUnreachable(t *testing.T) {
	opts := testOptions()
	opts.DialRetries = 2
	opts.DialTimeout = time.Second

	_, err := Open(testContext(t), "ws://127.0.0.1:1", opts, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeNetwork))
}

func TestRequestTimeout(t *testing.T) {
	n := newFakeNode(t)
	release := make(chan struct{})
	n.Handle("system_health", func([]json.RawMessage) (interface{}, error) {
		<-release
		return map[string]int{"peers": 0}, nil
	})
	c := openTest(t, n, testOptions())
	t.Cleanup(func() { close(release) })
	c.opts.RequestTimeout = 50 * time.Millisecond

	var out json.RawMessage
	err := c.call(testContext(t), &out, "system_health")
	require.Error(t, err)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeTimeout))
	assert.True(t, cerrors.IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "system_health timed out")
}

func TestOpenBadMetadata(t *testing.T) {
	n := newFakeNode(t)
	n.HandleResult("state_call", nil)
	n.HandleResult("state_getMetadata", "0x6d657461")

	_, err := Open(testContext(t), n.URL(), testOptions(), zerolog.Nop())
	require.Error(t, err)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeRPC))
}

func TestMaterializeCall(t *testing.T) {
	n := newFakeNode(t)
	c := openTest(t, n, testOptions())

	data := transferCall(12345)
	original := append([]byte(nil), data...)
	call, err := c.MaterializeCall(data)
	require.NoError(t, err)

	data[0] = 0xff
	assert.Equal(t, original, call.Bytes())
	assert.Equal(t, len(original), call.Len())
	assert.Equal(t, "Balances", call.Decoded.Pallet)
	assert.Equal(t, "transfer_keep_alive", call.Decoded.Name)
	assert.Contains(t, call.String(), "Balances::transfer_keep_alive(")

	_, err = c.MaterializeCall([]byte{0x63, 0x00})
	require.Error(t, err)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeCallDecode))

	_, err = c.MaterializeCall(append(original, 0x00))
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeCallDecode))
}

func TestSubmitAndWatchLifecycle(t *testing.T) {
	n := newFakeNode(t)
	n.setStatuses(
		"ready",
		map[string]interface{}{"broadcast": []string{"peer"}},
		map[string]string{"inBlock": bestBlock.Hex()},
		map[string]string{"retracted": bestBlock.Hex()},
		map[string]string{"finalized": finalBlock.Hex()},
	)
	c := openTest(t, n, testOptions())
	call, err := c.MaterializeCall(transferCall(1))
	require.NoError(t, err)

	ctx := testContext(t)
	stream, err := c.SubmitAndWatch(ctx, newEdSigner(), call)
	require.NoError(t, err)
	assert.Zero(t, n.CallCount(methodSubmitAndWatch), "submission waits for the first pull")

	signed, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventSigned, signed.Kind)

	broadcast, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventBroadcasted, broadcast.Kind)
	assert.Equal(t, signed.Hash, broadcast.Hash)

	best, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventBestBlock, best.Kind)
	assert.False(t, best.Retracted)
	require.NotNil(t, best.Block)
	assert.Equal(t, bestBlock, best.Block.Hash)
	assert.Equal(t, uint64(100), best.Block.Number)
	assert.True(t, best.Block.Located)
	assert.Equal(t, uint32(testExtrinsicIndex), best.Block.ExtrinsicIndex)

	retracted, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventBestBlock, retracted.Kind)
	assert.True(t, retracted.Retracted)

	final, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventFinalized, final.Kind)
	assert.Equal(t, finalBlock, final.Block.Hash)
	require.NotNil(t, final.Dispatch)
	assert.True(t, final.Dispatch.Success)

	ext, err := decodeHex(n.submittedExtrinsic())
	require.NoError(t, err)
	assert.Equal(t, blake2b256(ext), signed.Hash)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	assert.Equal(t, 1, n.CallCount(methodUnwatch))

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestSubmitAndWatchDispatchFailure(t *testing.T) {
	n := newFakeNode(t)
	n.setStatuses(map[string]string{"finalized": finalBlock.Hex()})
	n.setEvents(events(failedEvent(3, mdt.BalancesIndex, mdt.InsufficientBalanceIndex, 0, 0, 0)))
	c := openTest(t, n, testOptions())
	call, err := c.MaterializeCall(transferCall(1))
	require.NoError(t, err)

	ctx := testContext(t)
	stream, err := c.SubmitAndWatch(ctx, newEdSigner(), call)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next(ctx)
	require.NoError(t, err)
	final, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventFinalized, final.Kind)
	assert.False(t, final.Dispatch.Success)
	assert.Equal(t, "Balances::InsufficientBalance", final.Dispatch.Error)
}

func TestSubmitAndWatchTerminalStatuses(t *testing.T) {
	for _, status := range []interface{}{
		"invalid",
		"dropped",
		map[string]string{"usurped": bestBlock.Hex()},
		map[string]string{"finalityTimeout": bestBlock.Hex()},
	} {
		n := newFakeNode(t)
		n.setStatuses("ready", status)
		c := openTest(t, n, testOptions())
		call, err := c.MaterializeCall(transferCall(1))
		require.NoError(t, err)

		ctx := testContext(t)
		stream, err := c.SubmitAndWatch(ctx, newEdSigner(), call)
		require.NoError(t, err)

		_, err = stream.Next(ctx) // signed
		require.NoError(t, err)
		_, err = stream.Next(ctx) // broadcasted
		require.NoError(t, err)

		_, err = stream.Next(ctx)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr), "status %v", status)
		_ = stream.Close()
	}
}

func TestSubmitAndWatchRejectedByPool(t *testing.T) {
	n := newFakeNode(t)
	n.HandleSubscription(methodSubmitAndWatch, func([]json.RawMessage) ([]interface{}, error) {
		return nil, &rpctest.Error{Code: 1010, Message: "Invalid Transaction", Data: "Transaction has a bad signature"}
	})
	c := openTest(t, n, testOptions())
	call, err := c.MaterializeCall(transferCall(1))
	require.NoError(t, err)

	ctx := testContext(t)
	stream, err := c.SubmitAndWatch(ctx, newEdSigner(), call)
	require.NoError(t, err)

	signed, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventSigned, signed.Kind)

	_, err = stream.Next(ctx)
	require.Error(t, err)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeRPC))
	assert.Contains(t, err.Error(), "bad signature")
	require.NoError(t, stream.Close())
}

func TestSubmitAndWatchConnectionLost(t *testing.T) {
	n := newFakeNode(t)
	n.setStatuses("ready", rpctest.Drop)
	c := openTest(t, n, testOptions())
	call, err := c.MaterializeCall(transferCall(1))
	require.NoError(t, err)

	ctx := testContext(t)
	stream, err := c.SubmitAndWatch(ctx, newEdSigner(), call)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	require.NoError(t, err)
	_, err = stream.Next(ctx)
	require.NoError(t, err)
	_, err = stream.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	_ = stream.Close()
}

func TestSubmit(t *testing.T) {
	n := newFakeNode(t)
	c := openTest(t, n, testOptions())
	call, err := c.MaterializeCall(transferCall(1))
	require.NoError(t, err)

	hash, err := c.Submit(testContext(t), newEdSigner(), call)
	require.NoError(t, err)

	ext, err := decodeHex(n.submittedExtrinsic())
	require.NoError(t, err)
	assert.Equal(t, blake2b256(ext), hash)
	assert.Zero(t, n.CallCount(methodSubmitAndWatch))

	params := n.Params("system_accountNextIndex")
	require.Len(t, params, 1)
	assert.JSONEq(t, `"`+keys.EncodeAddress(newEdSigner().PublicKey(), mdt.SS58Prefix)+`"`, string(params[0][0]))
}

func TestSubmitRejected(t *testing.T) {
	n := newFakeNode(t)
	n.Handle("author_submitExtrinsic", func([]json.RawMessage) (interface{}, error) {
		return nil, &rpctest.Error{Code: 1014, Message: "Priority is too low"}
	})
	c := openTest(t, n, testOptions())
	call, err := c.MaterializeCall(transferCall(1))
	require.NoError(t, err)

	_, err = c.Submit(testContext(t), newEdSigner(), call)
	require.Error(t, err)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeRPC))
}

func TestMortalEraCheckpoint(t *testing.T) {
	n := newFakeNode(t)
	opts := testOptions()
	opts.MortalityPeriod = 64
	c := openTest(t, n, opts)

	era, checkpoint, err := c.mortalEra(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa5, 0x02}, era.Encode())
	assert.Equal(t, finalizedHead, checkpoint)

	n.HandleResult("chain_getHeader", map[string]string{"number": "0x4e21"}) // 20001
	c.opts.MortalityPeriod = 8192
	era, checkpoint, err = c.mortalEra(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(3616), era.Phase)

	params := n.Params("chain_getBlockHash")
	last := params[len(params)-1]
	assert.JSONEq(t, "20000", string(last[0]))
	assert.Equal(t, hashOf(byte(20000%256)), checkpoint)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.Tip = "250"
	cfg.DialRetries = 5

	opts, err := OptionsFromConfig(*cfg)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, opts.DialTimeout)
	assert.Equal(t, 5, opts.DialRetries)
	assert.Equal(t, 30*time.Second, opts.RequestTimeout)
	assert.Equal(t, uint64(64), opts.MortalityPeriod)
	assert.Equal(t, -1, opts.SS58Prefix)
	assert.Equal(t, "250", opts.Tip.String())

	cfg.Tip = "-1"
	_, err = OptionsFromConfig(*cfg)
	assert.True(t, cerrors.IsChainError(err, cerrors.ErrCodeConfig))
}
