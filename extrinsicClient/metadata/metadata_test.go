package metadata

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	mdt "github.com/virto-network/subskribinto/extrinsicClient/metadata/metadatatest"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

func mustDecode(t *testing.T, version uint8) *Metadata {
	t.Helper()
	md, err := Decode(mdt.Encode(version))
	require.NoError(t, err)
	return md
}

func transferCall(dest []byte, amount uint64) []byte {
	call := []byte{mdt.BalancesIndex, mdt.TransferKeepAliveCallIndex, 0x00}
	call = append(call, dest...)
	return append(call, scale.EncodeCompact(amount)...)
}

func TestDecodeV14(t *testing.T) {
	md := mustDecode(t, 14)

	assert.Equal(t, uint8(14), md.Version)
	require.Len(t, md.Pallets, 2)

	system, ok := md.PalletByName("System")
	require.True(t, ok)
	assert.Equal(t, mdt.SystemIndex, system.Index)

	balances, ok := md.PalletByIndex(mdt.BalancesIndex)
	require.True(t, ok)
	assert.Equal(t, "Balances", balances.Name)
	assert.Nil(t, balances.Storage)

	c, ok := md.Constant("System", "SS58Prefix")
	require.True(t, ok)
	assert.Equal(t, []byte{byte(mdt.SS58Prefix), 0}, c.Value)

	entry, ok := md.StorageEntry("System", "Events")
	require.True(t, ok)
	assert.True(t, entry.Plain)
	assert.False(t, entry.Optional)
	assert.Equal(t, mdt.TypeVecEventRecord, entry.ValueType)

	ex := md.Extrinsic
	assert.Equal(t, uint8(4), ex.Version)
	assert.True(t, ex.HasTypeParams)
	assert.Equal(t, mdt.TypeMultiAddress, ex.AddressType)
	assert.Equal(t, mdt.TypeMultiSignature, ex.SignatureType)
	assert.Equal(t, mdt.TypeRuntimeCall, ex.CallType)
	require.Len(t, ex.SignedExtensions, len(mdt.SignedExtensions))
	for i, name := range mdt.SignedExtensions {
		assert.Equal(t, name, ex.SignedExtensions[i].Identifier)
	}
}

func TestDecodeV15(t *testing.T) {
	md := mustDecode(t, 15)

	assert.Equal(t, uint8(15), md.Version)
	assert.True(t, md.Extrinsic.HasTypeParams)
	assert.Equal(t, mdt.TypeExtra, md.Extrinsic.ExtraType)
	require.Len(t, md.APIs, 1)
	assert.Equal(t, "Core", md.APIs[0].Name)
	assert.Equal(t, []string{"version"}, md.APIs[0].Methods)

	system, ok := md.PalletByName("System")
	require.True(t, ok)
	assert.Equal(t, []string{"System pallet"}, system.Docs)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := Decode([]byte("atem\x0e"))
	assert.Error(t, err)

	v13 := append([]byte("meta"), 13)
	_, err = Decode(v13)
	assert.Error(t, err)

	full := mdt.Encode(14)
	_, err = Decode(full[:len(full)/2])
	assert.Error(t, err)
}

func TestDecodeCall(t *testing.T) {
	md := mustDecode(t, 14)
	dest := bytes.Repeat([]byte{0xd4}, 32)

	call, err := md.DecodeCall(transferCall(dest, 12345), mdt.SS58Prefix)
	require.NoError(t, err)
	assert.Equal(t, "Balances", call.Pallet)
	assert.Equal(t, "transfer_keep_alive", call.Name)

	args, err := call.ArgsJSON()
	require.NoError(t, err)
	expected := `{"dest":{"type":"Id","value":"` + keys.EncodeAddress(dest, mdt.SS58Prefix) + `"},"value":12345}`
	assert.Equal(t, expected, args)
	assert.Equal(t, "Balances::transfer_keep_alive("+expected[1:len(expected)-1]+")", call.String())

	raw, err := json.Marshal(call)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pallet":"Balances","call":"transfer_keep_alive","args":`+expected+`}`, string(raw))
}

func TestDecodeRemark(t *testing.T) {
	md := mustDecode(t, 15)
	data := append([]byte{mdt.SystemIndex, mdt.RemarkCallIndex}, scale.PrefixLength([]byte{1, 2, 3})...)

	call, err := md.DecodeCall(data, 42)
	require.NoError(t, err)
	args, err := call.ArgsJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"remark":"0x010203"}`, args)
}

func TestDecodeCallErrors(t *testing.T) {
	md := mustDecode(t, 14)
	valid := transferCall(make([]byte, 32), 1)

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{mdt.BalancesIndex}},
		{"unknown pallet", []byte{99, 0}},
		{"unknown call", []byte{mdt.BalancesIndex, 42}},
		{"truncated arguments", valid[:10]},
		{"trailing bytes", append(append([]byte{}, valid...), 0xff)},
		{"unknown address variant", append([]byte{mdt.BalancesIndex, mdt.TransferKeepAliveCallIndex, 0x05}, valid[3:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := md.DecodeCall(tt.data, 42)
			assert.Error(t, err)
		})
	}
}

func TestModuleError(t *testing.T) {
	md := mustDecode(t, 14)

	pallet, variant, ok := md.ModuleError(mdt.BalancesIndex, mdt.InsufficientBalanceIndex)
	require.True(t, ok)
	assert.Equal(t, "Balances", pallet.Name)
	assert.Equal(t, "InsufficientBalance", variant.Name)

	_, _, ok = md.ModuleError(mdt.SystemIndex, 0)
	assert.False(t, ok)
}

func TestRegistryIsEmpty(t *testing.T) {
	md := mustDecode(t, 14)
	assert.True(t, md.Types.IsEmpty(mdt.TypeUnit))
	assert.False(t, md.Types.IsEmpty(mdt.TypeCheckNonce))
	assert.False(t, md.Types.IsEmpty(mdt.TypeOptionU32))

	opt, err := md.Types.Lookup(mdt.TypeOptionU32)
	require.NoError(t, err)
	assert.True(t, opt.IsOption())
}

func TestValueDecoding(t *testing.T) {
	md := mustDecode(t, 14)
	vd := NewValueDecoder(md.Types, 42)

	var e scale.Encoder
	e.Compact(1)
	e.PushByte(0) // ApplyExtrinsic
	e.U32(2)
	e.PushByte(mdt.SystemIndex)
	e.PushByte(1) // ExtrinsicFailed
	e.PushByte(3) // Module
	e.PushByte(mdt.BalancesIndex)
	e.Write([]byte{mdt.InsufficientBalanceIndex, 0, 0, 0})
	e.U64(1000)
	e.Compact(0) // topics

	d := scale.NewDecoder(e.Bytes())
	v, err := vd.Decode(mdt.TypeVecEventRecord, d)
	require.NoError(t, err)
	assert.Zero(t, d.Remaining())
	require.Len(t, v.Items, 1)

	record := v.Items[0]
	phase, ok := record.Field("phase")
	require.True(t, ok)
	assert.Equal(t, "ApplyExtrinsic", phase.Variant)
	idx, ok := phase.Fields[0].Value.Uint()
	require.True(t, ok)
	assert.Equal(t, uint64(2), idx)

	event, ok := record.Field("event")
	require.True(t, ok)
	assert.Equal(t, "System", event.Variant)
	inner, ok := event.At(0)
	require.True(t, ok)
	assert.Equal(t, "ExtrinsicFailed", inner.Variant)

	raw, err := json.Marshal(inner)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ExtrinsicFailed","value":{"dispatch_error":{"type":"Module","value":{"index":10,"error":"0x02000000"}},"dispatch_info":{"weight":1000}}}`, string(raw))
}
