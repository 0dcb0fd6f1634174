// Package metadatatest builds a small but complete runtime metadata blob
// for tests: a System pallet with events and the SS58 prefix constant, a
// Balances pallet with transfers and errors, and a Kreivo-like signed
// extension pipeline.
package metadatatest

import (
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

// Type ids of the fixture registry.
const (
	TypeU8 uint32 = iota
	TypeBytes32
	TypeAccountID
	TypeU128
	TypeCompactU128
	TypeVecU8
	TypeMultiAddress
	TypeBalancesCall
	TypeSystemCall
	TypeU32
	TypeCheckNonce
	TypeCompactU32
	TypeUnit
	TypeH256
	TypeEra
	TypeChargeTxPayment
	TypeOptionU32
	TypeMultiSignature
	TypeBytes64
	TypeBytes65
	TypeUncheckedExtrinsic
	TypeRuntimeCall
	TypeExtra
	TypeEventRecord
	TypePhase
	TypeRuntimeEvent
	TypeVecH256
	TypeSystemEvent
	TypeBalancesEvent
	TypeDispatchInfo
	TypeDispatchError
	TypeU64
	TypeModuleError
	TypeBytes4
	TypeVecEventRecord
	TypeBalancesError
	TypeU16
	TypeCheckMetadataHash
	TypeMode
	TypeOptionH256
)

const (
	SystemIndex   uint8 = 0
	BalancesIndex uint8 = 10

	// SS58Prefix is the value of the System.SS58Prefix constant.
	SS58Prefix uint16 = 2

	// indices inside the pallet call enums
	RemarkCallIndex            uint8 = 0
	TransferKeepAliveCallIndex uint8 = 3

	InsufficientBalanceIndex uint8 = 2
)

// SignedExtensions lists the extension identifiers in pipeline order.
var SignedExtensions = []string{
	"CheckNonZeroSender",
	"CheckSpecVersion",
	"CheckTxVersion",
	"CheckGenesis",
	"CheckMortality",
	"CheckNonce",
	"CheckWeight",
	"ChargeTransactionPayment",
	"CheckMetadataHash",
	"PassAuthenticate",
}

type field struct {
	name string
	ty   uint32
}

type variant struct {
	name   string
	index  uint8
	fields []field
}

type param struct {
	name string
	ty   *uint32
}

type typeSpec struct {
	path     []string
	params   []param
	kind     uint8
	fields   []field
	variants []variant
	elem     uint32
	length   uint32
	tuple    []uint32
	prim     uint8
}

func id(v uint32) *uint32 { return &v }

func composite(path []string, fields ...field) typeSpec {
	return typeSpec{path: path, kind: 0, fields: fields}
}

func enum(path []string, variants ...variant) typeSpec {
	return typeSpec{path: path, kind: 1, variants: variants}
}

func sequence(elem uint32) typeSpec { return typeSpec{kind: 2, elem: elem} }

func array(n, elem uint32) typeSpec { return typeSpec{kind: 3, elem: elem, length: n} }

func tuple(elems ...uint32) typeSpec { return typeSpec{kind: 4, tuple: elems} }

func primitive(p uint8) typeSpec { return typeSpec{kind: 5, prim: p} }

func compact(elem uint32) typeSpec { return typeSpec{kind: 6, elem: elem} }

func types() []typeSpec {
	t := make([]typeSpec, TypeOptionH256+1)
	t[TypeU8] = primitive(3)
	t[TypeBytes32] = array(32, TypeU8)
	t[TypeAccountID] = composite([]string{"sp_core", "crypto", "AccountId32"}, field{"", TypeBytes32})
	t[TypeU128] = primitive(7)
	t[TypeCompactU128] = compact(TypeU128)
	t[TypeVecU8] = sequence(TypeU8)
	t[TypeMultiAddress] = enum([]string{"sp_runtime", "multiaddress", "MultiAddress"},
		variant{"Id", 0, []field{{"", TypeAccountID}}},
		variant{"Raw", 2, []field{{"", TypeVecU8}}},
	)
	t[TypeBalancesCall] = enum([]string{"pallet_balances", "pallet", "Call"},
		variant{"transfer_keep_alive", TransferKeepAliveCallIndex, []field{{"dest", TypeMultiAddress}, {"value", TypeCompactU128}}},
	)
	t[TypeSystemCall] = enum([]string{"frame_system", "pallet", "Call"},
		variant{"remark", RemarkCallIndex, []field{{"remark", TypeVecU8}}},
	)
	t[TypeU32] = primitive(5)
	t[TypeCheckNonce] = composite([]string{"frame_system", "extensions", "check_nonce", "CheckNonce"}, field{"", TypeCompactU32})
	t[TypeCompactU32] = compact(TypeU32)
	t[TypeUnit] = tuple()
	t[TypeH256] = composite([]string{"primitive_types", "H256"}, field{"", TypeBytes32})
	eraVariants := []variant{{"Immortal", 0, nil}}
	for i := 1; i < 256; i++ {
		eraVariants = append(eraVariants, variant{"Mortal", uint8(i), []field{{"", TypeU8}}})
	}
	t[TypeEra] = enum([]string{"sp_runtime", "generic", "era", "Era"}, eraVariants...)
	t[TypeChargeTxPayment] = composite([]string{"pallet_transaction_payment", "ChargeTransactionPayment"}, field{"", TypeCompactU128})
	t[TypeOptionU32] = enum([]string{"Option"},
		variant{"None", 0, nil},
		variant{"Some", 1, []field{{"", TypeU32}}},
	)
	t[TypeOptionU32].params = []param{{"T", id(TypeU32)}}
	t[TypeMultiSignature] = enum([]string{"sp_runtime", "MultiSignature"},
		variant{"Ed25519", 0, []field{{"", TypeBytes64}}},
		variant{"Sr25519", 1, []field{{"", TypeBytes64}}},
		variant{"Ecdsa", 2, []field{{"", TypeBytes65}}},
	)
	t[TypeBytes64] = array(64, TypeU8)
	t[TypeBytes65] = array(65, TypeU8)
	t[TypeUncheckedExtrinsic] = composite([]string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"}, field{"", TypeVecU8})
	t[TypeUncheckedExtrinsic].params = []param{
		{"Address", id(TypeMultiAddress)},
		{"Call", id(TypeRuntimeCall)},
		{"Signature", id(TypeMultiSignature)},
		{"Extra", id(TypeExtra)},
	}
	t[TypeRuntimeCall] = enum([]string{"kreivo_runtime", "RuntimeCall"},
		variant{"System", SystemIndex, []field{{"", TypeSystemCall}}},
		variant{"Balances", BalancesIndex, []field{{"", TypeBalancesCall}}},
	)
	t[TypeExtra] = tuple(TypeUnit, TypeUnit, TypeUnit, TypeUnit, TypeEra, TypeCheckNonce, TypeUnit, TypeChargeTxPayment, TypeCheckMetadataHash, TypeOptionU32)
	t[TypeEventRecord] = composite([]string{"frame_system", "EventRecord"},
		field{"phase", TypePhase}, field{"event", TypeRuntimeEvent}, field{"topics", TypeVecH256})
	t[TypePhase] = enum([]string{"frame_system", "Phase"},
		variant{"ApplyExtrinsic", 0, []field{{"", TypeU32}}},
		variant{"Finalization", 1, nil},
		variant{"Initialization", 2, nil},
	)
	t[TypeRuntimeEvent] = enum([]string{"kreivo_runtime", "RuntimeEvent"},
		variant{"System", SystemIndex, []field{{"", TypeSystemEvent}}},
		variant{"Balances", BalancesIndex, []field{{"", TypeBalancesEvent}}},
	)
	t[TypeVecH256] = sequence(TypeH256)
	t[TypeSystemEvent] = enum([]string{"frame_system", "pallet", "Event"},
		variant{"ExtrinsicSuccess", 0, []field{{"dispatch_info", TypeDispatchInfo}}},
		variant{"ExtrinsicFailed", 1, []field{{"dispatch_error", TypeDispatchError}, {"dispatch_info", TypeDispatchInfo}}},
	)
	t[TypeBalancesEvent] = enum([]string{"pallet_balances", "pallet", "Event"},
		variant{"Transfer", 2, []field{{"from", TypeAccountID}, {"to", TypeAccountID}, {"amount", TypeU128}}},
	)
	t[TypeDispatchInfo] = composite([]string{"frame_support", "dispatch", "DispatchInfo"}, field{"weight", TypeU64})
	t[TypeDispatchError] = enum([]string{"sp_runtime", "DispatchError"},
		variant{"Other", 0, nil},
		variant{"CannotLookup", 1, nil},
		variant{"BadOrigin", 2, nil},
		variant{"Module", 3, []field{{"", TypeModuleError}}},
	)
	t[TypeU64] = primitive(6)
	t[TypeModuleError] = composite([]string{"sp_runtime", "ModuleError"}, field{"index", TypeU8}, field{"error", TypeBytes4})
	t[TypeBytes4] = array(4, TypeU8)
	t[TypeVecEventRecord] = sequence(TypeEventRecord)
	t[TypeBalancesError] = enum([]string{"pallet_balances", "pallet", "Error"},
		variant{"VestingBalance", 0, nil},
		variant{"LiquidityRestrictions", 1, nil},
		variant{"InsufficientBalance", InsufficientBalanceIndex, nil},
	)
	t[TypeU16] = primitive(4)
	t[TypeCheckMetadataHash] = composite([]string{"frame_metadata_hash_extension", "CheckMetadataHash"}, field{"mode", TypeMode})
	t[TypeMode] = enum([]string{"frame_metadata_hash_extension", "Mode"},
		variant{"Disabled", 0, nil},
		variant{"Enabled", 1, nil},
	)
	t[TypeOptionH256] = enum([]string{"Option"},
		variant{"None", 0, nil},
		variant{"Some", 1, []field{{"", TypeH256}}},
	)
	return t
}

type extension struct {
	name       string
	ty         uint32
	additional uint32
}

func extensions() []extension {
	return []extension{
		{"CheckNonZeroSender", TypeUnit, TypeUnit},
		{"CheckSpecVersion", TypeUnit, TypeU32},
		{"CheckTxVersion", TypeUnit, TypeU32},
		{"CheckGenesis", TypeUnit, TypeH256},
		{"CheckMortality", TypeEra, TypeH256},
		{"CheckNonce", TypeCheckNonce, TypeUnit},
		{"CheckWeight", TypeUnit, TypeUnit},
		{"ChargeTransactionPayment", TypeChargeTxPayment, TypeUnit},
		{"CheckMetadataHash", TypeCheckMetadataHash, TypeOptionH256},
		{"PassAuthenticate", TypeOptionU32, TypeUnit},
	}
}

type builder struct {
	e scale.Encoder
}

func (b *builder) str(s string) { b.e.ByteSlice([]byte(s)) }

func (b *builder) strs(ss ...string) {
	b.e.Compact(uint64(len(ss)))
	for _, s := range ss {
		b.str(s)
	}
}

func (b *builder) ty(v uint32) { b.e.Compact(uint64(v)) }

func (b *builder) none() { b.e.PushByte(0) }

func (b *builder) someTy(v uint32) {
	b.e.PushByte(1)
	b.ty(v)
}

func (b *builder) fields(fs []field) {
	b.e.Compact(uint64(len(fs)))
	for _, f := range fs {
		if f.name == "" {
			b.none()
		} else {
			b.e.PushByte(1)
			b.str(f.name)
		}
		b.ty(f.ty)
		b.none() // type name
		b.strs() // docs
	}
}

func (b *builder) typeSpec(i int, t typeSpec) {
	b.ty(uint32(i))
	b.strs(t.path...)
	b.e.Compact(uint64(len(t.params)))
	for _, p := range t.params {
		b.str(p.name)
		if p.ty == nil {
			b.none()
		} else {
			b.someTy(*p.ty)
		}
	}
	b.e.PushByte(t.kind)
	switch t.kind {
	case 0:
		b.fields(t.fields)
	case 1:
		b.e.Compact(uint64(len(t.variants)))
		for _, v := range t.variants {
			b.str(v.name)
			b.fields(v.fields)
			b.e.PushByte(v.index)
			b.strs()
		}
	case 2, 6:
		b.ty(t.elem)
	case 3:
		b.e.U32(t.length)
		b.ty(t.elem)
	case 4:
		b.e.Compact(uint64(len(t.tuple)))
		for _, e := range t.tuple {
			b.ty(e)
		}
	case 5:
		b.e.PushByte(t.prim)
	}
	b.strs() // docs
}

// Encode returns "meta"-prefixed metadata of the given version (14 or 15).
func Encode(version uint8) []byte {
	b := &builder{}
	b.e.Write([]byte("meta"))
	b.e.PushByte(version)

	specs := types()
	b.e.Compact(uint64(len(specs)))
	for i, t := range specs {
		b.typeSpec(i, t)
	}

	// pallets
	b.e.Compact(2)

	b.str("System")
	b.e.PushByte(1) // storage
	b.str("System")
	b.e.Compact(1)
	b.str("Events")
	b.e.PushByte(1) // default modifier
	b.e.PushByte(0) // plain
	b.ty(TypeVecEventRecord)
	b.e.ByteSlice([]byte{0})
	b.strs(" Events deposited for the current block.")
	b.someTy(TypeSystemCall)
	b.someTy(TypeSystemEvent)
	b.e.Compact(1)
	b.str("SS58Prefix")
	b.ty(TypeU16)
	b.e.ByteSlice([]byte{byte(SS58Prefix), byte(SS58Prefix >> 8)})
	b.strs()
	b.none() // errors
	b.e.PushByte(SystemIndex)
	if version == 15 {
		b.strs("System pallet")
	}

	b.str("Balances")
	b.none() // storage
	b.someTy(TypeBalancesCall)
	b.someTy(TypeBalancesEvent)
	b.e.Compact(0)
	b.someTy(TypeBalancesError)
	b.e.PushByte(BalancesIndex)
	if version == 15 {
		b.strs()
	}

	// extrinsic
	if version == 14 {
		b.ty(TypeUncheckedExtrinsic)
		b.e.PushByte(4)
	} else {
		b.e.PushByte(4)
		b.ty(TypeMultiAddress)
		b.ty(TypeRuntimeCall)
		b.ty(TypeMultiSignature)
		b.ty(TypeExtra)
	}
	exts := extensions()
	b.e.Compact(uint64(len(exts)))
	for _, x := range exts {
		b.str(x.name)
		b.ty(x.ty)
		b.ty(x.additional)
	}

	b.ty(TypeUnit) // runtime type

	if version == 15 {
		b.e.Compact(1)
		b.str("Core")
		b.e.Compact(1)
		b.str("version")
		b.e.Compact(0)
		b.ty(TypeU32)
		b.strs()
		b.strs()
		b.ty(TypeRuntimeCall)
		b.ty(TypeRuntimeEvent)
		b.ty(TypeDispatchError)
		b.e.Compact(0) // custom
	}
	return b.e.Bytes()
}
