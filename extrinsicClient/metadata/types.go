package metadata

import (
	"strings"

	"github.com/pkg/errors"
)

// DefKind enumerates the shapes of a portable type definition.
type DefKind uint8

const (
	DefComposite DefKind = iota
	DefVariant
	DefSequence
	DefArray
	DefTuple
	DefPrimitive
	DefCompact
	DefBitSequence
)

// Primitive enumerates the primitive types of the portable registry.
type Primitive uint8

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

var primitiveWidths = map[Primitive]int{
	PrimU8: 1, PrimU16: 2, PrimU32: 4, PrimU64: 8, PrimU128: 16, PrimU256: 32,
	PrimI8: 1, PrimI16: 2, PrimI32: 4, PrimI64: 8, PrimI128: 16, PrimI256: 32,
}

// Width returns the encoded size of fixed-width integer primitives and 0 otherwise.
func (p Primitive) Width() int { return primitiveWidths[p] }

// Signed reports whether p is a signed integer.
func (p Primitive) Signed() bool { return p >= PrimI8 && p <= PrimI256 }

// Field is a named or positional member of a composite or variant.
type Field struct {
	Name     string
	Type     uint32
	TypeName string
	Docs     []string
}

// Variant is one case of an enum type.
type Variant struct {
	Name   string
	Fields []Field
	Index  uint8
	Docs   []string
}

// TypeParam is a generic parameter of a type.
type TypeParam struct {
	Name string
	Type *uint32
}

// TypeDef describes the shape of a type. Only the members relevant to Kind are set.
type TypeDef struct {
	Kind      DefKind
	Fields    []Field
	Variants  []Variant
	Elem      uint32
	Len       uint32
	Tuple     []uint32
	Primitive Primitive
	BitStore  uint32
	BitOrder  uint32
}

// Type is an entry of the portable type registry.
type Type struct {
	ID     uint32
	Path   []string
	Params []TypeParam
	Def    TypeDef
	Docs   []string
}

// PathString joins the type path with "::".
func (t *Type) PathString() string { return strings.Join(t.Path, "::") }

// Ident returns the last path segment, or "" for anonymous types.
func (t *Type) Ident() string {
	if len(t.Path) == 0 {
		return ""
	}
	return t.Path[len(t.Path)-1]
}

// VariantByIndex returns the variant with the given encoded index.
func (t *Type) VariantByIndex(index uint8) (*Variant, bool) {
	for i := range t.Def.Variants {
		if t.Def.Variants[i].Index == index {
			return &t.Def.Variants[i], true
		}
	}
	return nil, false
}

// VariantByName returns the variant with the given name.
func (t *Type) VariantByName(name string) (*Variant, bool) {
	for i := range t.Def.Variants {
		if t.Def.Variants[i].Name == name {
			return &t.Def.Variants[i], true
		}
	}
	return nil, false
}

// Param returns the type bound to the named generic parameter.
func (t *Type) Param(name string) (uint32, bool) {
	for _, p := range t.Params {
		if p.Name == name && p.Type != nil {
			return *p.Type, true
		}
	}
	return 0, false
}

// IsOption reports whether t is core::option::Option<T>.
func (t *Type) IsOption() bool {
	return t.Def.Kind == DefVariant && t.Ident() == "Option"
}

// Registry is the portable type registry of a runtime.
type Registry struct {
	types []*Type
}

// NewRegistry builds a registry from types indexed by their ids.
func NewRegistry(types []*Type) (*Registry, error) {
	byID := make([]*Type, len(types))
	for _, t := range types {
		if int(t.ID) >= len(types) || byID[t.ID] != nil {
			return nil, errors.Errorf("type ids are not a dense sequence (id %d)", t.ID)
		}
		byID[t.ID] = t
	}
	return &Registry{types: byID}, nil
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }

// Lookup returns the type with the given id.
func (r *Registry) Lookup(id uint32) (*Type, error) {
	if int(id) >= len(r.types) {
		return nil, errors.Errorf("unknown type id %d", id)
	}
	return r.types[id], nil
}

// IsEmpty reports whether values of the type encode to zero bytes.
func (r *Registry) IsEmpty(id uint32) bool {
	return r.isEmpty(id, 0)
}

func (r *Registry) isEmpty(id uint32, depth int) bool {
	if depth > maxDepth {
		return false
	}
	t, err := r.Lookup(id)
	if err != nil {
		return false
	}
	switch t.Def.Kind {
	case DefComposite:
		for _, f := range t.Def.Fields {
			if !r.isEmpty(f.Type, depth+1) {
				return false
			}
		}
		return true
	case DefTuple:
		for _, e := range t.Def.Tuple {
			if !r.isEmpty(e, depth+1) {
				return false
			}
		}
		return true
	case DefArray:
		return t.Def.Len == 0 || r.isEmpty(t.Def.Elem, depth+1)
	default:
		return false
	}
}

// Pallet is the metadata of one runtime module.
type Pallet struct {
	Name      string
	Index     uint8
	Storage   *Storage
	Calls     *uint32
	Events    *uint32
	Errors    *uint32
	Constants []Constant
	Docs      []string
}

// Storage lists the storage entries of a pallet.
type Storage struct {
	Prefix  string
	Entries []StorageEntry
}

// StorageEntry describes one storage item.
type StorageEntry struct {
	Name      string
	Optional  bool
	Plain     bool
	Hashers   []uint8
	KeyType   uint32
	ValueType uint32
	Default   []byte
	Docs      []string
}

// Constant is a pallet constant with its encoded value.
type Constant struct {
	Name  string
	Type  uint32
	Value []byte
	Docs  []string
}

// SignedExtension is one entry of the transaction extension pipeline.
type SignedExtension struct {
	Identifier       string
	Type             uint32
	AdditionalSigned uint32
}

// Extrinsic describes the extrinsic format of the runtime.
type Extrinsic struct {
	Version          uint8
	Type             uint32
	AddressType      uint32
	CallType         uint32
	SignatureType    uint32
	ExtraType        uint32
	HasTypeParams    bool
	SignedExtensions []SignedExtension
}

// RuntimeAPI lists a runtime API and its method names.
type RuntimeAPI struct {
	Name    string
	Methods []string
}

// Metadata is the decoded runtime metadata.
type Metadata struct {
	Version     uint8
	Types       *Registry
	Pallets     []Pallet
	Extrinsic   Extrinsic
	RuntimeType uint32
	APIs        []RuntimeAPI
}

// PalletByIndex returns the pallet with the given call/event index.
func (m *Metadata) PalletByIndex(index uint8) (*Pallet, bool) {
	for i := range m.Pallets {
		if m.Pallets[i].Index == index {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

// PalletByName returns the named pallet.
func (m *Metadata) PalletByName(name string) (*Pallet, bool) {
	for i := range m.Pallets {
		if m.Pallets[i].Name == name {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

// Constant returns a pallet constant.
func (m *Metadata) Constant(pallet, name string) (*Constant, bool) {
	p, ok := m.PalletByName(pallet)
	if !ok {
		return nil, false
	}
	for i := range p.Constants {
		if p.Constants[i].Name == name {
			return &p.Constants[i], true
		}
	}
	return nil, false
}

// StorageEntry returns a pallet storage entry.
func (m *Metadata) StorageEntry(pallet, name string) (*StorageEntry, bool) {
	p, ok := m.PalletByName(pallet)
	if !ok || p.Storage == nil {
		return nil, false
	}
	for i := range p.Storage.Entries {
		if p.Storage.Entries[i].Name == name {
			return &p.Storage.Entries[i], true
		}
	}
	return nil, false
}

// ModuleError resolves a module dispatch error to its pallet and variant.
func (m *Metadata) ModuleError(palletIndex, errorIndex uint8) (*Pallet, *Variant, bool) {
	p, ok := m.PalletByIndex(palletIndex)
	if !ok || p.Errors == nil {
		return nil, nil, false
	}
	t, err := m.Types.Lookup(*p.Errors)
	if err != nil {
		return p, nil, false
	}
	v, ok := t.VariantByIndex(errorIndex)
	return p, v, ok
}
