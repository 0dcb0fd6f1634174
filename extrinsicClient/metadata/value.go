package metadata

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

// maxDepth bounds recursion through self-referential types.
const maxDepth = 128

// ValueKind tells which members of a Value are set.
type ValueKind uint8

const (
	KindComposite ValueKind = iota
	KindVariant
	KindSequence
	KindBytes
	KindAccount
	KindPrimitive
	KindBitSequence
)

// NamedValue is a field of a composite or variant. Name is empty for positional fields.
type NamedValue struct {
	Name  string
	Value Value
}

// Value is a dynamically decoded SCALE value.
type Value struct {
	Kind         ValueKind
	TypeID       uint32
	Fields       []NamedValue
	Variant      string
	VariantIndex uint8
	Items        []Value
	Bytes        []byte
	Primitive    interface{} // bool, string or *big.Int
	Address      string
}

// Field returns the named field of a composite or variant value.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// At returns the i-th field or item, whichever the value carries.
func (v Value) At(i int) (Value, bool) {
	switch {
	case i < 0:
		return Value{}, false
	case len(v.Fields) > 0:
		if i < len(v.Fields) {
			return v.Fields[i].Value, true
		}
	case i < len(v.Items):
		return v.Items[i], true
	}
	return Value{}, false
}

// Uint returns the value as an unsigned integer, unwrapping single-field composites.
func (v Value) Uint() (uint64, bool) {
	switch v.Kind {
	case KindPrimitive:
		if n, ok := v.Primitive.(*big.Int); ok && n.IsUint64() {
			return n.Uint64(), true
		}
	case KindComposite:
		if len(v.Fields) == 1 {
			return v.Fields[0].Value.Uint()
		}
	case KindBytes:
		if len(v.Bytes) == 1 {
			return uint64(v.Bytes[0]), true
		}
	}
	return 0, false
}

// ValueDecoder decodes SCALE bytes against a type registry.
type ValueDecoder struct {
	types  *Registry
	prefix uint16
}

// NewValueDecoder returns a decoder rendering account ids with the given SS58 prefix.
func NewValueDecoder(types *Registry, ss58Prefix uint16) *ValueDecoder {
	return &ValueDecoder{types: types, prefix: ss58Prefix}
}

// Decode reads one value of the given type.
func (vd *ValueDecoder) Decode(id uint32, d *scale.Decoder) (Value, error) {
	return vd.decode(id, d, 0)
}

func (vd *ValueDecoder) decode(id uint32, d *scale.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, errors.New("type nesting too deep")
	}
	t, err := vd.types.Lookup(id)
	if err != nil {
		return Value{}, err
	}

	switch t.Def.Kind {
	case DefComposite:
		if t.Ident() == "AccountId32" {
			return vd.account(t, d)
		}
		fields, err := vd.fields(t.Def.Fields, d, depth)
		if err != nil {
			return Value{}, errors.Wrap(err, t.PathString())
		}
		return Value{Kind: KindComposite, TypeID: id, Fields: fields}, nil

	case DefVariant:
		index, err := d.U8()
		if err != nil {
			return Value{}, err
		}
		variant, ok := t.VariantByIndex(index)
		if !ok {
			return Value{}, errors.Errorf("%s has no variant with index %d", t.PathString(), index)
		}
		fields, err := vd.fields(variant.Fields, d, depth)
		if err != nil {
			return Value{}, errors.Wrapf(err, "%s::%s", t.PathString(), variant.Name)
		}
		return Value{Kind: KindVariant, TypeID: id, Variant: variant.Name, VariantIndex: index, Fields: fields}, nil

	case DefSequence:
		n, err := d.Length()
		if err != nil {
			return Value{}, err
		}
		return vd.items(id, t.Def.Elem, n, d, depth)

	case DefArray:
		return vd.items(id, t.Def.Elem, int(t.Def.Len), d, depth)

	case DefTuple:
		items := make([]Value, 0, len(t.Def.Tuple))
		for _, elem := range t.Def.Tuple {
			item, err := vd.decode(elem, d, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: KindSequence, TypeID: id, Items: items}, nil

	case DefPrimitive:
		prim, err := decodePrimitive(t.Def.Primitive, d)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindPrimitive, TypeID: id, Primitive: prim}, nil

	case DefCompact:
		n, err := d.Compact()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindPrimitive, TypeID: id, Primitive: n}, nil

	case DefBitSequence:
		return vd.bits(id, t, d)

	default:
		return Value{}, errors.Errorf("unsupported type definition %d", t.Def.Kind)
	}
}

func (vd *ValueDecoder) fields(defs []Field, d *scale.Decoder, depth int) ([]NamedValue, error) {
	out := make([]NamedValue, 0, len(defs))
	for _, f := range defs {
		v, err := vd.decode(f.Type, d, depth+1)
		if err != nil {
			if f.Name != "" {
				return nil, errors.Wrap(err, f.Name)
			}
			return nil, err
		}
		out = append(out, NamedValue{Name: f.Name, Value: v})
	}
	return out, nil
}

func (vd *ValueDecoder) items(id, elem uint32, n int, d *scale.Decoder, depth int) (Value, error) {
	et, err := vd.types.Lookup(elem)
	if err != nil {
		return Value{}, err
	}
	if et.Def.Kind == DefPrimitive && et.Def.Primitive == PrimU8 {
		b, err := d.ReadBytes(n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBytes, TypeID: id, Bytes: append([]byte(nil), b...)}, nil
	}

	items := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		item, err := vd.decode(elem, d, depth+1)
		if err != nil {
			return Value{}, errors.Wrapf(err, "item %d", i)
		}
		items = append(items, item)
	}
	return Value{Kind: KindSequence, TypeID: id, Items: items}, nil
}

func (vd *ValueDecoder) account(t *Type, d *scale.Decoder) (Value, error) {
	b, err := d.ReadBytes(32)
	if err != nil {
		return Value{}, err
	}
	account := append([]byte(nil), b...)
	return Value{Kind: KindAccount, TypeID: t.ID, Bytes: account, Address: keys.EncodeAddress(account, vd.prefix)}, nil
}

func (vd *ValueDecoder) bits(id uint32, t *Type, d *scale.Decoder) (Value, error) {
	store, err := vd.types.Lookup(t.Def.BitStore)
	if err != nil {
		return Value{}, err
	}
	width := store.Def.Primitive.Width()
	if store.Def.Kind != DefPrimitive || width == 0 || store.Def.Primitive.Signed() {
		return Value{}, errors.Errorf("unsupported bit store type %s", store.PathString())
	}
	nbits, err := d.CompactU64()
	if err != nil {
		return Value{}, err
	}
	storeBits := uint64(width * 8)
	words := (nbits + storeBits - 1) / storeBits
	if words > uint64(d.Remaining()) {
		return Value{}, scale.ErrUnexpectedEOF
	}
	b, err := d.ReadBytes(int(words) * width)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindBitSequence, TypeID: id, Bytes: append([]byte(nil), b...)}, nil
}

func decodePrimitive(p Primitive, d *scale.Decoder) (interface{}, error) {
	switch p {
	case PrimBool:
		return d.Bool()
	case PrimChar:
		r, err := d.U32()
		if err != nil {
			return nil, err
		}
		return string(rune(r)), nil
	case PrimStr:
		return d.String()
	default:
		width := p.Width()
		if width == 0 {
			return nil, errors.Errorf("unknown primitive %d", p)
		}
		if p.Signed() {
			return d.Int(width)
		}
		return d.Uint(width)
	}
}

// MarshalJSON renders the value for humans: integers exactly, byte strings as
// hex, account ids as SS58, variants as {"type": name, "value": fields}.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindComposite:
		return writeFields(buf, v.Fields)
	case KindVariant:
		buf.WriteString(`{"type":`)
		name, _ := json.Marshal(v.Variant)
		buf.Write(name)
		if len(v.Fields) > 0 {
			buf.WriteString(`,"value":`)
			if err := writeFields(buf, v.Fields); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindBytes, KindBitSequence:
		buf.WriteString(`"0x` + hex.EncodeToString(v.Bytes) + `"`)
		return nil
	case KindAccount:
		buf.WriteString(`"` + v.Address + `"`)
		return nil
	case KindPrimitive:
		switch p := v.Primitive.(type) {
		case *big.Int:
			buf.WriteString(p.String())
			return nil
		default:
			b, err := json.Marshal(p)
			if err != nil {
				return err
			}
			buf.Write(b)
			return nil
		}
	default:
		return errors.Errorf("unknown value kind %d", v.Kind)
	}
}

// writeFields renders named fields as an ordered object, a single positional
// field as its inner value and several positional fields as an array.
func writeFields(buf *bytes.Buffer, fields []NamedValue) error {
	switch {
	case len(fields) == 0:
		buf.WriteString("null")
		return nil
	case fields[0].Name == "":
		if len(fields) == 1 {
			return fields[0].Value.writeJSON(buf)
		}
		buf.WriteByte('[')
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		buf.WriteByte('{')
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(f.Name)
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	}
}
