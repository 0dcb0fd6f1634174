package metadata

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

// magic prefix of encoded runtime metadata ("meta")
var magic = []byte{0x6d, 0x65, 0x74, 0x61}

// Decode parses prefixed runtime metadata as returned by state_getMetadata.
// Versions 14 and 15 are supported.
func Decode(data []byte) (*Metadata, error) {
	if len(data) < 5 || !bytes.Equal(data[:4], magic) {
		return nil, errors.New("metadata is missing the magic prefix")
	}
	version := data[4]
	if version != 14 && version != 15 {
		return nil, errors.Errorf("unsupported metadata version %d", version)
	}

	p := &parser{d: scale.NewDecoder(data[5:]), version: version}
	md, err := p.metadata()
	if err != nil {
		return nil, errors.Wrapf(err, "decode metadata v%d at offset %d", version, p.d.Offset()+5)
	}
	return md, nil
}

type parser struct {
	d       *scale.Decoder
	version uint8
}

func (p *parser) metadata() (*Metadata, error) {
	types, err := p.registry()
	if err != nil {
		return nil, err
	}
	md := &Metadata{Version: p.version, Types: types}

	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		pallet, err := p.pallet()
		if err != nil {
			return nil, errors.Wrapf(err, "pallet %d", i)
		}
		md.Pallets = append(md.Pallets, pallet)
	}

	if md.Extrinsic, err = p.extrinsic(); err != nil {
		return nil, errors.Wrap(err, "extrinsic")
	}
	if md.RuntimeType, err = p.typeID(); err != nil {
		return nil, err
	}

	if p.version == 15 {
		if md.APIs, err = p.apis(); err != nil {
			return nil, errors.Wrap(err, "runtime apis")
		}
		// outer enums: call, event, error
		for i := 0; i < 3; i++ {
			if _, err := p.typeID(); err != nil {
				return nil, err
			}
		}
		if err := p.custom(); err != nil {
			return nil, errors.Wrap(err, "custom")
		}
	} else if err := p.extrinsicParamsFromType(md); err != nil {
		return nil, err
	}
	return md, nil
}

func (p *parser) typeID() (uint32, error) {
	v, err := p.d.CompactU64()
	if err != nil {
		return 0, err
	}
	if v > uint64(^uint32(0)) {
		return 0, errors.Errorf("type id %d overflows u32", v)
	}
	return uint32(v), nil
}

func (p *parser) optionalString() (string, error) {
	some, err := p.d.Option()
	if err != nil || !some {
		return "", err
	}
	return p.d.String()
}

func (p *parser) optionalTypeID() (*uint32, error) {
	some, err := p.d.Option()
	if err != nil || !some {
		return nil, err
	}
	id, err := p.typeID()
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (p *parser) registry() (*Registry, error) {
	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	types := make([]*Type, 0, n)
	for i := 0; i < n; i++ {
		t, err := p.portableType()
		if err != nil {
			return nil, errors.Wrapf(err, "type %d", i)
		}
		types = append(types, t)
	}
	return NewRegistry(types)
}

func (p *parser) portableType() (*Type, error) {
	id, err := p.typeID()
	if err != nil {
		return nil, err
	}
	t := &Type{ID: id}
	if t.Path, err = p.d.Strings(); err != nil {
		return nil, err
	}

	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		name, err := p.d.String()
		if err != nil {
			return nil, err
		}
		ty, err := p.optionalTypeID()
		if err != nil {
			return nil, err
		}
		t.Params = append(t.Params, TypeParam{Name: name, Type: ty})
	}

	if t.Def, err = p.typeDef(); err != nil {
		return nil, err
	}
	if t.Docs, err = p.d.Strings(); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) typeDef() (TypeDef, error) {
	kind, err := p.d.U8()
	if err != nil {
		return TypeDef{}, err
	}
	def := TypeDef{Kind: DefKind(kind)}
	switch def.Kind {
	case DefComposite:
		def.Fields, err = p.fields()
	case DefVariant:
		def.Variants, err = p.variants()
	case DefSequence, DefCompact:
		def.Elem, err = p.typeID()
	case DefArray:
		if def.Len, err = p.d.U32(); err == nil {
			def.Elem, err = p.typeID()
		}
	case DefTuple:
		var n int
		if n, err = p.d.Length(); err == nil {
			for i := 0; i < n && err == nil; i++ {
				var id uint32
				if id, err = p.typeID(); err == nil {
					def.Tuple = append(def.Tuple, id)
				}
			}
		}
	case DefPrimitive:
		var prim uint8
		if prim, err = p.d.U8(); err == nil {
			if prim > uint8(PrimI256) {
				err = errors.Errorf("unknown primitive %d", prim)
			}
			def.Primitive = Primitive(prim)
		}
	case DefBitSequence:
		if def.BitStore, err = p.typeID(); err == nil {
			def.BitOrder, err = p.typeID()
		}
	default:
		err = errors.Errorf("unknown type definition %d", kind)
	}
	return def, err
}

func (p *parser) fields() ([]Field, error) {
	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		var f Field
		if f.Name, err = p.optionalString(); err != nil {
			return nil, err
		}
		if f.Type, err = p.typeID(); err != nil {
			return nil, err
		}
		if f.TypeName, err = p.optionalString(); err != nil {
			return nil, err
		}
		if f.Docs, err = p.d.Strings(); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (p *parser) variants() ([]Variant, error) {
	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	variants := make([]Variant, 0, n)
	for i := 0; i < n; i++ {
		var v Variant
		if v.Name, err = p.d.String(); err != nil {
			return nil, err
		}
		if v.Fields, err = p.fields(); err != nil {
			return nil, err
		}
		if v.Index, err = p.d.U8(); err != nil {
			return nil, err
		}
		if v.Docs, err = p.d.Strings(); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (p *parser) pallet() (Pallet, error) {
	var (
		pl  Pallet
		err error
	)
	if pl.Name, err = p.d.String(); err != nil {
		return pl, err
	}
	if pl.Storage, err = p.storage(); err != nil {
		return pl, errors.Wrapf(err, "%s storage", pl.Name)
	}
	if pl.Calls, err = p.optionalTypeID(); err != nil {
		return pl, err
	}
	if pl.Events, err = p.optionalTypeID(); err != nil {
		return pl, err
	}

	n, err := p.d.Length()
	if err != nil {
		return pl, err
	}
	for i := 0; i < n; i++ {
		var c Constant
		if c.Name, err = p.d.String(); err != nil {
			return pl, err
		}
		if c.Type, err = p.typeID(); err != nil {
			return pl, err
		}
		if c.Value, err = p.d.ByteSlice(); err != nil {
			return pl, err
		}
		if c.Docs, err = p.d.Strings(); err != nil {
			return pl, err
		}
		pl.Constants = append(pl.Constants, c)
	}

	if pl.Errors, err = p.optionalTypeID(); err != nil {
		return pl, err
	}
	if pl.Index, err = p.d.U8(); err != nil {
		return pl, err
	}
	if p.version == 15 {
		if pl.Docs, err = p.d.Strings(); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

func (p *parser) storage() (*Storage, error) {
	some, err := p.d.Option()
	if err != nil || !some {
		return nil, err
	}
	s := &Storage{}
	if s.Prefix, err = p.d.String(); err != nil {
		return nil, err
	}
	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var e StorageEntry
		if e.Name, err = p.d.String(); err != nil {
			return nil, err
		}
		modifier, err := p.d.U8()
		if err != nil {
			return nil, err
		}
		e.Optional = modifier == 0

		kind, err := p.d.U8()
		if err != nil {
			return nil, err
		}
		switch kind {
		case 0:
			e.Plain = true
			if e.ValueType, err = p.typeID(); err != nil {
				return nil, err
			}
		case 1:
			hashers, err := p.d.ByteSlice()
			if err != nil {
				return nil, err
			}
			e.Hashers = append([]uint8(nil), hashers...)
			if e.KeyType, err = p.typeID(); err != nil {
				return nil, err
			}
			if e.ValueType, err = p.typeID(); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("unknown storage entry type %d", kind)
		}

		if e.Default, err = p.d.ByteSlice(); err != nil {
			return nil, err
		}
		if e.Docs, err = p.d.Strings(); err != nil {
			return nil, err
		}
		s.Entries = append(s.Entries, e)
	}
	return s, nil
}

func (p *parser) extrinsic() (Extrinsic, error) {
	var (
		ex  Extrinsic
		err error
	)
	if p.version == 14 {
		if ex.Type, err = p.typeID(); err != nil {
			return ex, err
		}
		if ex.Version, err = p.d.U8(); err != nil {
			return ex, err
		}
	} else {
		if ex.Version, err = p.d.U8(); err != nil {
			return ex, err
		}
		for _, dst := range []*uint32{&ex.AddressType, &ex.CallType, &ex.SignatureType, &ex.ExtraType} {
			if *dst, err = p.typeID(); err != nil {
				return ex, err
			}
		}
		ex.HasTypeParams = true
	}

	n, err := p.d.Length()
	if err != nil {
		return ex, err
	}
	for i := 0; i < n; i++ {
		var se SignedExtension
		if se.Identifier, err = p.d.String(); err != nil {
			return ex, err
		}
		if se.Type, err = p.typeID(); err != nil {
			return ex, err
		}
		if se.AdditionalSigned, err = p.typeID(); err != nil {
			return ex, err
		}
		ex.SignedExtensions = append(ex.SignedExtensions, se)
	}
	return ex, nil
}

// extrinsicParamsFromType fills the address, call, signature and extra types
// of v14 metadata from the generic parameters of UncheckedExtrinsic.
func (p *parser) extrinsicParamsFromType(md *Metadata) error {
	t, err := md.Types.Lookup(md.Extrinsic.Type)
	if err != nil {
		return errors.Wrap(err, "extrinsic type")
	}
	var ok [4]bool
	md.Extrinsic.AddressType, ok[0] = t.Param("Address")
	md.Extrinsic.CallType, ok[1] = t.Param("Call")
	md.Extrinsic.SignatureType, ok[2] = t.Param("Signature")
	md.Extrinsic.ExtraType, ok[3] = t.Param("Extra")
	md.Extrinsic.HasTypeParams = ok[0] && ok[1] && ok[2] && ok[3]
	return nil
}

func (p *parser) apis() ([]RuntimeAPI, error) {
	n, err := p.d.Length()
	if err != nil {
		return nil, err
	}
	apis := make([]RuntimeAPI, 0, n)
	for i := 0; i < n; i++ {
		var api RuntimeAPI
		if api.Name, err = p.d.String(); err != nil {
			return nil, err
		}
		methods, err := p.d.Length()
		if err != nil {
			return nil, err
		}
		for j := 0; j < methods; j++ {
			name, err := p.d.String()
			if err != nil {
				return nil, err
			}
			inputs, err := p.d.Length()
			if err != nil {
				return nil, err
			}
			for k := 0; k < inputs; k++ {
				if _, err := p.d.String(); err != nil {
					return nil, err
				}
				if _, err := p.typeID(); err != nil {
					return nil, err
				}
			}
			if _, err := p.typeID(); err != nil {
				return nil, err
			}
			if _, err := p.d.Strings(); err != nil {
				return nil, err
			}
			api.Methods = append(api.Methods, name)
		}
		if _, err := p.d.Strings(); err != nil {
			return nil, err
		}
		apis = append(apis, api)
	}
	return apis, nil
}

func (p *parser) custom() error {
	n, err := p.d.Length()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := p.d.String(); err != nil {
			return err
		}
		if _, err := p.typeID(); err != nil {
			return err
		}
		if _, err := p.d.ByteSlice(); err != nil {
			return err
		}
	}
	return nil
}
