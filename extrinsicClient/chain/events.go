package chain

import (
	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/metadata"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

// decodeDispatch extracts the dispatch result of the extrinsic at index from
// an encoded System.Events value.
func decodeDispatch(md *metadata.Metadata, ss58Prefix uint16, raw []byte, index uint32) (*Dispatch, error) {
	entry, ok := md.StorageEntry("System", "Events")
	if !ok {
		return nil, errors.New("runtime has no System.Events storage")
	}
	d := scale.NewDecoder(raw)
	records, err := metadata.NewValueDecoder(md.Types, ss58Prefix).Decode(entry.ValueType, d)
	if err != nil {
		return nil, errors.Wrap(err, "decode events")
	}

	var (
		dispatch Dispatch
		resolved bool
	)
	for _, record := range records.Items {
		phase, ok := record.Field("phase")
		if !ok || phase.Variant != "ApplyExtrinsic" {
			continue
		}
		at, ok := phase.At(0)
		if !ok {
			continue
		}
		if i, ok := at.Uint(); !ok || i != uint64(index) {
			continue
		}

		event, ok := record.Field("event")
		if !ok {
			continue
		}
		inner, ok := event.At(0)
		if !ok {
			continue
		}
		dispatch.Events = append(dispatch.Events, event.Variant+"::"+inner.Variant)

		if event.Variant != "System" {
			continue
		}
		switch inner.Variant {
		case "ExtrinsicSuccess":
			dispatch.Success = true
			resolved = true
		case "ExtrinsicFailed":
			dispatch.Success = false
			resolved = true
			if derr, ok := inner.Field("dispatch_error"); ok {
				dispatch.Error = describeDispatchError(md, derr)
			} else if derr, ok := inner.At(0); ok {
				dispatch.Error = describeDispatchError(md, derr)
			}
		}
	}
	if !resolved {
		return nil, errors.Errorf("no dispatch result for extrinsic %d", index)
	}
	return &dispatch, nil
}

// describeDispatchError names a DispatchError value. Module errors resolve to
// Pallet::Error, nested enums to Outer::Inner.
func describeDispatchError(md *metadata.Metadata, v metadata.Value) string {
	if v.Kind != metadata.KindVariant {
		return "unknown"
	}
	inner, ok := v.At(0)
	if !ok {
		return v.Variant
	}
	if v.Variant == "Module" {
		if name, ok := moduleErrorName(md, inner); ok {
			return name
		}
	}
	if inner.Kind == metadata.KindVariant {
		return v.Variant + "::" + inner.Variant
	}
	return v.Variant
}

func moduleErrorName(md *metadata.Metadata, v metadata.Value) (string, bool) {
	idx, ok := v.Field("index")
	if !ok {
		return "", false
	}
	pallet, ok := idx.Uint()
	if !ok || pallet > 255 {
		return "", false
	}
	errField, ok := v.Field("error")
	if !ok {
		return "", false
	}
	var errIndex uint64
	switch errField.Kind {
	case metadata.KindBytes:
		if len(errField.Bytes) == 0 {
			return "", false
		}
		errIndex = uint64(errField.Bytes[0])
	default:
		if errIndex, ok = errField.Uint(); !ok {
			return "", false
		}
	}
	p, variant, ok := md.ModuleError(uint8(pallet), uint8(errIndex))
	if !ok {
		return "", false
	}
	return p.Name + "::" + variant.Name, true
}
