package chain

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/metadata"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

// extrinsicParams are the values the signed extensions draw from.
type extrinsicParams struct {
	specVersion uint32
	txVersion   uint32
	genesis     Hash
	// checkpoint is the block the era starts at; the genesis hash when immortal
	checkpoint Hash
	era        Era
	nonce      uint64
	tip        *big.Int
}

// encodeExtensions walks the runtime's extension pipeline and returns the
// bytes carried in the extrinsic and the bytes only included in the payload.
func encodeExtensions(md *metadata.Metadata, p extrinsicParams) (extra, additional []byte, err error) {
	var ex, add scale.Encoder
	tip := p.tip
	if tip == nil {
		tip = new(big.Int)
	}

	for _, ext := range md.Extrinsic.SignedExtensions {
		switch ext.Identifier {
		case "CheckSpecVersion":
			add.U32(p.specVersion)
		case "CheckTxVersion":
			add.U32(p.txVersion)
		case "CheckGenesis":
			add.Write(p.genesis[:])
		case "CheckMortality", "CheckEra":
			ex.Write(p.era.Encode())
			add.Write(p.checkpoint[:])
		case "CheckNonce":
			ex.Compact(p.nonce)
		case "ChargeTransactionPayment":
			ex.CompactBig(tip)
		case "ChargeAssetTxPayment":
			ex.CompactBig(tip)
			ex.PushByte(0) // fee asset: native
		case "CheckMetadataHash":
			ex.PushByte(0) // mode: disabled
			add.PushByte(0)
		default:
			if err := neutralExtension(md.Types, ext.Type, &ex); err != nil {
				return nil, nil, errors.Wrapf(err, "signed extension %s", ext.Identifier)
			}
			if err := neutralExtension(md.Types, ext.AdditionalSigned, &add); err != nil {
				return nil, nil, errors.Wrapf(err, "signed extension %s (additional)", ext.Identifier)
			}
		}
	}
	return ex.Bytes(), add.Bytes(), nil
}

// neutralExtension encodes the no-op value of an unknown extension: nothing
// for empty types and None for options. Anything else cannot be guessed.
func neutralExtension(types *metadata.Registry, id uint32, e *scale.Encoder) error {
	if types.IsEmpty(id) {
		return nil
	}
	t, err := types.Lookup(id)
	if err != nil {
		return err
	}
	if t.IsOption() {
		e.PushByte(0)
		return nil
	}
	return errors.Errorf("unsupported type %s", t.PathString())
}
