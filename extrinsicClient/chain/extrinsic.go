package chain

import (
	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/metadata"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

const (
	extrinsicVersion = 4
	signedBit        = 0x80

	// payloads longer than this are signed by their blake2b-256 hash
	maxRawPayload = 256
)

// signedExtrinsic is an encoded extrinsic ready for author_submitExtrinsic.
type signedExtrinsic struct {
	encoded []byte
	hash    Hash
}

// buildExtrinsic signs call with p and returns the length-prefixed v4 extrinsic.
func buildExtrinsic(md *metadata.Metadata, signer Signer, call []byte, p extrinsicParams) (*signedExtrinsic, error) {
	if md.Extrinsic.Version != extrinsicVersion {
		return nil, errors.Errorf("unsupported extrinsic version %d", md.Extrinsic.Version)
	}
	extra, additional, err := encodeExtensions(md, p)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(call)+len(extra)+len(additional))
	payload = append(payload, call...)
	payload = append(payload, extra...)
	payload = append(payload, additional...)
	if len(payload) > maxRawPayload {
		h := blake2b256(payload)
		payload = h[:]
	}

	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, errors.Wrap(err, "sign payload")
	}
	address, err := encodeAddress(md, signer.PublicKey())
	if err != nil {
		return nil, err
	}
	signature, err := encodeSignature(md, signer.Scheme(), sig)
	if err != nil {
		return nil, err
	}

	var body scale.Encoder
	body.PushByte(signedBit | extrinsicVersion)
	body.Write(address)
	body.Write(signature)
	body.Write(extra)
	body.Write(call)

	encoded := scale.PrefixLength(body.Bytes())
	return &signedExtrinsic{encoded: encoded, hash: blake2b256(encoded)}, nil
}

// encodeAddress encodes the signer as the runtime's address type: either a
// MultiAddress::Id or a bare 32-byte account id.
func encodeAddress(md *metadata.Metadata, pub []byte) ([]byte, error) {
	t, err := md.Types.Lookup(md.Extrinsic.AddressType)
	if err != nil {
		return nil, errors.Wrap(err, "address type")
	}
	switch t.Def.Kind {
	case metadata.DefVariant:
		v, ok := t.VariantByName("Id")
		if !ok {
			return nil, errors.Errorf("address type %s has no Id variant", t.PathString())
		}
		return append([]byte{v.Index}, pub...), nil
	case metadata.DefComposite, metadata.DefArray:
		return append([]byte(nil), pub...), nil
	default:
		return nil, errors.Errorf("unsupported address type %s", t.PathString())
	}
}

// encodeSignature wraps sig in the MultiSignature variant of scheme.
func encodeSignature(md *metadata.Metadata, scheme keys.Scheme, sig []byte) ([]byte, error) {
	t, err := md.Types.Lookup(md.Extrinsic.SignatureType)
	if err != nil {
		return nil, errors.Wrap(err, "signature type")
	}
	if t.Def.Kind != metadata.DefVariant {
		return append([]byte(nil), sig...), nil
	}
	var name string
	switch scheme {
	case keys.SchemeSr25519:
		name = "Sr25519"
	case keys.SchemeEd25519:
		name = "Ed25519"
	default:
		return nil, errors.Errorf("unsupported signature scheme %q", scheme)
	}
	v, ok := t.VariantByName(name)
	if !ok {
		return nil, errors.Errorf("runtime does not accept %s signatures", name)
	}
	return append([]byte{v.Index}, sig...), nil
}
