package keys

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// DefaultSS58Prefix is the generic Substrate address format.
const DefaultSS58Prefix uint16 = 42

var ss58Context = []byte("SS58PRE")

// decoded lengths accepted by the SS58 format: 1, 2, 4 and 8 byte account
// indices with a one byte checksum, and 32/33 byte keys with two.
var allowedDecodedLengths = map[int]bool{3: true, 4: true, 6: true, 10: true, 35: true, 36: true, 37: true, 38: true}

func ss58Hash(data []byte) [64]byte {
	buf := make([]byte, 0, len(ss58Context)+len(data))
	buf = append(buf, ss58Context...)
	buf = append(buf, data...)
	return blake2b.Sum512(buf)
}

// DecodeSS58 decodes an SS58 address and verifies its checksum. It returns the
// account bytes and the network prefix.
func DecodeSS58(address string) ([]byte, uint16, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, 0, errors.Wrap(err, "invalid base58 address")
	}
	if !allowedDecodedLengths[len(decoded)] {
		return nil, 0, errors.Errorf("invalid decoded address length %d", len(decoded))
	}
	if decoded[0]&0x80 != 0 {
		return nil, 0, errors.New("invalid address prefix")
	}

	prefixLen := 1
	prefix := uint16(decoded[0])
	if decoded[0]&0x40 != 0 {
		prefixLen = 2
		prefix = uint16(decoded[0]&0x3f)<<2 | uint16(decoded[1]>>6) | uint16(decoded[1]&0x3f)<<8
	} else if prefix == 46 || prefix == 47 {
		return nil, 0, errors.Errorf("reserved address prefix %d", prefix)
	}

	isKey := len(decoded) == 34+prefixLen || len(decoded) == 35+prefixLen
	checksumLen := 1
	if isKey {
		checksumLen = 2
	}
	end := len(decoded) - checksumLen
	if end <= prefixLen {
		return nil, 0, errors.New("address too short")
	}

	hash := ss58Hash(decoded[:end])
	if !bytes.Equal(decoded[end:], hash[:checksumLen]) {
		return nil, 0, errors.New("invalid address checksum")
	}
	return decoded[prefixLen:end], prefix, nil
}

// DecodeAddress returns the public key behind an SS58 address or a
// 0x-prefixed hex public key.
func DecodeAddress(address string) ([]byte, error) {
	if strings.HasPrefix(address, "0x") {
		pub, err := hex.DecodeString(address[2:])
		if err != nil {
			return nil, errors.Wrap(err, "invalid hex address")
		}
		if len(pub) != 32 && len(pub) != 33 {
			return nil, errors.Errorf("invalid hex address length %d", len(pub))
		}
		return pub, nil
	}
	pub, _, err := DecodeSS58(address)
	return pub, err
}

// EncodeAddress encodes account bytes as an SS58 address with the given prefix.
func EncodeAddress(account []byte, prefix uint16) string {
	var data []byte
	if prefix < 64 {
		data = append(data, byte(prefix))
	} else {
		data = append(data,
			byte((prefix&0xfc)>>2)|0x40,
			byte(prefix>>8)|byte(prefix&0x03)<<6,
		)
	}
	data = append(data, account...)

	checksumLen := 1
	if len(account) == 32 || len(account) == 33 {
		checksumLen = 2
	}
	hash := ss58Hash(data)
	data = append(data, hash[:checksumLen]...)
	return base58.Encode(data)
}
