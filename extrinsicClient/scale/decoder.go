// Package scale adapts the SCALE codec of go-substrate-rpc-client to the
// slice-backed, position-aware reads the metadata parser and call decoder
// need: bounded lengths, aliasing byte reads and arbitrary-width integers.
package scale

import (
	"bytes"
	"io"
	"math/big"

	codec "github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/pkg/errors"
)

// ErrUnexpectedEOF is returned when the input ends before a value is complete.
var ErrUnexpectedEOF = errors.New("scale: unexpected end of input")

// Decoder reads SCALE values from a byte slice.
type Decoder struct {
	data []byte
	r    *bytes.Reader
	dec  *codec.Decoder
}

// NewDecoder returns a decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	r := bytes.NewReader(data)
	return &Decoder{data: data, r: r, dec: codec.NewDecoder(r)}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return len(d.data) - d.r.Len() }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return d.r.Len() }

func (d *Decoder) need(n int) error {
	if n < 0 || d.r.Len() < n {
		return ErrUnexpectedEOF
	}
	return nil
}

// fail maps a codec error. A short read drains the reader, so an empty reader
// after a failure means the input ended early.
func (d *Decoder) fail(err error) error {
	if d.r.Len() == 0 {
		return ErrUnexpectedEOF
	}
	return errors.Wrap(err, "scale")
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b, err := d.dec.ReadOneByte()
	if err != nil {
		return 0, d.fail(err)
	}
	return b, nil
}

// ReadBytes returns the next n bytes. The result aliases the input.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	off := d.Offset()
	if _, err := d.r.Seek(int64(n), io.SeekCurrent); err != nil {
		return nil, d.fail(err)
	}
	return d.data[off : off+n], nil
}

func (d *Decoder) fixed(target interface{}, width int) error {
	if err := d.need(width); err != nil {
		return err
	}
	if err := d.dec.Decode(target); err != nil {
		return d.fail(err)
	}
	return nil
}

func (d *Decoder) U8() (uint8, error) { return d.ReadByte() }

func (d *Decoder) U16() (uint16, error) {
	var v uint16
	err := d.fixed(&v, 2)
	return v, err
}

func (d *Decoder) U32() (uint32, error) {
	var v uint32
	err := d.fixed(&v, 4)
	return v, err
}

func (d *Decoder) U64() (uint64, error) {
	var v uint64
	err := d.fixed(&v, 8)
	return v, err
}

// Uint reads an unsigned little-endian integer of the given byte width. Widths
// past 8 cover u128 and u256, which the codec has no native type for.
func (d *Decoder) Uint(width int) (*big.Int, error) {
	b, err := d.ReadBytes(width)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(reversed(b)), nil
}

// Int reads a two's complement little-endian integer of the given byte width.
func (d *Decoder) Int(width int) (*big.Int, error) {
	b, err := d.ReadBytes(width)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(reversed(b))
	if width > 0 && b[width-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*width)))
	}
	return v, nil
}

// Bool reads a boolean encoded as 0x00 or 0x01.
func (d *Decoder) Bool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("scale: invalid bool byte 0x%02x", b)
	}
}

// Compact reads a compact-encoded unsigned integer.
func (d *Decoder) Compact() (*big.Int, error) {
	if err := d.need(1); err != nil {
		return nil, err
	}
	v, err := d.dec.DecodeUintCompact()
	if err != nil {
		return nil, d.fail(err)
	}
	return v, nil
}

// CompactU64 reads a compact integer that must fit in 64 bits.
func (d *Decoder) CompactU64() (uint64, error) {
	v, err := d.Compact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, errors.Errorf("scale: compact value %s overflows u64", v)
	}
	return v.Uint64(), nil
}

// Length reads a compact collection length. A length larger than the
// remaining input is rejected since every element takes at least one byte,
// except for collections of zero-sized elements which callers bound themselves.
func (d *Decoder) Length() (int, error) {
	n, err := d.CompactU64()
	if err != nil {
		return 0, err
	}
	if n > uint64(d.Remaining()) {
		return 0, errors.Errorf("scale: length %d exceeds remaining input %d", n, d.Remaining())
	}
	return int(n), nil
}

// ByteSlice reads a length-prefixed byte vector. The result aliases the input.
func (d *Decoder) ByteSlice() ([]byte, error) {
	n, err := d.Length()
	if err != nil {
		return nil, err
	}
	return d.ReadBytes(n)
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	b, err := d.ByteSlice()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Option reads an Option discriminant and reports whether a value follows.
func (d *Decoder) Option() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("scale: invalid option byte 0x%02x", b)
	}
}

// Strings reads a vector of strings, such as documentation lines.
func (d *Decoder) Strings() ([]string, error) {
	n, err := d.Length()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
