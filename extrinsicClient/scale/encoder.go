package scale

import (
	"bytes"
	"math/big"

	codec "github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// Encoder accumulates SCALE-encoded values. The zero value is ready to use.
// Writes go to an in-memory buffer and cannot fail, so the codec's write
// errors are dropped.
type Encoder struct {
	buf bytes.Buffer
}

func (e *Encoder) enc() *codec.Encoder { return codec.NewEncoder(&e.buf) }

// Bytes returns the encoded output.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of bytes written.
func (e *Encoder) Len() int { return e.buf.Len() }

// PushByte appends a single byte.
func (e *Encoder) PushByte(b byte) { _ = e.enc().PushByte(b) }

// Write appends raw bytes without a length prefix.
func (e *Encoder) Write(b []byte) { _ = e.enc().Write(b) }

func (e *Encoder) U16(v uint16) { _ = e.enc().Encode(v) }

func (e *Encoder) U32(v uint32) { _ = e.enc().Encode(v) }

func (e *Encoder) U64(v uint64) { _ = e.enc().Encode(v) }

// Compact appends a compact-encoded integer.
func (e *Encoder) Compact(v uint64) {
	e.CompactBig(new(big.Int).SetUint64(v))
}

// CompactBig appends a compact-encoded big integer. v must not be negative.
func (e *Encoder) CompactBig(v *big.Int) { _ = e.enc().EncodeUintCompact(*v) }

// ByteSlice appends a length-prefixed byte vector.
func (e *Encoder) ByteSlice(b []byte) {
	e.Compact(uint64(len(b)))
	e.Write(b)
}

// EncodeCompact returns the compact encoding of v.
func EncodeCompact(v uint64) []byte {
	var e Encoder
	e.Compact(v)
	return e.Bytes()
}

// PrefixLength prepends the compact length of b to b.
func PrefixLength(b []byte) []byte {
	var e Encoder
	e.ByteSlice(b)
	return e.Bytes()
}
