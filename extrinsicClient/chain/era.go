package chain

import (
	"math/bits"
)

const (
	minEraPeriod = 4
	maxEraPeriod = 1 << 16
)

// Era is the validity window of a transaction. A zero Period is immortal.
type Era struct {
	Period uint64
	Phase  uint64
}

// ImmortalEra never expires.
func ImmortalEra() Era { return Era{} }

// MortalEra starts a window of about period blocks at block current. The
// period is rounded up to a power of two within [4, 65536] and the phase is
// quantized the way the runtime decodes it.
func MortalEra(period, current uint64) Era {
	p := uint64(minEraPeriod)
	for p < period && p < maxEraPeriod {
		p <<= 1
	}
	phase := current % p
	qf := quantizeFactor(p)
	return Era{Period: p, Phase: phase / qf * qf}
}

func quantizeFactor(period uint64) uint64 {
	if qf := period >> 12; qf > 1 {
		return qf
	}
	return 1
}

// IsImmortal reports whether the era never expires.
func (e Era) IsImmortal() bool { return e.Period == 0 }

// Birth returns the first block of the window containing current.
func (e Era) Birth(current uint64) uint64 {
	if e.IsImmortal() {
		return 0
	}
	if current < e.Phase {
		current = e.Phase
	}
	return (current-e.Phase)/e.Period*e.Period + e.Phase
}

// Encode returns the SCALE encoding: one zero byte when immortal, two bytes otherwise.
func (e Era) Encode() []byte {
	if e.IsImmortal() {
		return []byte{0}
	}
	low := uint64(bits.TrailingZeros64(e.Period)) - 1
	if low < 1 {
		low = 1
	}
	if low > 15 {
		low = 15
	}
	enc := low | (e.Phase/quantizeFactor(e.Period))<<4
	return []byte{byte(enc), byte(enc >> 8)}
}
