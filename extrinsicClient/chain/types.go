// Package chain is the connection to a Substrate node: it bootstraps runtime
// metadata, materializes call data, builds and signs v4 extrinsics and turns
// the node's watch notifications into lifecycle events.
package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/metadata"
)

// Hash is a 32-byte block or extrinsic hash.
type Hash [32]byte

// ParseHash decodes a 0x-prefixed hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, errors.Wrapf(err, "invalid hash %q", s)
	}
	if len(b) != len(h) {
		return h, errors.Errorf("invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hex returns the 0x-prefixed hex form.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is all zeroes.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(h.Hex()) }

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Signer is the signing side of a resolved credential.
type Signer interface {
	Scheme() keys.Scheme
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// Call holds a private copy of opaque call bytes plus their decoded projection.
type Call struct {
	data    []byte
	Decoded *metadata.DecodedCall
}

// Bytes returns a copy of the call bytes exactly as supplied.
func (c *Call) Bytes() []byte { return append([]byte(nil), c.data...) }

// Len returns the encoded call length.
func (c *Call) Len() int { return len(c.data) }

func (c *Call) String() string {
	if c.Decoded == nil {
		return "0x" + hex.EncodeToString(c.data)
	}
	return c.Decoded.String()
}

// EventKind enumerates the lifecycle events of a watched extrinsic.
type EventKind int

const (
	EventSigned EventKind = iota
	EventBroadcasted
	EventBestBlock
	EventFinalized
)

func (k EventKind) String() string {
	switch k {
	case EventSigned:
		return "signed"
	case EventBroadcasted:
		return "broadcasted"
	case EventBestBlock:
		return "best_block"
	case EventFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// BlockRef locates an extrinsic in a block. Located is false when the block
// body could not be fetched or did not contain the extrinsic.
type BlockRef struct {
	Hash           Hash
	Number         uint64
	ExtrinsicIndex uint32
	Located        bool
}

// Dispatch is the on-chain result of a finalized extrinsic.
type Dispatch struct {
	Success bool
	// Error names the dispatch error, e.g. "Balances::InsufficientBalance" or "BadOrigin".
	Error string
	// Events lists "Pallet::Event" names emitted while applying the extrinsic.
	Events []string
}

// TxEvent is one lifecycle event of a watched extrinsic.
type TxEvent struct {
	Kind      EventKind
	Hash      Hash
	Block     *BlockRef
	Retracted bool
	Dispatch  *Dispatch
}

// EventStream is a pull-based stream of lifecycle events. Next returns an
// error once the extrinsic has been rejected or the stream broke.
type EventStream interface {
	Next(ctx context.Context) (TxEvent, error)
	Close() error
}

// StatusError reports a terminal watch status other than finalized.
type StatusError struct {
	Status string
	Block  *Hash
}

func (e *StatusError) Error() string {
	if e.Block != nil {
		return "transaction " + e.Status + " at " + e.Block.Hex()
	}
	return "transaction " + e.Status
}
