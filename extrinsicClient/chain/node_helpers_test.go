package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	mdt "github.com/virto-network/subskribinto/extrinsicClient/metadata/metadatatest"
	"github.com/virto-network/subskribinto/extrinsicClient/rpc/rpctest"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

var (
	genesisHash   = hashOf(0x11)
	finalizedHead = hashOf(0x22)
	bestBlock     = hashOf(0x33)
	finalBlock    = hashOf(0x44)
)

const (
	testSpecVersion = 1_002_000
	testTxVersion   = 2
	testNonce       = 7
	// position of the watched extrinsic in the fake blocks
	testExtrinsicIndex = 1
)

func hashOf(b byte) Hash {
	var h Hash
	copy(h[:], bytes.Repeat([]byte{b}, 32))
	return h
}

// edSigner signs with a fixed ed25519 key.
type edSigner struct {
	priv ed25519.PrivateKey
}

func newEdSigner() edSigner {
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	return edSigner{priv: ed25519.NewKeyFromSeed(seed)}
}

func (s edSigner) Scheme() keys.Scheme { return keys.SchemeEd25519 }

func (s edSigner) PublicKey() []byte { return []byte(s.priv.Public().(ed25519.PublicKey)) }

func (s edSigner) Sign(msg []byte) ([]byte, error) { return ed25519.Sign(s.priv, msg), nil }

// eventRecord appends an EventRecord applied by extrinsic index.
func eventRecord(e *scale.Encoder, index uint32, event []byte) {
	e.PushByte(0) // Phase::ApplyExtrinsic
	e.U32(index)
	e.Write(event)
	e.Compact(0) // topics
}

func successEvent() []byte {
	var e scale.Encoder
	e.PushByte(mdt.SystemIndex)
	e.PushByte(0) // ExtrinsicSuccess
	e.U64(1000)
	return e.Bytes()
}

func failedEvent(dispatchError ...byte) []byte {
	var e scale.Encoder
	e.PushByte(mdt.SystemIndex)
	e.PushByte(1) // ExtrinsicFailed
	e.Write(dispatchError)
	e.U64(1000)
	return e.Bytes()
}

func transferEvent() []byte {
	var e scale.Encoder
	e.PushByte(mdt.BalancesIndex)
	e.PushByte(2) // Transfer
	e.Write(bytes.Repeat([]byte{1}, 32))
	e.Write(bytes.Repeat([]byte{2}, 32))
	e.Write(make([]byte, 16))
	return e.Bytes()
}

// events encodes a Vec<EventRecord> where the watched extrinsic emits the given events.
func events(watched ...[]byte) []byte {
	var e scale.Encoder
	e.Compact(uint64(len(watched) + 1))
	eventRecord(&e, 0, successEvent())
	for _, ev := range watched {
		eventRecord(&e, testExtrinsicIndex, ev)
	}
	return e.Bytes()
}

// fakeNode scripts a node serving the fixture runtime.
type fakeNode struct {
	*rpctest.Server

	mu        sync.Mutex
	submitted string
	statuses  []interface{}
	events    []byte
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{
		Server: rpctest.NewServer(),
		events: events(transferEvent(), successEvent()),
	}
	t.Cleanup(n.Close)

	n.Handle("chain_getBlockHash", func(params []json.RawMessage) (interface{}, error) {
		var number uint64
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &number)
		}
		if number == 0 {
			return genesisHash.Hex(), nil
		}
		return hashOf(byte(number)).Hex(), nil
	})
	n.HandleResult("state_getRuntimeVersion", map[string]interface{}{
		"specName":           "kreivo-parachain",
		"implName":           "kreivo-parachain",
		"specVersion":        testSpecVersion,
		"transactionVersion": testTxVersion,
	})
	opaque := append([]byte{1}, scale.PrefixLength(mdt.Encode(15))...)
	n.HandleResult("state_call", hexString(opaque))
	n.HandleResult("state_getMetadata", hexString(mdt.Encode(14)))
	n.HandleResult("system_accountNextIndex", testNonce)
	n.HandleResult("chain_getFinalizedHead", finalizedHead.Hex())
	n.HandleResult("chain_getHeader", map[string]string{"number": "0x2a"})
	n.HandleResult("author_unwatchExtrinsic", true)

	n.Handle("chain_getBlock", func(params []json.RawMessage) (interface{}, error) {
		n.mu.Lock()
		defer n.mu.Unlock()
		return map[string]interface{}{
			"block": map[string]interface{}{
				"header":     map[string]string{"number": "0x64"},
				"extrinsics": []string{"0x280403000b", n.submitted},
			},
		}, nil
	})
	n.Handle("state_getStorage", func([]json.RawMessage) (interface{}, error) {
		n.mu.Lock()
		defer n.mu.Unlock()
		return hexString(n.events), nil
	})
	n.HandleSubscription(methodSubmitAndWatch, func(params []json.RawMessage) ([]interface{}, error) {
		n.mu.Lock()
		defer n.mu.Unlock()
		_ = json.Unmarshal(params[0], &n.submitted)
		return n.statuses, nil
	})
	n.Handle("author_submitExtrinsic", func(params []json.RawMessage) (interface{}, error) {
		n.mu.Lock()
		defer n.mu.Unlock()
		_ = json.Unmarshal(params[0], &n.submitted)
		ext, err := decodeHex(n.submitted)
		if err != nil {
			return nil, err
		}
		return blake2b256(ext).Hex(), nil
	})
	return n
}

func (n *fakeNode) setStatuses(statuses ...interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = statuses
}

func (n *fakeNode) setEvents(raw []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = raw
}

func (n *fakeNode) submittedExtrinsic() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submitted
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.DialRetries = 1
	opts.DialBackoff = time.Millisecond
	opts.RequestTimeout = 5 * time.Second
	opts.MortalityPeriod = 0
	return opts
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func openTest(t *testing.T, n *fakeNode, opts Options) *Conn {
	t.Helper()
	c, err := Open(testContext(t), n.URL(), opts, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
