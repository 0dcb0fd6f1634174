package chain

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/virto-network/subskribinto/extrinsicClient/config"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/metadata"
	"github.com/virto-network/subskribinto/extrinsicClient/rpc"
	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

const (
	methodSubmitAndWatch = "author_submitAndWatchExtrinsic"
	methodUnwatch        = "author_unwatchExtrinsic"

	// metadataVersion is requested through the Metadata_metadata_at_version runtime API
	metadataVersion = 15
)

// Options configures a connection.
type Options struct {
	DialTimeout    time.Duration
	DialRetries    int
	DialBackoff    time.Duration
	RequestTimeout time.Duration

	// MortalityPeriod is the era length in blocks; 0 builds immortal extrinsics.
	MortalityPeriod uint64
	Tip             *big.Int
	// SS58Prefix overrides the runtime's System.SS58Prefix when >= 0.
	SS58Prefix int
}

// DefaultOptions mirrors the embedded default configuration.
func DefaultOptions() Options {
	return Options{
		DialTimeout:     30 * time.Second,
		DialRetries:     3,
		DialBackoff:     time.Second,
		RequestTimeout:  30 * time.Second,
		MortalityPeriod: 64,
		Tip:             new(big.Int),
		SS58Prefix:      -1,
	}
}

// OptionsFromConfig builds connection options from a validated config.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	opts := DefaultOptions()
	opts.DialTimeout = cfg.DialTimeout()
	opts.DialRetries = cfg.DialRetries
	opts.RequestTimeout = cfg.RequestTimeout()
	opts.MortalityPeriod = cfg.MortalityPeriod
	opts.SS58Prefix = cfg.SS58Prefix
	if cfg.Tip != "" {
		tip, ok := new(big.Int).SetString(cfg.Tip, 10)
		if !ok || tip.Sign() < 0 {
			return opts, cerrors.NewConfigError("tip must be a non-negative decimal integer")
		}
		opts.Tip = tip
	}
	return opts, nil
}

// RuntimeVersion is the result of state_getRuntimeVersion.
type RuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// Conn is an open connection to one node with the runtime context needed to
// decode calls and sign extrinsics.
type Conn struct {
	client   *rpc.Client
	logger   zerolog.Logger
	opts     Options
	endpoint string

	genesis Hash
	runtime RuntimeVersion
	md      *metadata.Metadata
	ss58    uint16

	closeOnce sync.Once
	closeErr  error
}

// Open dials endpoint, retrying transient failures, and loads the genesis
// hash, runtime version and metadata.
func Open(ctx context.Context, endpoint string, opts Options, logger zerolog.Logger) (*Conn, error) {
	log := logger.With().Str("component", "chain").Str("endpoint", endpoint).Logger()

	var client *rpc.Client
	op := &cerrors.RetryOperation{
		Name: "dial",
		Fn: func() error {
			dialCtx := ctx
			if opts.DialTimeout > 0 {
				var cancel context.CancelFunc
				dialCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
				defer cancel()
			}
			c, err := rpc.Dial(dialCtx, endpoint, logger)
			if err != nil {
				return cerrors.NewNetworkError("", "failed to connect to "+endpoint, err)
			}
			client = c
			return nil
		},
		Config: dialRetryConfig(opts),
		OnRetry: func(attempt int, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("dial failed, retrying")
		},
	}
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}

	c := &Conn{client: client, logger: log, opts: opts, endpoint: endpoint}
	if err := c.bootstrap(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info().
		Str("chain", c.runtime.SpecName).
		Uint32("spec_version", c.runtime.SpecVersion).
		Uint8("metadata_version", c.md.Version).
		Uint16("ss58_prefix", c.ss58).
		Msg("connected")
	return c, nil
}

func dialRetryConfig(opts Options) *cerrors.RetryConfig {
	cfg := cerrors.DefaultRetryConfig()
	if opts.DialRetries > 0 {
		cfg.MaxAttempts = opts.DialRetries
	}
	if opts.DialBackoff > 0 {
		cfg.InitialDelay = opts.DialBackoff
	}
	return cfg
}

func (c *Conn) bootstrap(ctx context.Context) error {
	if err := c.call(ctx, &c.genesis, "chain_getBlockHash", 0); err != nil {
		return err
	}
	if err := c.call(ctx, &c.runtime, "state_getRuntimeVersion"); err != nil {
		return err
	}

	raw, err := c.fetchMetadata(ctx)
	if err != nil {
		return err
	}
	md, err := metadata.Decode(raw)
	if err != nil {
		return cerrors.NewRPCError(c.ChainName(), "runtime metadata is not decodable", err)
	}
	c.md = md

	c.ss58 = keys.DefaultSS58Prefix
	switch {
	case c.opts.SS58Prefix >= 0:
		c.ss58 = uint16(c.opts.SS58Prefix)
	default:
		if constant, ok := md.Constant("System", "SS58Prefix"); ok {
			switch len(constant.Value) {
			case 1:
				c.ss58 = uint16(constant.Value[0])
			case 2:
				c.ss58 = uint16(constant.Value[0]) | uint16(constant.Value[1])<<8
			}
		}
	}
	return nil
}

// fetchMetadata prefers V15 through the runtime API and falls back to state_getMetadata.
func (c *Conn) fetchMetadata(ctx context.Context) ([]byte, error) {
	var opaque *string
	version := []byte{metadataVersion, 0, 0, 0}
	err := c.call(ctx, &opaque, "state_call", "Metadata_metadata_at_version", hexString(version))
	if err == nil && opaque != nil {
		if raw, ok := unwrapOpaqueMetadata(*opaque); ok {
			return raw, nil
		}
	}
	if err != nil {
		c.logger.Debug().Err(err).Msg("metadata_at_version unavailable, falling back")
	}

	var encoded string
	if err := c.call(ctx, &encoded, "state_getMetadata"); err != nil {
		return nil, err
	}
	raw, err := decodeHex(encoded)
	if err != nil {
		return nil, cerrors.NewRPCError(c.ChainName(), "state_getMetadata returned malformed hex", err)
	}
	return raw, nil
}

// unwrapOpaqueMetadata decodes Option<Vec<u8>>.
func unwrapOpaqueMetadata(s string) ([]byte, bool) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, false
	}
	d := scale.NewDecoder(b)
	some, err := d.Option()
	if err != nil || !some {
		return nil, false
	}
	raw, err := d.ByteSlice()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// ChainName returns the runtime spec name.
func (c *Conn) ChainName() string { return c.runtime.SpecName }

// Endpoint returns the dialed URL.
func (c *Conn) Endpoint() string { return c.endpoint }

// Genesis returns the genesis block hash.
func (c *Conn) Genesis() Hash { return c.genesis }

// Runtime returns the runtime version read at connection time.
func (c *Conn) Runtime() RuntimeVersion { return c.runtime }

// Metadata returns the runtime metadata.
func (c *Conn) Metadata() *metadata.Metadata { return c.md }

// SS58Prefix returns the address prefix used for logs and nonce lookups.
func (c *Conn) SS58Prefix() uint16 { return c.ss58 }

// MaterializeCall copies data and decodes it against the runtime metadata.
func (c *Conn) MaterializeCall(data []byte) (*Call, error) {
	buf := append([]byte(nil), data...)
	decoded, err := c.md.DecodeCall(buf, c.ss58)
	if err != nil {
		return nil, cerrors.NewCallDecodeError(c.ChainName(), "call data does not match the runtime metadata", err)
	}
	return &Call{data: buf, Decoded: decoded}, nil
}

// SubmitAndWatch signs call and returns a stream that submits it on the
// first pull after the signed event.
func (c *Conn) SubmitAndWatch(ctx context.Context, signer Signer, call *Call) (EventStream, error) {
	ext, err := c.sign(ctx, signer, call)
	if err != nil {
		return nil, err
	}
	return &txStream{conn: c, ext: ext}, nil
}

// Submit signs call, hands it to the node's pool and returns its hash.
func (c *Conn) Submit(ctx context.Context, signer Signer, call *Call) (Hash, error) {
	ext, err := c.sign(ctx, signer, call)
	if err != nil {
		return Hash{}, err
	}
	var hash Hash
	if err := c.call(ctx, &hash, "author_submitExtrinsic", hexString(ext.encoded)); err != nil {
		return Hash{}, err
	}
	return hash, nil
}

// Close closes the underlying connection. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
		c.logger.Debug().Msg("connection closed")
	})
	return c.closeErr
}

func (c *Conn) sign(ctx context.Context, signer Signer, call *Call) (*signedExtrinsic, error) {
	address := keys.EncodeAddress(signer.PublicKey(), c.ss58)
	var nonce uint64
	if err := c.call(ctx, &nonce, "system_accountNextIndex", address); err != nil {
		return nil, err
	}

	params := extrinsicParams{
		specVersion: c.runtime.SpecVersion,
		txVersion:   c.runtime.TransactionVersion,
		genesis:     c.genesis,
		checkpoint:  c.genesis,
		era:         ImmortalEra(),
		nonce:       nonce,
		tip:         c.opts.Tip,
	}
	if c.opts.MortalityPeriod > 0 {
		era, checkpoint, err := c.mortalEra(ctx)
		if err != nil {
			return nil, err
		}
		params.era = era
		params.checkpoint = checkpoint
	}

	ext, err := buildExtrinsic(c.md, signer, call.data, params)
	if err != nil {
		return nil, cerrors.NewInternalError(c.ChainName(), "failed to build extrinsic", err)
	}
	c.logger.Debug().
		Str("signer", address).
		Uint64("nonce", nonce).
		Uint64("era_period", params.era.Period).
		Str("tx_hash", ext.hash.Hex()).
		Msg("extrinsic built")
	return ext, nil
}

// mortalEra anchors the era at the latest finalized block.
func (c *Conn) mortalEra(ctx context.Context) (Era, Hash, error) {
	var head Hash
	if err := c.call(ctx, &head, "chain_getFinalizedHead"); err != nil {
		return Era{}, Hash{}, err
	}
	var header struct {
		Number string `json:"number"`
	}
	if err := c.call(ctx, &header, "chain_getHeader", head.Hex()); err != nil {
		return Era{}, Hash{}, err
	}
	number, err := parseBlockNumber(header.Number)
	if err != nil {
		return Era{}, Hash{}, cerrors.NewRPCError(c.ChainName(), "malformed header", err)
	}

	era := MortalEra(c.opts.MortalityPeriod, number)
	birth := era.Birth(number)
	if birth == number {
		return era, head, nil
	}
	var checkpoint Hash
	if err := c.call(ctx, &checkpoint, "chain_getBlockHash", birth); err != nil {
		return Era{}, Hash{}, err
	}
	return era, checkpoint, nil
}

// locate finds ext in the body of block.
func (c *Conn) locate(ctx context.Context, block Hash, ext []byte) (BlockRef, error) {
	var resp struct {
		Block struct {
			Header struct {
				Number string `json:"number"`
			} `json:"header"`
			Extrinsics []string `json:"extrinsics"`
		} `json:"block"`
	}
	ref := BlockRef{Hash: block}
	if err := c.call(ctx, &resp, "chain_getBlock", block.Hex()); err != nil {
		return ref, err
	}
	number, err := parseBlockNumber(resp.Block.Header.Number)
	if err != nil {
		return ref, cerrors.NewRPCError(c.ChainName(), "malformed block header", err)
	}
	ref.Number = number

	want := hexString(ext)
	for i, x := range resp.Block.Extrinsics {
		if strings.EqualFold(x, want) {
			ref.ExtrinsicIndex = uint32(i)
			ref.Located = true
			break
		}
	}
	return ref, nil
}

// dispatchResult reads System.Events at the block of ref.
func (c *Conn) dispatchResult(ctx context.Context, ref BlockRef) (*Dispatch, error) {
	var raw *string
	key := hexString(PlainStorageKey("System", "Events"))
	if err := c.call(ctx, &raw, "state_getStorage", key, ref.Hash.Hex()); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, cerrors.NewRPCError(c.ChainName(), "no events stored at block "+ref.Hash.Hex(), nil)
	}
	b, err := decodeHex(*raw)
	if err != nil {
		return nil, cerrors.NewRPCError(c.ChainName(), "malformed events storage", err)
	}
	dispatch, err := decodeDispatch(c.md, c.ss58, b, ref.ExtrinsicIndex)
	if err != nil {
		return nil, cerrors.NewRPCError(c.ChainName(), "cannot read dispatch result", err)
	}
	return dispatch, nil
}

// call performs one request under the request timeout and classifies failures.
func (c *Conn) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	if err := c.client.Call(ctx, result, method, params...); err != nil {
		return c.classify(err, method)
	}
	return nil
}

func (c *Conn) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Conn) classify(err error, method string) error {
	var rpcErr *rpc.Error
	switch {
	case errors.As(err, &rpcErr):
		return cerrors.NewRPCError(c.ChainName(), method+" failed", err)
	case errors.Is(err, context.DeadlineExceeded):
		return cerrors.NewTimeoutError(c.ChainName(), method+" timed out", err)
	default:
		return cerrors.NewNetworkError(c.ChainName(), method+" failed", err)
	}
}

// txStream implements EventStream over an author_submitAndWatchExtrinsic subscription.
type txStream struct {
	conn *Conn
	ext  *signedExtrinsic
	sub  *rpc.Subscription

	signed      bool
	broadcasted bool
	closed      bool
	closeOnce   sync.Once
	closeErr    error
}

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("event stream closed")

func (s *txStream) Next(ctx context.Context) (TxEvent, error) {
	if s.closed {
		return TxEvent{}, ErrStreamClosed
	}
	if !s.signed {
		s.signed = true
		return TxEvent{Kind: EventSigned, Hash: s.ext.hash}, nil
	}
	if s.sub == nil {
		subCtx, cancel := s.conn.requestContext(ctx)
		sub, err := s.conn.client.Subscribe(subCtx, methodSubmitAndWatch, methodUnwatch, hexString(s.ext.encoded))
		cancel()
		if err != nil {
			return TxEvent{}, s.conn.classify(err, methodSubmitAndWatch)
		}
		s.sub = sub
	}

	for {
		raw, err := s.sub.Next(ctx)
		if err != nil {
			return TxEvent{}, errors.Wrap(err, "watch extrinsic")
		}
		st, err := parseStatus(raw)
		if err != nil {
			return TxEvent{}, err
		}

		switch st.kind {
		case statusFuture, statusReady, statusBroadcast:
			if s.broadcasted {
				continue
			}
			s.broadcasted = true
			return TxEvent{Kind: EventBroadcasted, Hash: s.ext.hash}, nil

		case statusInBlock, statusRetracted:
			ref, err := s.conn.locate(ctx, *st.block, s.ext.encoded)
			if err != nil {
				s.conn.logger.Debug().Err(err).Str("block_hash", st.block.Hex()).Msg("cannot locate extrinsic in best block")
			}
			return TxEvent{Kind: EventBestBlock, Hash: s.ext.hash, Block: &ref, Retracted: st.kind == statusRetracted}, nil

		case statusFinalized:
			ref, err := s.conn.locate(ctx, *st.block, s.ext.encoded)
			if err != nil {
				return TxEvent{}, err
			}
			if !ref.Located {
				return TxEvent{}, errors.Errorf("extrinsic %s not found in finalized block %s", s.ext.hash.Hex(), st.block.Hex())
			}
			dispatch, err := s.conn.dispatchResult(ctx, ref)
			if err != nil {
				return TxEvent{}, err
			}
			return TxEvent{Kind: EventFinalized, Hash: s.ext.hash, Block: &ref, Dispatch: dispatch}, nil

		default:
			return TxEvent{}, &StatusError{Status: st.kind, Block: st.block}
		}
	}
}

func (s *txStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		if s.sub != nil {
			s.closeErr = s.sub.Unsubscribe()
		}
	})
	return s.closeErr
}

func parseBlockNumber(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func hexString(b []byte) string { return "0x" + hex.EncodeToString(b) }

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
