// Package tracker follows a submitted extrinsic through its lifecycle and
// settles it into exactly one outcome.
package tracker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/virto-network/subskribinto/extrinsicClient/chain"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
)

// Connection is the part of a chain connection the tracker drives.
type Connection interface {
	ChainName() string
	SubmitAndWatch(ctx context.Context, signer chain.Signer, call *chain.Call) (chain.EventStream, error)
	Submit(ctx context.Context, signer chain.Signer, call *chain.Call) (chain.Hash, error)
}

// Finalized locates a finalized extrinsic and carries its dispatch result.
type Finalized struct {
	BlockNumber    uint64
	BlockHash      chain.Hash
	ExtrinsicIndex uint32
	Dispatch       chain.Dispatch
}

// Outcome is the result of one submission. Finalized is nil in fire-and-wait mode.
type Outcome struct {
	Hash      chain.Hash
	Finalized *Finalized
}

// Tracker submits extrinsics and reports their lifecycle.
type Tracker struct {
	logger zerolog.Logger
}

// New creates a tracker logging under the "tracker" component.
func New(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger.With().Str("component", "tracker").Logger()}
}

// Watch submits call and follows it until finality. A finalized extrinsic is
// a successful outcome even when its dispatch failed; anything that ends the
// watch earlier is a SUBMISSION_REJECTED error.
func (t *Tracker) Watch(ctx context.Context, signer chain.Signer, call *chain.Call, conn Connection) (*Outcome, error) {
	stream, err := conn.SubmitAndWatch(ctx, signer, call)
	if err != nil {
		t.logger.Warn().Err(err).Msg("transaction rejected")
		return nil, cerrors.NewSubmissionRejectedError(conn.ChainName(), "transaction rejected", err)
	}

	w := &watch{
		log:    t.logger,
		chain:  conn.ChainName(),
		stream: stream,
		state:  awaitingSigned,
	}
	return w.run(ctx)
}

// Submit hands call to the node's pool and returns as soon as it is accepted.
func (t *Tracker) Submit(ctx context.Context, signer chain.Signer, call *chain.Call, conn Connection) (*Outcome, error) {
	hash, err := conn.Submit(ctx, signer, call)
	if err != nil {
		t.logger.Warn().Err(err).Msg("transaction rejected")
		return nil, cerrors.NewSubmissionRejectedError(conn.ChainName(), "transaction rejected", err)
	}
	t.logger.Info().Str("tx_hash", hash.Hex()).Msg("transaction submitted")
	return &Outcome{Hash: hash}, nil
}
