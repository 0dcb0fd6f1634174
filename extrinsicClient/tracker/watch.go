package tracker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/virto-network/subskribinto/extrinsicClient/chain"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
)

type state int

const (
	awaitingSigned state = iota
	awaitingBroadcast
	awaitingFinality
	done
)

func (s state) String() string {
	switch s {
	case awaitingSigned:
		return "awaiting_signed"
	case awaitingBroadcast:
		return "awaiting_broadcast"
	case awaitingFinality:
		return "awaiting_finality"
	default:
		return "done"
	}
}

// watch is the state machine of one watched submission. It is driven by a
// single goroutine pulling from the stream.
type watch struct {
	log    zerolog.Logger
	chain  string
	stream chain.EventStream
	state  state
	hash   chain.Hash

	outcome *Outcome
	err     error
}

func (w *watch) run(ctx context.Context) (*Outcome, error) {
	for w.state != done {
		ev, err := w.stream.Next(ctx)
		if err != nil {
			w.reject(err)
			break
		}
		w.handle(ev)
	}
	return w.outcome, w.err
}

func (w *watch) handle(ev chain.TxEvent) {
	if !ev.Hash.IsZero() {
		w.hash = ev.Hash
	}

	switch ev.Kind {
	case chain.EventSigned:
		if w.state != awaitingSigned {
			return
		}
		w.log.Info().Str("tx_hash", ev.Hash.Hex()).Msg("call signed")
		w.state = awaitingBroadcast

	case chain.EventBroadcasted:
		if w.state > awaitingBroadcast {
			return
		}
		w.log.Info().Str("tx_hash", w.hash.Hex()).Msg("transaction submitted")
		w.state = awaitingFinality

	case chain.EventBestBlock:
		w.state = awaitingFinality
		msg := "transaction included in block"
		if ev.Retracted {
			msg = "transaction retracted from block"
		}
		w.logBlock(w.log.Info(), ev.Block).Msg(msg)

	case chain.EventFinalized:
		if ev.Block == nil || ev.Dispatch == nil {
			w.reject(errors.New("finalized event without block or dispatch result"))
			return
		}
		e := w.logBlock(w.log.Info(), ev.Block).
			Bool("success", ev.Dispatch.Success).
			Strs("events", ev.Dispatch.Events)
		if !ev.Dispatch.Success {
			e = e.Str("dispatch_error", ev.Dispatch.Error)
		}
		e.Msg("transaction finalized")

		w.resolve(&Outcome{
			Hash: w.hash,
			Finalized: &Finalized{
				BlockNumber:    ev.Block.Number,
				BlockHash:      ev.Block.Hash,
				ExtrinsicIndex: ev.Block.ExtrinsicIndex,
				Dispatch:       *ev.Dispatch,
			},
		})

	default:
		w.log.Debug().Int("kind", int(ev.Kind)).Msg("ignoring unknown event")
	}
}

func (w *watch) logBlock(e *zerolog.Event, ref *chain.BlockRef) *zerolog.Event {
	e = e.Str("tx_hash", w.hash.Hex())
	if ref == nil {
		return e
	}
	e = e.Str("block_hash", ref.Hash.Hex())
	if ref.Located {
		e = e.Uint64("block_number", ref.Number).Uint32("extrinsic_index", ref.ExtrinsicIndex)
	}
	return e
}

func (w *watch) resolve(o *Outcome) {
	w.complete(o, nil)
}

func (w *watch) reject(cause error) {
	if w.state == done {
		return
	}
	w.log.Warn().Err(cause).Str("state", w.state.String()).Msg("transaction rejected")
	w.complete(nil, cerrors.NewSubmissionRejectedError(w.chain, "transaction rejected", cause))
}

// complete is the completion latch: the first call settles the watch and
// closes the stream, later calls are no-ops.
func (w *watch) complete(o *Outcome, err error) {
	if w.state == done {
		return
	}
	if closeErr := w.stream.Close(); closeErr != nil {
		w.log.Debug().Err(closeErr).Msg("closing event stream")
	}
	w.state = done
	w.outcome = o
	w.err = err
}
