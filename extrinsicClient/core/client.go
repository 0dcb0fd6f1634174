// Package core composes credential resolution, call materialization and
// submission tracking into a single sign-and-submit operation.
package core

import (
	"context"
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/virto-network/subskribinto/extrinsicClient/config"
	cerrors "github.com/virto-network/subskribinto/extrinsicClient/errors"
	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/tracker"
)

// Config wires the collaborators of a Client.
type Config struct {
	Dialer   Dialer
	Resolver Resolver // defaults to KeystoreResolver
	Logger   zerolog.Logger
}

// Request is one sign-and-submit invocation.
type Request struct {
	Credential keys.CredentialSource
	CallData   []byte
	Endpoint   string
	Mode       config.SubmitMode // defaults to watch
}

// Client signs and submits calls.
type Client struct {
	dial    Dialer
	resolve Resolver
	tracker *tracker.Tracker
	logger  zerolog.Logger
}

// NewClient creates a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Dialer == nil {
		return nil, cerrors.NewConfigError("dialer is required")
	}
	resolve := cfg.Resolver
	if resolve == nil {
		resolve = KeystoreResolver
	}
	return &Client{
		dial:    cfg.Dialer,
		resolve: resolve,
		tracker: tracker.New(cfg.Logger),
		logger:  cfg.Logger.With().Str("component", "core").Logger(),
	}, nil
}

// SignAndSubmit resolves the credential, connects, materializes the call and
// tracks its submission in the requested mode. The credential is resolved
// before any network access; the connection is closed exactly once on every
// path after a successful dial.
func (c *Client) SignAndSubmit(ctx context.Context, req Request) (outcome *tracker.Outcome, err error) {
	mode := req.Mode
	if mode == "" {
		mode = config.SubmitModeWatch
	}
	if mode != config.SubmitModeWatch && mode != config.SubmitModeFireAndWait {
		return nil, cerrors.NewValidationError("", "unknown submit mode "+string(mode))
	}

	capability, err := c.resolve(req.Credential)
	if err != nil {
		return nil, err
	}
	defer capability.Wipe()

	conn, err := c.dial(ctx, req.Endpoint)
	if err != nil {
		return nil, err
	}
	defer func() {
		closeErr := conn.Close()
		if closeErr == nil {
			return
		}
		if err == nil {
			c.logger.Warn().Err(closeErr).Msg("failed to close connection")
			return
		}
		group := cerrors.NewErrorGroup()
		group.Add(err)
		group.Add(cerrors.Wrap(closeErr, "close connection"))
		err = group.Err()
	}()

	call, err := conn.MaterializeCall(req.CallData)
	if err != nil {
		return nil, err
	}

	e := c.logger.Info().
		Str("chain", conn.ChainName()).
		Str("signer", keys.EncodeAddress(capability.PublicKey(), conn.SS58Prefix())).
		Str("mode", string(mode))
	if call.Decoded != nil {
		e = e.Str("pallet", call.Decoded.Pallet).Str("call", call.Decoded.Name)
		if args, argsErr := call.Decoded.ArgsJSON(); argsErr == nil {
			e = e.RawJSON("args", []byte(args))
		} else {
			c.logger.Debug().Err(argsErr).Msg("failed to render call arguments")
			e = e.Str("call_data", "0x"+hex.EncodeToString(call.Bytes()))
		}
	} else {
		e = e.Str("call_data", "0x"+hex.EncodeToString(call.Bytes()))
	}
	e.Msg("decoded call")

	if mode == config.SubmitModeFireAndWait {
		return c.tracker.Submit(ctx, capability, call, conn)
	}
	return c.tracker.Watch(ctx, capability, call, conn)
}
