package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/virto-network/subskribinto/extrinsicClient/chain"
	"github.com/virto-network/subskribinto/extrinsicClient/keys"
	"github.com/virto-network/subskribinto/extrinsicClient/tracker"
)

// Connection is a chain connection owned by one SignAndSubmit invocation.
type Connection interface {
	tracker.Connection
	SS58Prefix() uint16
	MaterializeCall(data []byte) (*chain.Call, error)
	Close() error
}

// Capability is a resolved signing capability whose secret can be erased.
type Capability interface {
	chain.Signer
	Wipe()
}

// Dialer opens a connection to an endpoint.
type Dialer func(ctx context.Context, endpoint string) (Connection, error)

// Resolver turns a credential source into a signing capability.
type Resolver func(src keys.CredentialSource) (Capability, error)

// ChainDialer dials with chain.Open.
func ChainDialer(opts chain.Options, logger zerolog.Logger) Dialer {
	return func(ctx context.Context, endpoint string) (Connection, error) {
		conn, err := chain.Open(ctx, endpoint, opts, logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// KeystoreResolver resolves credentials with keys.Resolve.
func KeystoreResolver(src keys.CredentialSource) (Capability, error) {
	capability, err := keys.Resolve(src)
	if err != nil {
		return nil, err
	}
	return capability, nil
}
