package chain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Transaction statuses pushed by author_submitAndWatchExtrinsic.
const (
	statusFuture          = "future"
	statusReady           = "ready"
	statusBroadcast       = "broadcast"
	statusInBlock         = "inBlock"
	statusRetracted       = "retracted"
	statusFinalityTimeout = "finalityTimeout"
	statusFinalized       = "finalized"
	statusUsurped         = "usurped"
	statusDropped         = "dropped"
	statusInvalid         = "invalid"
)

type txStatus struct {
	kind  string
	block *Hash
}

// parseStatus decodes a watch notification: either a bare string or an
// object with a single key.
func parseStatus(raw json.RawMessage) (txStatus, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case statusFuture, statusReady, statusDropped, statusInvalid:
			return txStatus{kind: s}, nil
		default:
			return txStatus{}, errors.Errorf("unknown transaction status %q", s)
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return txStatus{}, errors.Wrap(err, "decode transaction status")
	}
	if len(obj) != 1 {
		return txStatus{}, errors.Errorf("malformed transaction status %s", string(raw))
	}
	for kind, value := range obj {
		switch kind {
		case statusBroadcast:
			return txStatus{kind: kind}, nil
		case statusInBlock, statusRetracted, statusFinalityTimeout, statusFinalized:
			var h Hash
			if err := json.Unmarshal(value, &h); err != nil {
				return txStatus{}, errors.Wrapf(err, "status %s", kind)
			}
			return txStatus{kind: kind, block: &h}, nil
		case statusUsurped:
			// carries the hash of the replacing extrinsic
			var h Hash
			if err := json.Unmarshal(value, &h); err != nil {
				return txStatus{}, errors.Wrapf(err, "status %s", kind)
			}
			return txStatus{kind: kind, block: &h}, nil
		default:
			return txStatus{}, errors.Errorf("unknown transaction status %q", kind)
		}
	}
	return txStatus{}, errors.New("empty transaction status")
}
