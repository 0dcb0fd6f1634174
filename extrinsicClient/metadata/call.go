package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/virto-network/subskribinto/extrinsicClient/scale"
)

// DecodedCall is a runtime call resolved against metadata.
type DecodedCall struct {
	Pallet      string
	PalletIndex uint8
	Name        string
	CallIndex   uint8
	Args        []NamedValue
}

// DecodeCall resolves call bytes (pallet index, call index, arguments). Every
// byte must be consumed.
func (m *Metadata) DecodeCall(data []byte, ss58Prefix uint16) (*DecodedCall, error) {
	if len(data) < 2 {
		return nil, errors.Errorf("call data too short (%d bytes)", len(data))
	}
	pallet, ok := m.PalletByIndex(data[0])
	if !ok {
		return nil, errors.Errorf("no pallet with index %d", data[0])
	}
	if pallet.Calls == nil {
		return nil, errors.Errorf("pallet %s has no calls", pallet.Name)
	}
	t, err := m.Types.Lookup(*pallet.Calls)
	if err != nil {
		return nil, err
	}
	variant, ok := t.VariantByIndex(data[1])
	if !ok {
		return nil, errors.Errorf("pallet %s has no call with index %d", pallet.Name, data[1])
	}

	d := scale.NewDecoder(data[2:])
	args, err := NewValueDecoder(m.Types, ss58Prefix).fields(variant.Fields, d, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "%s::%s", pallet.Name, variant.Name)
	}
	if d.Remaining() != 0 {
		return nil, errors.Errorf("%s::%s leaves %d trailing bytes", pallet.Name, variant.Name, d.Remaining())
	}
	return &DecodedCall{
		Pallet:      pallet.Name,
		PalletIndex: pallet.Index,
		Name:        variant.Name,
		CallIndex:   variant.Index,
		Args:        args,
	}, nil
}

// ArgsJSON renders the call arguments as an ordered JSON object.
func (c *DecodedCall) ArgsJSON() (string, error) {
	var buf bytes.Buffer
	if len(c.Args) == 0 {
		return "{}", nil
	}
	if err := writeFields(&buf, c.Args); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// String renders the call as Pallet::call(args).
func (c *DecodedCall) String() string {
	args, err := c.ArgsJSON()
	if err != nil {
		args = "?"
	}
	args = strings.TrimSuffix(strings.TrimPrefix(args, "{"), "}")
	return fmt.Sprintf("%s::%s(%s)", c.Pallet, c.Name, args)
}

// MarshalJSON renders {"pallet":..,"call":..,"args":{..}}.
func (c *DecodedCall) MarshalJSON() ([]byte, error) {
	args, err := c.ArgsJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Pallet string          `json:"pallet"`
		Call   string          `json:"call"`
		Args   json.RawMessage `json:"args"`
	}{c.Pallet, c.Name, json.RawMessage(args)})
}
