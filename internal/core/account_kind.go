package core

import (
	"encoding/json"
	"fmt"
)

// AccountKind is the client-facing account classification. On the wire the
// backend speaks a fixed set of uppercase kinds; the mapping is bidirectional
// and unknown wire values fail decoding rather than passing through.
type AccountKind string

const (
	AccountCurrent    AccountKind = "current"
	AccountSavings    AccountKind = "savings"
	AccountCreditCard AccountKind = "credit-card"
)

const (
	wireKindCurrent    = "CORRENTE"
	wireKindSavings    = "POUPANCA"
	wireKindCreditCard = "CARTAO_CREDITO"
)

// IsValid reports whether the kind is one of the three known kinds.
func (k AccountKind) IsValid() bool {
	switch k {
	case AccountCurrent, AccountSavings, AccountCreditCard:
		return true
	default:
		return false
	}
}

// WireValue returns the backend representation of the kind.
func (k AccountKind) WireValue() (string, error) {
	switch k {
	case AccountCurrent:
		return wireKindCurrent, nil
	case AccountSavings:
		return wireKindSavings, nil
	case AccountCreditCard:
		return wireKindCreditCard, nil
	default:
		return "", fmt.Errorf("unknown account kind: %q", string(k))
	}
}

// AccountKindFromWire maps a backend kind to the client-facing kind.
func AccountKindFromWire(wire string) (AccountKind, error) {
	switch wire {
	case wireKindCurrent:
		return AccountCurrent, nil
	case wireKindSavings:
		return AccountSavings, nil
	case wireKindCreditCard:
		return AccountCreditCard, nil
	default:
		return "", fmt.Errorf("unknown wire account kind: %q", wire)
	}
}

// MarshalJSON encodes the kind in its wire representation.
func (k AccountKind) MarshalJSON() ([]byte, error) {
	wire, err := k.WireValue()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a wire kind.
func (k *AccountKind) UnmarshalJSON(data []byte) error {
	var wire string
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	kind, err := AccountKindFromWire(wire)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
