package domain

import (
	"fmt"
	"strings"
)

// AssetRef identifies one non-fungible asset by collection and token id.
// Assets are not owned by the engine, only referenced; custody lives with
// the external registry.
type AssetRef struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
}

func (a AssetRef) String() string {
	return fmt.Sprintf("%s/%d", a.Collection, a.TokenID)
}

type MediumKind string

const (
	// BaseCurrency means payment arrives as the attached value of the call.
	BaseCurrency MediumKind = "BASE"
	// FungibleToken means payment is pulled from a token collaborator.
	FungibleToken MediumKind = "TOKEN"
)

// PaymentMedium is a tagged variant: either base currency or a reference
// to a fungible-token collaborator. Two media are equal iff both are base
// currency or both reference the same token.
type PaymentMedium struct {
	Kind  MediumKind `json:"kind"`
	Token string     `json:"token,omitempty"`
}

func Base() PaymentMedium {
	return PaymentMedium{Kind: BaseCurrency}
}

func Token(ref string) PaymentMedium {
	return PaymentMedium{Kind: FungibleToken, Token: ref}
}

func (m PaymentMedium) IsBase() bool { return m.Kind == BaseCurrency }

func (m PaymentMedium) String() string {
	if m.IsBase() {
		return "base"
	}
	return "token:" + m.Token
}

// ParseMedium reverses PaymentMedium.String.
func ParseMedium(s string) (PaymentMedium, error) {
	if s == "base" {
		return Base(), nil
	}
	if ref, ok := strings.CutPrefix(s, "token:"); ok && ref != "" {
		return Token(ref), nil
	}
	return PaymentMedium{}, fmt.Errorf("invalid payment medium %q", s)
}

// TreasuryKey addresses one balance-owed entry in the treasury ledger.
type TreasuryKey struct {
	Principal string        `json:"principal"`
	Medium    PaymentMedium `json:"medium"`
}
