package core

import "github.com/dkrasnova/marketplace-engine/internal/domain"

// treasury is the single place funds are recognized as owed. Balances are
// keyed by (principal, medium) and never go negative. Not safe for
// concurrent use on its own; the engine's mutex serializes access.
type treasury struct {
	balances map[domain.TreasuryKey]uint64
}

func newTreasury() *treasury {
	return &treasury{balances: make(map[domain.TreasuryKey]uint64)}
}

// Credit always succeeds; unseen keys start from zero.
func (t *treasury) Credit(principal string, medium domain.PaymentMedium, amount uint64) domain.TreasuryKey {
	key := domain.TreasuryKey{Principal: principal, Medium: medium}
	t.balances[key] += amount
	return key
}

// Debit fails with ErrInsufficientBalance if amount exceeds the entry.
func (t *treasury) Debit(principal string, medium domain.PaymentMedium, amount uint64) (domain.TreasuryKey, error) {
	key := domain.TreasuryKey{Principal: principal, Medium: medium}
	if t.balances[key] < amount {
		return key, ErrInsufficientBalance
	}
	t.balances[key] -= amount
	return key, nil
}

func (t *treasury) BalanceOf(principal string, medium domain.PaymentMedium) uint64 {
	return t.balances[domain.TreasuryKey{Principal: principal, Medium: medium}]
}
