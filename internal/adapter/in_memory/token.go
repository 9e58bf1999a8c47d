package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkrasnova/marketplace-engine/internal/port"
)

var _ port.TokenPayment = (*TokenLedger)(nil)

// TokenLedger is an in-process fungible-token collaborator: balances and
// pull allowances per token symbol. Allowances authorize the operator (the
// settlement engine's escrow account) to pull from a holder; the operator
// moves its own funds without an allowance.
type TokenLedger struct {
	operator string

	mu         sync.Mutex
	balances   map[string]map[string]uint64 // token -> holder -> balance
	allowances map[string]map[string]uint64 // token -> holder -> pull allowance
}

func NewTokenLedger(operator string) *TokenLedger {
	return &TokenLedger{
		operator:   operator,
		balances:   make(map[string]map[string]uint64),
		allowances: make(map[string]map[string]uint64),
	}
}

func (l *TokenLedger) Mint(token, holder string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[token] == nil {
		l.balances[token] = make(map[string]uint64)
	}
	l.balances[token][holder] += amount
}

// Approve sets the amount the operator may pull from holder's balance.
func (l *TokenLedger) Approve(token, holder string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[token] == nil {
		l.allowances[token] = make(map[string]uint64)
	}
	l.allowances[token][holder] = amount
}

func (l *TokenLedger) BalanceOf(token, holder string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[token][holder]
}

func (l *TokenLedger) PullTransfer(ctx context.Context, token, from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[token][from] < amount {
		return fmt.Errorf("token %s: insufficient balance of %s", token, from)
	}
	if from != l.operator {
		if l.allowances[token] == nil || l.allowances[token][from] < amount {
			return fmt.Errorf("token %s: insufficient allowance from %s", token, from)
		}
		l.allowances[token][from] -= amount
	}
	l.balances[token][from] -= amount
	l.balances[token][to] += amount
	return nil
}
