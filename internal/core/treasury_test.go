package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnova/marketplace-engine/internal/domain"
)

func TestTreasury_CreditAndBalance(t *testing.T) {
	tr := newTreasury()

	assert.Equal(t, uint64(0), tr.BalanceOf("alice", domain.Base()))

	tr.Credit("alice", domain.Base(), 5)
	tr.Credit("alice", domain.Base(), 3)
	assert.Equal(t, uint64(8), tr.BalanceOf("alice", domain.Base()))

	// same principal, different medium is a different entry
	tr.Credit("alice", domain.Token("USDT"), 2)
	assert.Equal(t, uint64(8), tr.BalanceOf("alice", domain.Base()))
	assert.Equal(t, uint64(2), tr.BalanceOf("alice", domain.Token("USDT")))
	assert.Equal(t, uint64(0), tr.BalanceOf("alice", domain.Token("DAI")))
}

func TestTreasury_Debit(t *testing.T) {
	tr := newTreasury()
	tr.Credit("bob", domain.Token("USDT"), 10)

	_, err := tr.Debit("bob", domain.Token("USDT"), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), tr.BalanceOf("bob", domain.Token("USDT")))

	_, err = tr.Debit("bob", domain.Token("USDT"), 7)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	// failed debit leaves the entry untouched
	assert.Equal(t, uint64(6), tr.BalanceOf("bob", domain.Token("USDT")))

	_, err = tr.Debit("bob", domain.Base(), 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTreasury_DebitUnseenKey(t *testing.T) {
	tr := newTreasury()
	_, err := tr.Debit("nobody", domain.Base(), 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}
