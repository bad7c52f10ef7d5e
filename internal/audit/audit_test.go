package audit

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counterbridge/internal/chain"
)

func apply(t *testing.T, ledger *chain.FakeLedger, op chain.Operation, amount int64) {
	t.Helper()
	var amt *big.Int
	if op.TakesAmount() {
		amt = big.NewInt(amount)
	}
	intent, err := chain.NewIntent(op, amt)
	require.NoError(t, err)
	_, err = ledger.Submit(context.Background(), intent)
	require.NoError(t, err)
}

func TestVerifyIncrementsOnly(t *testing.T) {
	ledger := chain.NewFakeLedger(0)
	for i := int64(1); i <= 10; i++ {
		apply(t, ledger, chain.OpIncBy, i)
	}

	report, err := Verify(context.Background(), ledger, 0, nil)
	require.NoError(t, err)
	assert.True(t, report.Balanced(), report.String())
	assert.Equal(t, int64(55), report.Value.Int64())
	assert.Equal(t, 10, report.Events)
}

func TestVerifyMixedWithBaseline(t *testing.T) {
	ctx := context.Background()
	ledger := chain.NewFakeLedger(0)
	apply(t, ledger, chain.OpIncBy, 4)
	from, _ := ledger.BlockNumber(ctx)
	from++

	for i := int64(1); i <= 5; i++ {
		apply(t, ledger, chain.OpIncBy, i)
	}
	for i := int64(1); i <= 3; i++ {
		apply(t, ledger, chain.OpDecBy, i)
	}
	apply(t, ledger, chain.OpDec, 0)

	report, err := Verify(ctx, ledger, from, big.NewInt(4))
	require.NoError(t, err)
	assert.True(t, report.Balanced(), report.String())
	assert.Equal(t, int64(7), report.Decrements.Int64())

	unbalanced, err := Verify(ctx, ledger, from, nil)
	require.NoError(t, err)
	assert.False(t, unbalanced.Balanced())
}

func TestVerifyReadFailure(t *testing.T) {
	ledger := chain.NewFakeLedger(0)
	ledger.ReadErr = errors.New("rpc down")

	_, err := Verify(context.Background(), ledger, 0, nil)
	require.ErrorContains(t, err, "rpc down")
}
