package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntent(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		amount  *big.Int
		wantErr error
	}{
		{name: "inc", op: OpInc},
		{name: "dec", op: OpDec},
		{name: "incBy", op: OpIncBy, amount: big.NewInt(5)},
		{name: "decBy max", op: OpDecBy, amount: math.MaxBig256},
		{name: "unknown", op: "reset", wantErr: ErrUnknownOperation},
		{name: "inc with amount", op: OpInc, amount: big.NewInt(2), wantErr: ErrUnexpectedAmount},
		{name: "incBy missing", op: OpIncBy, wantErr: ErrAmountRequired},
		{name: "incBy zero", op: OpIncBy, amount: big.NewInt(0), wantErr: ErrAmountNotPositive},
		{name: "decBy negative", op: OpDecBy, amount: big.NewInt(-1), wantErr: ErrAmountNotPositive},
		{name: "incBy overflow", op: OpIncBy, amount: new(big.Int).Add(math.MaxBig256, big.NewInt(1)), wantErr: ErrAmountTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			intent, err := NewIntent(tc.op, tc.amount)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.op, intent.Op)
		})
	}
}

func TestIntentCopiesAmount(t *testing.T) {
	amount := big.NewInt(7)
	intent, err := NewIntent(OpIncBy, amount)
	require.NoError(t, err)

	amount.SetInt64(100)
	assert.Equal(t, int64(7), intent.Amount.Int64())
}

func TestIntentDelta(t *testing.T) {
	dec, _ := NewIntent(OpDec, nil)
	decBy, _ := NewIntent(OpDecBy, big.NewInt(4))
	incBy, _ := NewIntent(OpIncBy, big.NewInt(9))

	assert.Equal(t, int64(-1), dec.Delta().Int64())
	assert.Equal(t, int64(-4), decBy.Delta().Int64())
	assert.Equal(t, int64(9), incBy.Delta().Int64())
}
