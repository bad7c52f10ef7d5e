package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"counterbridge/internal/contracts"
)

// Operation names a state-mutating Counter call.
type Operation string

const (
	OpInc   Operation = contracts.MethodInc
	OpIncBy Operation = contracts.MethodIncBy
	OpDec   Operation = contracts.MethodDec
	OpDecBy Operation = contracts.MethodDecBy
)

var (
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrAmountRequired    = errors.New("amount is required")
	ErrUnexpectedAmount  = errors.New("operation does not take an amount")
	ErrAmountNotPositive = errors.New("amount must be strictly positive")
	ErrAmountTooLarge    = errors.New("amount exceeds uint256")
)

// TakesAmount reports whether the operation carries an explicit amount.
func (o Operation) TakesAmount() bool {
	return o == OpIncBy || o == OpDecBy
}

// Decrements reports whether the operation lowers the counter.
func (o Operation) Decrements() bool {
	return o == OpDec || o == OpDecBy
}

func (o Operation) valid() bool {
	switch o {
	case OpInc, OpIncBy, OpDec, OpDecBy:
		return true
	}
	return false
}

// Describe returns a short human phrase for messages, e.g. "decrement counter by amount".
func (o Operation) Describe() string {
	switch o {
	case OpInc:
		return "increment counter"
	case OpIncBy:
		return "increment counter by amount"
	case OpDec:
		return "decrement counter"
	case OpDecBy:
		return "decrement counter by amount"
	}
	return string(o)
}

// Intent is one write request bound for the chain.
type Intent struct {
	Op     Operation
	Amount *big.Int
}

// NewIntent validates op and amount. Amount must be nil for inc/dec and
// within (0, 2^256) for incBy/decBy.
func NewIntent(op Operation, amount *big.Int) (Intent, error) {
	if !op.valid() {
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if !op.TakesAmount() {
		if amount != nil {
			return Intent{}, ErrUnexpectedAmount
		}
		return Intent{Op: op}, nil
	}
	if amount == nil {
		return Intent{}, ErrAmountRequired
	}
	if amount.Sign() <= 0 {
		return Intent{}, ErrAmountNotPositive
	}
	if amount.Cmp(math.MaxBig256) > 0 {
		return Intent{}, ErrAmountTooLarge
	}
	return Intent{Op: op, Amount: new(big.Int).Set(amount)}, nil
}

// Delta is the signed change the intent asks for.
func (i Intent) Delta() *big.Int {
	delta := big.NewInt(1)
	if i.Amount != nil {
		delta.Set(i.Amount)
	}
	if i.Op.Decrements() {
		delta.Neg(delta)
	}
	return delta
}

func (i Intent) args() []interface{} {
	if i.Op.TakesAmount() {
		return []interface{}{i.Amount}
	}
	return nil
}
