package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reader is the read-only query capability.
type Reader interface {
	ReadCounter(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Writer is the authenticated write capability bound to one account.
// Submit returns once the transaction is broadcast; it does not wait for inclusion.
type Writer interface {
	Submit(ctx context.Context, intent Intent) (common.Hash, error)
}

// ReceiptSource lets the lifecycle manager observe inclusion.
type ReceiptSource interface {
	// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// ReplayFailure re-executes a mined failing transaction and returns the revert error.
	ReplayFailure(ctx context.Context, hash common.Hash, block *big.Int) error
}

// EventSource exposes the contract's emitted Increment/Decrement totals.
type EventSource interface {
	ReadCounter(ctx context.Context) (*big.Int, error)
	EventTotals(ctx context.Context, fromBlock uint64) (EventTotals, error)
}

// HealthChecker is implemented by clients that can probe RPC connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Client is everything the bridge needs from the ledger.
type Client interface {
	Reader
	Writer
	ReceiptSource
	EventSource
	HealthChecker
}

// EventTotals sums event amounts over a block range.
type EventTotals struct {
	Increments *big.Int
	Decrements *big.Int
	Count      int
}

// Net is Increments minus Decrements.
func (t EventTotals) Net() *big.Int {
	return new(big.Int).Sub(t.Increments, t.Decrements)
}

var (
	_ Client = (*EthClient)(nil)
	_ Client = (*FakeLedger)(nil)
)
