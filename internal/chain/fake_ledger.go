package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// UnderflowReason is the revert string the fake contract uses for decrements below zero.
const UnderflowReason = "Counter: cannot be decremented below zero"

// FakeLedger is an in-memory Counter deployment that mines one block per accepted
// transaction. It is safe for concurrent use.
type FakeLedger struct {
	mu sync.Mutex

	value    *big.Int
	block    uint64
	nonce    uint64
	receipts map[common.Hash]*types.Receipt
	pending  map[common.Hash]int
	reverts  map[common.Hash]error
	events   []fakeEvent

	// ReadErr and SubmitErr, when set, fail the respective capability.
	ReadErr   error
	SubmitErr error
	// RevertOnChain skips the pre-flight check so underflows are mined with a failed status.
	RevertOnChain bool
	// PendingPolls is how many receipt lookups report NotFound before inclusion.
	PendingPolls int

	submissions int
}

type fakeEvent struct {
	block     uint64
	decrement bool
	by        *big.Int
}

func NewFakeLedger(initial int64) *FakeLedger {
	return &FakeLedger{
		value:    big.NewInt(initial),
		block:    1,
		receipts: make(map[common.Hash]*types.Receipt),
		pending:  make(map[common.Hash]int),
		reverts:  make(map[common.Hash]error),
	}
}

// Submissions counts transactions that reached the ledger, including rejected ones.
func (f *FakeLedger) Submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions
}

func (f *FakeLedger) ReadCounter(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, readErr(f.ReadErr)
	}
	return new(big.Int).Set(f.value), nil
}

func (f *FakeLedger) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return 0, readErr(f.ReadErr)
	}
	return f.block, nil
}

func (f *FakeLedger) Ping(ctx context.Context) error {
	_, err := f.BlockNumber(ctx)
	return err
}

func (f *FakeLedger) Submit(_ context.Context, intent Intent) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions++

	if f.SubmitErr != nil {
		return common.Hash{}, writeErr(intent.Op, f.SubmitErr)
	}

	delta := intent.Delta()
	next := new(big.Int).Add(f.value, delta)
	underflow := next.Sign() < 0
	if underflow && !f.RevertOnChain {
		return common.Hash{}, writeErr(intent.Op, fmt.Errorf("simulate: %w", NewRevertError(UnderflowReason)))
	}

	f.nonce++
	f.block++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], f.nonce)
	hash := crypto.Keccak256Hash([]byte(intent.Op), seed[:])

	status := types.ReceiptStatusSuccessful
	if underflow {
		status = types.ReceiptStatusFailed
		f.reverts[hash] = NewRevertError(UnderflowReason)
	} else {
		f.value = next
		f.events = append(f.events, fakeEvent{
			block:     f.block,
			decrement: intent.Op.Decrements(),
			by:        new(big.Int).Abs(delta),
		})
	}

	f.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(f.block),
	}
	f.pending[hash] = f.PendingPolls
	return hash, nil
}

func (f *FakeLedger) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if f.pending[hash] > 0 {
		f.pending[hash]--
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *FakeLedger) ReplayFailure(_ context.Context, hash common.Hash, _ *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reverts[hash]
}

func (f *FakeLedger) EventTotals(_ context.Context, fromBlock uint64) (EventTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return EventTotals{}, readErr(f.ReadErr)
	}
	totals := EventTotals{Increments: new(big.Int), Decrements: new(big.Int)}
	for _, ev := range f.events {
		if ev.block < fromBlock {
			continue
		}
		if ev.decrement {
			totals.Decrements.Add(totals.Decrements, ev.by)
		} else {
			totals.Increments.Add(totals.Increments, ev.by)
		}
		totals.Count++
	}
	return totals, nil
}

// RevertError mimics a JSON-RPC "execution reverted" error carrying Error(string) data.
type RevertError struct {
	Reason string
	data   string
}

// NewRevertError encodes reason the way a node reports a require() failure.
func NewRevertError(reason string) *RevertError {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringTy}}.Pack(reason)
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &RevertError{
		Reason: reason,
		data:   hexutil.Encode(append(selector, packed...)),
	}
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// ErrorData implements rpc.DataError.
func (e *RevertError) ErrorData() interface{} {
	return e.data
}
