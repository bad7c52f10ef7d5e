// Package audit checks that the counter agrees with the events it emitted.
package audit

import (
	"context"
	"fmt"
	"math/big"

	"counterbridge/internal/chain"
)

// Report compares the on-chain value with the event ledger since FromBlock.
type Report struct {
	FromBlock  uint64
	Value      *big.Int
	Increments *big.Int
	Decrements *big.Int
	Events     int
	// Baseline is the value the counter held before FromBlock.
	Baseline *big.Int
}

// Expected is Baseline + Increments - Decrements.
func (r Report) Expected() *big.Int {
	out := new(big.Int).Add(r.Baseline, r.Increments)
	return out.Sub(out, r.Decrements)
}

// Balanced reports whether Value equals Expected.
func (r Report) Balanced() bool {
	return r.Value.Cmp(r.Expected()) == 0
}

func (r Report) String() string {
	return fmt.Sprintf("value=%s baseline=%s increments=%s decrements=%s events=%d expected=%s",
		r.Value, r.Baseline, r.Increments, r.Decrements, r.Events, r.Expected())
}

// Verify sums events from fromBlock and compares them with the current value.
// baseline is the counter value before fromBlock; nil means zero, i.e. fromBlock
// is the deployment block.
func Verify(ctx context.Context, source chain.EventSource, fromBlock uint64, baseline *big.Int) (Report, error) {
	totals, err := source.EventTotals(ctx, fromBlock)
	if err != nil {
		return Report{}, fmt.Errorf("event totals: %w", err)
	}
	value, err := source.ReadCounter(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read counter: %w", err)
	}
	if baseline == nil {
		baseline = new(big.Int)
	}
	return Report{
		FromBlock:  fromBlock,
		Value:      value,
		Increments: totals.Increments,
		Decrements: totals.Decrements,
		Events:     totals.Count,
		Baseline:   new(big.Int).Set(baseline),
	}, nil
}
