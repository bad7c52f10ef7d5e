package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"counterbridge/internal/chain"
)

// Status is the inclusion outcome reported by a receipt.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusReverted Status = "reverted"
)

// Confirmation is built from a mined receipt and never otherwise.
type Confirmation struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      Status
}

// RevertedError reports a transaction that was mined but rejected by the contract.
type RevertedError struct {
	Confirmation Confirmation
	// Cause is the error from replaying the transaction; nil when no reason could be recovered.
	Cause error
}

func (e *RevertedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transaction %s reverted in block %d: %v", e.Confirmation.TxHash.Hex(), e.Confirmation.BlockNumber, e.Cause)
	}
	return fmt.Sprintf("transaction %s reverted in block %d", e.Confirmation.TxHash.Hex(), e.Confirmation.BlockNumber)
}

func (e *RevertedError) Unwrap() error {
	return e.Cause
}

const defaultPollInterval = time.Second

// Manager waits for submitted transactions to be mined.
type Manager struct {
	source   chain.ReceiptSource
	interval time.Duration
}

func NewManager(source chain.ReceiptSource, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Manager{source: source, interval: interval}
}

// Confirm blocks until hash is mined, the receipt source fails, or ctx ends.
// A failed receipt yields both the Confirmation and a *RevertedError.
func (m *Manager) Confirm(ctx context.Context, hash common.Hash) (Confirmation, error) {
	receipt, err := m.waitForReceipt(ctx, hash)
	if err != nil {
		return Confirmation{}, err
	}

	conf := Confirmation{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      StatusSuccess,
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return conf, nil
	}

	conf.Status = StatusReverted
	cause := m.source.ReplayFailure(ctx, hash, receipt.BlockNumber)
	if cause != nil {
		log.Debug("Recovered revert cause", "hash", hash, "err", cause)
	}
	return conf, &RevertedError{Confirmation: conf, Cause: cause}
}

func (m *Manager) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		receipt, err := m.source.TransactionReceipt(ctx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
