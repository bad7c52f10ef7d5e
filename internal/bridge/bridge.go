// Package bridge turns validated counter operations into ledger queries and
// confirmed transactions.
package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"counterbridge/internal/chain"
	"counterbridge/internal/classify"
	"counterbridge/internal/lifecycle"
)

// Confirmer waits for a submitted transaction to be mined.
type Confirmer interface {
	Confirm(ctx context.Context, hash common.Hash) (lifecycle.Confirmation, error)
}

// Observer receives outcome notifications, e.g. for metrics.
type Observer interface {
	ObserveRead(result string)
	ObserveWrite(op chain.Operation, result string)
	ObserveConfirmation(op chain.Operation, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRead(string)                                 {}
func (nopObserver) ObserveWrite(chain.Operation, string)               {}
func (nopObserver) ObserveConfirmation(chain.Operation, time.Duration) {}

type Config struct {
	Reader     chain.Reader
	Writer     chain.Writer
	Confirmer  Confirmer
	Classifier *classify.Classifier
	Observer   Observer
	// ConfirmTimeout bounds the receipt wait; zero leaves it to the transport.
	ConfirmTimeout time.Duration
}

type Bridge struct {
	reader         chain.Reader
	writer         chain.Writer
	confirmer      Confirmer
	classifier     *classify.Classifier
	observer       Observer
	confirmTimeout time.Duration
}

func New(cfg Config) *Bridge {
	b := &Bridge{
		reader:         cfg.Reader,
		writer:         cfg.Writer,
		confirmer:      cfg.Confirmer,
		classifier:     cfg.Classifier,
		observer:       cfg.Observer,
		confirmTimeout: cfg.ConfirmTimeout,
	}
	if b.classifier == nil {
		b.classifier = classify.Default()
	}
	if b.observer == nil {
		b.observer = nopObserver{}
	}
	return b
}

// Value reads the counter. Errors are *classify.Failure.
func (b *Bridge) Value(ctx context.Context) (*big.Int, error) {
	value, err := b.reader.ReadCounter(ctx)
	if err != nil {
		failure := b.classifier.Classify(classify.Context{Path: chain.PathRead, Err: err})
		log.Warn("Counter read failed", "kind", failure.Kind, "err", err)
		b.observer.ObserveRead("failed")
		return nil, failure
	}
	b.observer.ObserveRead("ok")
	return value, nil
}

// Execute submits intent and waits for its confirmation. Submission always precedes
// the wait, and the wait outlives cancellation of ctx. Errors are *classify.Failure.
func (b *Bridge) Execute(ctx context.Context, intent chain.Intent) (lifecycle.Confirmation, error) {
	cctx := classify.Context{Path: chain.PathWrite, Op: intent.Op, Amount: intent.Amount}

	hash, err := b.writer.Submit(ctx, intent)
	if err != nil {
		return lifecycle.Confirmation{}, b.writeFailure(cctx, err, "submit")
	}
	log.Info("Counter transaction submitted", "op", intent.Op, "hash", hash)

	waitCtx := context.WithoutCancel(ctx)
	if b.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, b.confirmTimeout)
		defer cancel()
	}

	start := time.Now()
	conf, err := b.confirmer.Confirm(waitCtx, hash)
	b.observer.ObserveConfirmation(intent.Op, time.Since(start))
	if err != nil {
		return conf, b.writeFailure(cctx, err, "confirm")
	}

	log.Info("Counter transaction confirmed", "op", intent.Op, "hash", conf.TxHash, "block", conf.BlockNumber)
	b.observer.ObserveWrite(intent.Op, "confirmed")
	return conf, nil
}

func (b *Bridge) writeFailure(cctx classify.Context, err error, stage string) *classify.Failure {
	cctx.Err = err
	failure := b.classifier.Classify(cctx)
	log.Warn("Counter write failed", "op", cctx.Op, "stage", stage, "kind", failure.Kind, "err", err)
	b.observer.ObserveWrite(cctx.Op, string(failure.Kind))
	return failure
}
