// Package classify maps ledger failures onto the fixed set of error kinds the
// HTTP surface reports.
//
// Detection of contract rejections is inherently tied to upstream wording: the
// Substring strategy matches message text, RevertData decodes the revert
// payload when the RPC error carries one, and Reverted covers mined transactions
// whose reason could not be recovered. Strategies are tried in order.
package classify

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"counterbridge/internal/chain"
)

// Kind is a semantic error category.
type Kind string

const (
	KindConfig     Kind = "ConfigError"
	KindValidation Kind = "ValidationError"
	KindChainRead  Kind = "ChainReadError"
	KindChainWrite Kind = "ChainWriteError"
	KindUnderflow  Kind = "Underflow"
	// KindReverted is a write that was included in a block but failed there.
	KindReverted Kind = "TransactionReverted"
)

// HTTPStatus is the status code a failure of this kind is reported with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindUnderflow:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Context is what the classifier knows about a failed call.
type Context struct {
	Path   chain.Path
	Op     chain.Operation
	Amount *big.Int
	Err    error
}

// Failure is a classified error safe to show to clients through Message.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Status is shorthand for f.Kind.HTTPStatus().
func (f *Failure) Status() int {
	return f.Kind.HTTPStatus()
}

// Validation builds a failure for input rejected before any chain call.
func Validation(message string) *Failure {
	return &Failure{Kind: KindValidation, Message: message}
}

// Strategy recognises a specific failure shape.
type Strategy interface {
	Match(c Context) (Kind, bool)
}

// Classifier runs strategies in order and falls back to the failing path's kind.
type Classifier struct {
	strategies []Strategy
}

func New(strategies ...Strategy) *Classifier {
	return &Classifier{strategies: strategies}
}

// Default prefers decoded revert data, then message matching, then the receipt status.
func Default() *Classifier {
	return New(RevertData{}, Substring{}, Reverted{})
}

func (c *Classifier) Classify(ctx Context) *Failure {
	if ctx.Err == nil {
		return nil
	}
	var existing *Failure
	if errors.As(ctx.Err, &existing) {
		return existing
	}
	if ctx.Path == "" {
		ctx.Path = pathOf(ctx.Err)
	}

	kind := fallbackKind(ctx.Path)
	for _, s := range c.strategies {
		if k, ok := s.Match(ctx); ok {
			kind = k
			break
		}
	}
	return &Failure{Kind: kind, Message: message(kind, ctx), Err: ctx.Err}
}

func pathOf(err error) chain.Path {
	var chainErr *chain.Error
	if errors.As(err, &chainErr) {
		return chainErr.Path
	}
	return chain.PathWrite
}

func fallbackKind(path chain.Path) Kind {
	if path == chain.PathRead {
		return KindChainRead
	}
	return KindChainWrite
}

func message(kind Kind, ctx Context) string {
	switch kind {
	case KindUnderflow:
		if ctx.Amount != nil {
			return fmt.Sprintf("Cannot decrement by %s: counter would go below zero", ctx.Amount.String())
		}
		return "Cannot decrement: counter is already at zero"
	case KindChainRead:
		return "Failed to read counter value"
	case KindReverted:
		if ctx.Op != "" {
			return "Transaction to " + ctx.Op.Describe() + " was reverted"
		}
		return "Transaction was reverted"
	default:
		if ctx.Op != "" {
			return "Failed to " + ctx.Op.Describe()
		}
		return "Failed to submit transaction"
	}
}
