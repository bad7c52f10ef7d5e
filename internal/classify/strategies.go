package classify

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"counterbridge/internal/chain"
	"counterbridge/internal/lifecycle"
)

// underflowNeedles are matched case-insensitively.
var underflowNeedles = []string{"cannot be decremented", "underflow"}

func mentionsUnderflow(text string) bool {
	text = strings.ToLower(text)
	for _, needle := range underflowNeedles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

// underflowCandidate reports whether c can be a Counter underflow at all:
// only decrements on the write path can drive the value below zero.
func underflowCandidate(c Context) bool {
	return c.Path != chain.PathRead && c.Op.Decrements() && c.Err != nil
}

// Substring flags underflow when the error text of a decrement mentions it.
type Substring struct{}

func (Substring) Match(c Context) (Kind, bool) {
	if !underflowCandidate(c) {
		return "", false
	}
	if mentionsUnderflow(c.Err.Error()) {
		return KindUnderflow, true
	}
	return "", false
}

// RevertData decodes Error(string) and Panic(uint256) payloads attached to RPC errors.
type RevertData struct{}

func (RevertData) Match(c Context) (Kind, bool) {
	if !underflowCandidate(c) {
		return "", false
	}
	reason, ok := RevertReason(c.Err)
	if !ok {
		return "", false
	}
	if mentionsUnderflow(reason) {
		return KindUnderflow, true
	}
	return "", false
}

// RevertReason extracts the decoded revert reason from err, if it carries revert data.
func RevertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}
	var raw []byte
	switch data := dataErr.ErrorData().(type) {
	case string:
		decoded, decErr := hexutil.Decode(data)
		if decErr != nil {
			return "", false
		}
		raw = decoded
	case []byte:
		raw = data
	default:
		return "", false
	}
	reason, unpackErr := abi.UnpackRevert(raw)
	if unpackErr != nil {
		return "", false
	}
	return reason, true
}

// Reverted recognises transactions that were mined and then rejected by the
// contract. Counter can only reject dec and decBy through its zero guard, so a
// reverted decrement is an underflow even when replay recovered no reason.
type Reverted struct{}

func (Reverted) Match(c Context) (Kind, bool) {
	var reverted *lifecycle.RevertedError
	if c.Path == chain.PathRead || !errors.As(c.Err, &reverted) {
		return "", false
	}
	if c.Op.Decrements() {
		return KindUnderflow, true
	}
	return KindReverted, true
}
