package contracts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// CounterABI is the interface of the deployed Counter contract.
//
//go:embed Counter.abi.json
var CounterABI []byte

// Method and event names exposed by Counter.
const (
	MethodValue    = "x"
	MethodInc      = "inc"
	MethodIncBy    = "incBy"
	MethodDec      = "dec"
	MethodDecBy    = "decBy"
	EventIncrement = "Increment"
	EventDecrement = "Decrement"
)

// LoadABI parses the embedded Counter ABI, or the compiled artifact at path when set.
// The artifact may be a hardhat artifact ({"abi": [...]}) or a bare ABI array.
func LoadABI(path string) (abi.ABI, error) {
	raw := CounterABI
	if path != "" {
		blob, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("read artifact: %w", err)
		}
		raw, err = extractABI(blob)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("artifact %s: %w", path, err)
		}
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	if err := requireCounterSurface(parsed); err != nil {
		return abi.ABI{}, err
	}
	return parsed, nil
}

func extractABI(blob []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(trimmed, &artifact); err != nil {
		return nil, err
	}
	if len(artifact.ABI) == 0 {
		return nil, fmt.Errorf("missing abi field")
	}
	return artifact.ABI, nil
}

func requireCounterSurface(parsed abi.ABI) error {
	for _, name := range []string{MethodValue, MethodInc, MethodIncBy, MethodDec, MethodDecBy} {
		if _, ok := parsed.Methods[name]; !ok {
			return fmt.Errorf("abi is missing method %q", name)
		}
	}
	for _, name := range []string{EventIncrement, EventDecrement} {
		if _, ok := parsed.Events[name]; !ok {
			return fmt.Errorf("abi is missing event %q", name)
		}
	}
	return nil
}
