package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"

	"counterbridge/internal/classify"
	"counterbridge/internal/lifecycle"
)

const (
	msgInvalidAmount  = "Amount must be a positive number"
	msgAmountTooLarge = "Amount must not exceed 2^256-1"
	maxBodyBytes      = 1 << 16
	// maxExponent bounds scientific notation before it is expanded into a big.Rat.
	maxExponent = 1024
)

type valueResponse struct {
	Success bool   `json:"success"`
	Value   string `json:"value"`
}

type writeResponse struct {
	Success         bool        `json:"success"`
	TransactionHash string      `json:"transactionHash"`
	BlockNumber     string      `json:"blockNumber"`
	Status          string      `json:"status"`
	Amount          json.Number `json:"amount,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func newWriteResponse(conf lifecycle.Confirmation, amount *big.Int) writeResponse {
	resp := writeResponse{
		Success:         true,
		TransactionHash: conf.TxHash.Hex(),
		BlockNumber:     strconv.FormatUint(conf.BlockNumber, 10),
		Status:          string(conf.Status),
	}
	if amount != nil {
		resp.Amount = json.Number(amount.String())
	}
	return resp
}

func encode(body interface{}) []byte {
	b, err := json.Marshal(body)
	if err != nil {
		log.Error("Response encoding failed", "err", err)
		return []byte(`{"success":false,"error":"internal error"}`)
	}
	return b
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	writeRaw(w, status, encode(body))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func writeFailure(w http.ResponseWriter, f *classify.Failure) {
	writeError(w, f.Status(), f.Message)
}

// parseAmount reads {"amount": <positive integer>} without losing precision.
// Strings, fractions, zero, negatives and a missing field are all rejected.
func parseAmount(body io.Reader) (*big.Int, *classify.Failure) {
	var payload struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, classify.Validation(msgInvalidAmount)
	}

	raw := bytes.TrimSpace(payload.Amount)
	if len(raw) == 0 || raw[0] == '"' {
		return nil, classify.Validation(msgInvalidAmount)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return nil, classify.Validation(msgInvalidAmount)
	}
	literal := num.String()
	if !exponentInRange(literal) {
		return nil, classify.Validation(msgInvalidAmount)
	}

	rat, ok := new(big.Rat).SetString(literal)
	if !ok || !rat.IsInt() || rat.Sign() <= 0 {
		return nil, classify.Validation(msgInvalidAmount)
	}
	amount := new(big.Int).Set(rat.Num())
	if amount.Cmp(math.MaxBig256) > 0 {
		return nil, classify.Validation(msgAmountTooLarge)
	}
	return amount, nil
}

func exponentInRange(literal string) bool {
	i := strings.IndexAny(literal, "eE")
	if i < 0 {
		return true
	}
	exp, err := strconv.Atoi(literal[i+1:])
	if err != nil {
		return false
	}
	return exp <= maxExponent && exp >= -maxExponent
}
