package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"counterbridge/internal/chain"
	"counterbridge/internal/classify"
	"counterbridge/internal/idempotency"
)

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	value, err := s.bridge.Value(r.Context())
	if err != nil {
		writeFailure(w, asFailure(err))
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Success: true, Value: value.String()})
}

// writeHandler serves one state-mutating operation:
// validate, optionally replay, submit, confirm, respond.
func (s *Server) writeHandler(op chain.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var amount *big.Int
		if op.TakesAmount() {
			var failure *classify.Failure
			if amount, failure = parseAmount(r.Body); failure != nil {
				s.metrics.incWrite(op, string(failure.Kind))
				writeFailure(w, failure)
				return
			}
		}
		intent, err := chain.NewIntent(op, amount)
		if err != nil {
			writeFailure(w, classify.Validation(msgInvalidAmount))
			return
		}

		ctx := r.Context()
		var storeKey string
		if clientKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey)); clientKey != "" && s.store != nil {
			storeKey = idempotency.Key(r.URL.Path, clientKey)
			defer s.keys.lock(storeKey)()

			existing, err := s.store.Get(ctx, storeKey)
			if err != nil {
				log.Warn("Idempotency lookup failed", "key", storeKey, "err", err)
			}
			if existing != nil {
				s.metrics.incReplay(op)
				w.Header().Set(headerReplayed, "true")
				writeRaw(w, existing.StatusCode, existing.Response)
				return
			}
		}

		status, body := s.execute(ctx, intent)
		if storeKey != "" && replayable(status) {
			s.remember(ctx, storeKey, status, body)
		}
		writeRaw(w, status, body)
	}
}

func (s *Server) execute(ctx context.Context, intent chain.Intent) (int, []byte) {
	conf, err := s.bridge.Execute(ctx, intent)
	if err != nil {
		failure := asFailure(err)
		return failure.Status(), encode(errorResponse{Success: false, Error: failure.Message})
	}
	return http.StatusOK, encode(newWriteResponse(conf, intent.Amount))
}

// replayable outcomes are those decided by the ledger: confirmed writes and rejected underflows.
func replayable(status int) bool {
	return status == http.StatusOK || status == http.StatusBadRequest
}

func (s *Server) remember(ctx context.Context, key string, status int, body []byte) {
	now := time.Now()
	err := s.store.Save(context.WithoutCancel(ctx), key, idempotency.Record{
		StatusCode: status,
		Response:   body,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.Idempotency.Window),
	})
	if err != nil {
		log.Warn("Idempotency save failed", "key", key, "err", err)
	}
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type dependencyStatus struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func probe(ctx context.Context, fn func(context.Context) error) *dependencyStatus {
	if fn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		return &dependencyStatus{Connected: false, Error: err.Error()}
	}
	return &dependencyStatus{Connected: true, LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	rpc := probe(r.Context(), s.rpcHealthFn)
	db := probe(r.Context(), s.dbHealthFn)

	healthy := (rpc == nil || rpc.Connected) && (db == nil || db.Connected)
	resp := struct {
		Status   string            `json:"status"`
		Network  string            `json:"network"`
		RPC      *dependencyStatus `json:"rpc,omitempty"`
		Database *dependencyStatus `json:"database,omitempty"`
	}{
		Status:   "ready",
		Network:  s.cfg.Chain.Network.Name,
		RPC:      rpc,
		Database: db,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func asFailure(err error) *classify.Failure {
	var failure *classify.Failure
	if errors.As(err, &failure) {
		return failure
	}
	return &classify.Failure{Kind: classify.KindChainWrite, Message: "internal error", Err: err}
}
