package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"counterbridge/internal/bridge"
	"counterbridge/internal/chain"
	"counterbridge/internal/config"
	"counterbridge/internal/hmacauth"
	"counterbridge/internal/idempotency"
	"counterbridge/internal/lifecycle"
	"counterbridge/internal/ratelimit"
)

const (
	headerRequestID      = "X-Request-Id"
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

type Server struct {
	cfg         *config.AppConfig
	bridge      *bridge.Bridge
	store       idempotency.Store
	keys        *keyLocks
	hmac        *hmacauth.Verifier
	limiter     *ratelimit.Limiter
	metrics     *metricsRegistry
	httpServer  *http.Server
	rpcHealthFn func(context.Context) error
	dbHealthFn  func(context.Context) error
}

type route struct {
	path        string
	description string
	handler     http.Handler
	write       bool
}

// NewServer wires the request handlers to client. store may be nil to disable
// idempotent replay.
func NewServer(cfg *config.AppConfig, client chain.Client, store idempotency.Store) *Server {
	metrics := newMetricsRegistry()

	s := &Server{
		cfg: cfg,
		bridge: bridge.New(bridge.Config{
			Reader:         client,
			Writer:         client,
			Confirmer:      lifecycle.NewManager(client, cfg.Chain.ReceiptPoll),
			Observer:       metrics,
			ConfirmTimeout: cfg.Chain.ConfirmTimeout,
		}),
		store:   store,
		keys:    newKeyLocks(),
		limiter: ratelimit.New(cfg.Service.WriteRateLimit, cfg.Service.WriteRateBurst, 0),
		metrics: metrics,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Service.HMACSecret,
			MaxSkew: cfg.Service.HMACClockSkew,
			Reject: func(w http.ResponseWriter, err error) {
				writeError(w, http.StatusUnauthorized, err.Error())
			},
		},
		rpcHealthFn: client.Ping,
	}
	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}

	mux := http.NewServeMux()
	for _, rt := range s.routes() {
		h := rt.handler
		if rt.write {
			h = s.limiter.Middleware(s.hmac.Middleware(h), func(w http.ResponseWriter) {
				writeError(w, http.StatusTooManyRequests, "Too many write requests")
			})
		}
		mux.Handle(rt.path, s.instrument(rt.path, h))
	}
	mux.Handle("/metrics", metrics.handler())
	mux.Handle("/", s.instrument("unmatched", http.HandlerFunc(handleNotFound)))

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() []route {
	return []route{
		{path: "/value", description: "GET  current counter value", handler: http.HandlerFunc(s.handleValue)},
		{path: "/increment", description: "POST increment by 1", handler: s.writeHandler(chain.OpInc), write: true},
		{path: "/increment-by", description: "POST increment by amount", handler: s.writeHandler(chain.OpIncBy), write: true},
		{path: "/decrement", description: "POST decrement by 1", handler: s.writeHandler(chain.OpDec), write: true},
		{path: "/decrement-by", description: "POST decrement by amount", handler: s.writeHandler(chain.OpDecBy), write: true},
		{path: "/health", description: "GET  liveness", handler: http.HandlerFunc(s.handleHealth)},
		{path: "/ready", description: "GET  RPC and store connectivity", handler: http.HandlerFunc(s.handleReady)},
	}
}

// Handler exposes the full middleware stack, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	log.Info("API listening", "addr", s.httpServer.Addr, "network", s.cfg.Chain.Network.Name,
		"contract", s.cfg.Chain.ContractAddress, "hmac", s.hmac.Enabled(), "idempotency", s.store != nil)
	for _, rt := range s.routes() {
		log.Info("Endpoint", "path", rt.path, "desc", rt.description)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.incRequest(path, rec.status)
		log.Debug("Served request", "method", r.Method, "path", path, "status", rec.status,
			"elapsed", time.Since(start), "reqid", r.Header.Get(headerRequestID))
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}
