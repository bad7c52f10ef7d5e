package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"counterbridge/internal/deployments"
)

// Error is a configuration problem; the process must not start serving.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var ErrMissing = errors.New("must be set")

// AppConfig is read once at startup and treated as immutable afterwards.
type AppConfig struct {
	Chain       ChainConfig
	Service     ServiceConfig
	Log         LogConfig
	Idempotency IdempotencyConfig
}

type ChainConfig struct {
	Network         deployments.Network
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	ArtifactPath    string
	ReceiptPoll     time.Duration
	ConfirmTimeout  time.Duration
}

type ServiceConfig struct {
	HTTPPort        int
	HMACSecret      string
	HMACClockSkew   time.Duration
	WriteRateLimit  float64
	WriteRateBurst  int
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type IdempotencyConfig struct {
	Backend   string
	StorePath string
	DSN       string
	Window    time.Duration
}

const (
	defaultNetwork         = "sepolia"
	defaultDeploymentsPath = "deployments.json"
)

// Load aggregates configuration from the environment and the deployments book.
func Load() (*AppConfig, error) {
	network, err := deployments.LookupNetwork(strings.ToLower(envOr("NETWORK", defaultNetwork)))
	if err != nil {
		return nil, &Error{Key: "NETWORK", Err: err}
	}

	rpcURL := envOr("RPC_URL", envOr("SEPOLIA_RPC_URL", ""))
	if rpcURL == "" {
		return nil, &Error{Key: "RPC_URL", Err: ErrMissing}
	}
	privateKey := envOr("PRIVATE_KEY", envOr("SEPOLIA_PRIVATE_KEY", ""))
	if privateKey == "" {
		return nil, &Error{Key: "PRIVATE_KEY", Err: ErrMissing}
	}

	contract, err := contractAddress(network.Name)
	if err != nil {
		return nil, err
	}

	chainCfg := ChainConfig{
		Network:         network,
		RPCURL:          rpcURL,
		PrivateKey:      privateKey,
		ContractAddress: contract,
		ArtifactPath:    envOr("CONTRACT_ARTIFACT_PATH", ""),
		ReceiptPoll:     time.Duration(envOrInt("RECEIPT_POLL_MS", 1000)) * time.Millisecond,
		ConfirmTimeout:  time.Duration(envOrInt("CONFIRM_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	port := envOrInt("PORT", 3000)
	if port <= 0 || port > 65535 {
		return nil, &Error{Key: "PORT", Err: fmt.Errorf("out of range: %d", port)}
	}

	serviceCfg := ServiceConfig{
		HTTPPort:        port,
		HMACSecret:      envOr("WRITE_HMAC_SECRET", ""),
		HMACClockSkew:   time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		WriteRateLimit:  envOrFloat("WRITE_RATE_LIMIT_RPS", 0),
		WriteRateBurst:  envOrInt("WRITE_RATE_LIMIT_BURST", 5),
		ShutdownTimeout: time.Duration(envOrInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}

	idemCfg := IdempotencyConfig{
		Backend:   strings.ToLower(envOr("IDEMPOTENCY_BACKEND", "memory")),
		StorePath: envOr("IDEMPOTENCY_STORE_PATH", filepath.Join(os.TempDir(), "counterbridge-idem.json")),
		DSN:       envOr("POSTGRES_DSN", ""),
		Window:    time.Duration(envOrInt("IDEMPOTENCY_WINDOW_SECONDS", 86400)) * time.Second,
	}
	switch idemCfg.Backend {
	case "none", "memory", "file":
	case "postgres":
		if idemCfg.DSN == "" {
			return nil, &Error{Key: "POSTGRES_DSN", Err: ErrMissing}
		}
	default:
		return nil, &Error{Key: "IDEMPOTENCY_BACKEND", Err: fmt.Errorf("unknown backend %q", idemCfg.Backend)}
	}

	return &AppConfig{
		Chain:       chainCfg,
		Service:     serviceCfg,
		Log:         LoadLog(),
		Idempotency: idemCfg,
	}, nil
}

// LoadLog reads only the logging settings so logging can start before Load.
func LoadLog() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(envOr("LOG_LEVEL", "info")),
		Format: strings.ToLower(envOr("LOG_FORMAT", "terminal")),
	}
}

// contractAddress prefers CONTRACT_ADDRESS and falls back to the deployments book.
func contractAddress(network string) (string, error) {
	if addr := envOr("CONTRACT_ADDRESS", ""); addr != "" {
		if !common.IsHexAddress(addr) {
			return "", &Error{Key: "CONTRACT_ADDRESS", Err: fmt.Errorf("not a hex address: %q", addr)}
		}
		return addr, nil
	}

	path := envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath)
	book, err := deployments.LoadBook(path)
	if err != nil {
		return "", &Error{Key: "CONTRACT_ADDRESS", Err: fmt.Errorf("%w (no usable deployments book: %v)", ErrMissing, err)}
	}
	addr, ok := book.Address(network)
	if !ok || !common.IsHexAddress(addr) {
		return "", &Error{Key: "CONTRACT_ADDRESS", Err: fmt.Errorf("%w (no %s entry in %s)", ErrMissing, network, path)}
	}
	return addr, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed float64
		if _, err := fmt.Sscanf(val, "%g", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
