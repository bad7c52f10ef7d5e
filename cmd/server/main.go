package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"counterbridge/internal/chain"
	"counterbridge/internal/classify"
	"counterbridge/internal/config"
	"counterbridge/internal/contracts"
	"counterbridge/internal/idempotency"
	"counterbridge/internal/logging"
	"counterbridge/internal/server"
)

func main() {
	logCfg := config.LoadLog()
	if err := logging.Setup(logCfg.Level, logCfg.Format); err != nil {
		log.Warn("Logging fallback in use", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Crit("Invalid configuration", "kind", classify.KindConfig, "err", err)
	}

	ctx := context.Background()

	counterABI, err := contracts.LoadABI(cfg.Chain.ArtifactPath)
	if err != nil {
		log.Crit("Contract interface error", "kind", classify.KindConfig, "err", err)
	}

	client, err := chain.NewEthClient(ctx, chain.EthClientConfig{
		RPCURL:          cfg.Chain.RPCURL,
		PrivateKeyHex:   cfg.Chain.PrivateKey,
		ContractAddress: cfg.Chain.ContractAddress,
		ABI:             counterABI,
	})
	if err != nil {
		log.Crit("Chain client error", "kind", classify.KindConfig, "err", err)
	}
	defer client.Close()

	if got := client.ChainID(); got.Int64() != cfg.Chain.Network.ChainID {
		log.Crit("RPC endpoint serves a different network", "kind", classify.KindConfig,
			"network", cfg.Chain.Network.Name, "want", cfg.Chain.Network.ChainID, "have", got)
	}
	log.Info("Chain client ready", "network", cfg.Chain.Network.Name, "account", client.Account(),
		"contract", cfg.Chain.ContractAddress)

	store, err := idempotency.Open(ctx, idempotency.Options{
		Backend:   cfg.Idempotency.Backend,
		StorePath: cfg.Idempotency.StorePath,
		DSN:       cfg.Idempotency.DSN,
	})
	if err != nil {
		log.Crit("Idempotency store error", "kind", classify.KindConfig, "err", err)
	}
	if closer, ok := store.(interface{ Close() }); ok {
		defer closer.Close()
	}

	apiServer := server.NewServer(cfg, client, store)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Info("Server stopped", "err", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown incomplete", "err", err)
	}
}
