package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"goaetherbridge/AetherRPC"
	"goaetherbridge/EVMRPC"
	"goaetherbridge/FractalRPC"
	"goaetherbridge/bridge"
	"goaetherbridge/config"
	"goaetherbridge/redis"
	"goaetherbridge/types"
	"goaetherbridge/workers"

	"github.com/sirupsen/logrus"
)

// sourceConfirmations returns the strictest confirmation requirement among
// the directions that leave network.
func sourceConfirmations(network types.Network) int {
	confirmations := 1
	for direction, pc := range config.BridgePairs {
		source, _, ok := direction.Resolve()
		if ok && source == network && pc.RequiredConfirmations > confirmations {
			confirmations = pc.RequiredConfirmations
		}
	}
	return confirmations
}

func main() {
	logger := logrus.New()
	logger.Info("starting AetherCore bridge")

	f, err := os.OpenFile(fmt.Sprintf("logs/log_%s.txt", time.Now().Format("2006-01-02")), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.WithError(err).Fatal("error opening log file for writing")
	}
	defer f.Close()

	logger.SetOutput(f)

	config.Init()

	store := redis.NewStore(config.Config.Server.RedisHost, config.Config.Server.RedisPort, logger)
	registry := bridge.DefaultRegistry()

	adapters := map[types.Network]types.NetworkAdapter{
		types.NetworkAethercoin: AetherRPC.NewAdapter(
			config.Config.Aether.RPCURL,
			config.Config.Aether.RPCUser,
			config.Config.Aether.RPCPassword,
			sourceConfirmations(types.NetworkAethercoin),
			logger,
		),
		types.NetworkFractalcoin: FractalRPC.NewAdapter(
			config.Config.Fractal.RPCURL,
			config.Config.Fractal.RPCToken,
			sourceConfirmations(types.NetworkFractalcoin),
			logger,
		),
		types.NetworkEthereum: EVMRPC.NewAdapter(
			int64(config.Config.EVM.ChainID),
			config.Config.EVM.PublicAddress,
			config.Config.EVM.PrivateKey,
			sourceConfirmations(types.NetworkEthereum),
			logger,
		),
	}

	orch := bridge.New(store, adapters, registry, logger)

	// transactions stranded mid-settlement by a previous run go back to
	// FAILED before the worker starts, so they can be reverted
	if err := orch.RecoverInterrupted(context.Background()); err != nil {
		logger.WithError(err).Fatal("error recovering interrupted transactions")
	}

	// two worker threads:
	// * execute pending transactions (verify source, settle destination)
	// * API serving HTTP server (serves as main worker thread)
	go workers.Worker_processExecution(orch, store, logger)

	workers.Worker_HTTP(orch, store, logger)
}
