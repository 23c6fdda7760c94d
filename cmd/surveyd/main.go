package main

import (
	"context"
	"encoding/hex"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"surveychain/config"
	"surveychain/core/events"
	"surveychain/core/state"
	"surveychain/gateway"
	"surveychain/native/survey"
	"surveychain/native/transfer"
	"surveychain/observability/logging"
	"surveychain/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./surveyd.toml", "path to surveyd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("surveyd", "dev", "").Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("surveyd", cfg.Env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := events.LogEmitter{Logger: logger}

	transfers := transfer.NewEngine(cfg.ChannelID, cfg.ChannelEscrowAddress)
	transfers.SetState(manager)
	transfers.SetEmitter(emitter)
	if cfg.TransferTimeoutSeconds > 0 {
		transfers.SetTimeout(time.Duration(cfg.TransferTimeoutSeconds) * time.Second)
	}

	surveys := survey.NewEngine()
	surveys.SetState(manager)
	surveys.SetTransfers(transfers)
	surveys.SetEmitter(emitter)

	managers := make([]survey.ManagerInfo, 0, len(cfg.Managers))
	for _, entry := range cfg.Managers {
		pubKey, err := hex.DecodeString(entry.PubKey)
		if err != nil {
			logger.Error("decode manager public key", "address", entry.Address, "error", err)
			os.Exit(1)
		}
		managers = append(managers, survey.ManagerInfo{Address: entry.Address, PubKey: pubKey, Active: true})
	}
	params := &survey.Params{
		Owner:           cfg.Owner,
		GasStation:      cfg.GasStation,
		ContractAddress: cfg.ContractAddress,
		ReceiverPrefix:  cfg.ReceiverPrefix,
		ChannelID:       cfg.ChannelID,
		RewardDenom:     cfg.RewardDenom,
	}
	if err := surveys.Bootstrap(params, managers); err != nil {
		logger.Error("bootstrap ledger", "error", err)
		os.Exit(1)
	}

	obs := gateway.NewObservability(gateway.ObservabilityConfig{
		ServiceName: "surveyd",
		LogRequests: cfg.Env == "dev",
	}, logger)

	srv := gateway.NewServer(surveys, transfers, obs, logger)
	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("listening", "address", listener.Addr().String())
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", "error", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
