package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/floxi-finance/floxi-keeper/api"
	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/config"
	"github.com/floxi-finance/floxi-keeper/database"
	"github.com/floxi-finance/floxi-keeper/ethereum"
	"github.com/floxi-finance/floxi-keeper/fraxtal"
	"github.com/floxi-finance/floxi-keeper/keeper"
)

// Version will be set at build time
var Version = "development"

func main() {
	// A missing .env is fine when the environment is set by the host.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	Logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	}))
	slog.SetDefault(Logger)

	Logger.Info("Starting floxi-keeper ("+Version+")",
		"Go Version", runtime.Version(),
		"Operating System", runtime.GOOS,
		"Architecture", runtime.GOARCH)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	Logger.Info("configuration loaded",
		"environment", cfg.Environment,
		"l1", cfg.L1.Name,
		"l2", cfg.L2.Name,
		"floxiL1", cfg.L1.Addresses.FloxiL1,
		"floxiL2", cfg.L2.Addresses.FloxiL2,
		"sweepSchedule", cfg.SweepSchedule)

	db, err := database.NewDatabase(database.DatabaseOpts{
		URI:          cfg.DatabaseURI,
		DatabaseName: cfg.DatabaseName,
		Logger:       Logger.With("component", "database"),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.CreateIndexes(context.Background()); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	chainOpts := func(name, endpoint, component string) chain.ClientOpts {
		return chain.ClientOpts{
			Name:              name,
			Endpoint:          endpoint,
			PrivateKey:        cfg.PrivateKey,
			Logger:            Logger.With("component", component),
			RequestsPerSecond: cfg.RequestsPerSecond,
			PollInterval:      cfg.LogPollInterval,
			MaxBlockRange:     cfg.LogMaxBlockRange,
			ReceiptTimeout:    cfg.ReceiptTimeout,
		}
	}

	l1, err := ethereum.NewClient(ethereum.ClientOpts{
		Chain:                    chainOpts(cfg.L1.Name, cfg.L1.RPCURL, "ethereum"),
		FloxiL1Address:           cfg.L1.Addresses.FloxiL1,
		DelegationManagerAddress: cfg.L1.Addresses.DelegationManager,
		StrategyAddress:          cfg.L1.Addresses.Strategy,
		SfrxEthAddress:           cfg.L1.Addresses.SfrxEth,
		Gas:                      cfg.Gas,
	})
	if err != nil {
		log.Fatal(err)
	}

	l2, err := fraxtal.NewClient(fraxtal.ClientOpts{
		Chain:                   chainOpts(cfg.L2.Name, cfg.L2.RPCURL, "fraxtal"),
		FloxiL2Address:          cfg.L2.Addresses.FloxiL2,
		L2StandardBridgeAddress: cfg.L2.Addresses.L2StandardBridge,
		FraxFerryAddress:        cfg.L2.Addresses.FraxFerry,
		Gas:                     cfg.Gas,
	})
	if err != nil {
		log.Fatal(err)
	}

	k, err := keeper.NewKeeper(keeper.Opts{
		L1:     l1,
		L2:     l2,
		Store:  db,
		Logger: Logger.With("component", "keeper"),
		Addresses: keeper.Addresses{
			FloxiL1:          cfg.L1.Addresses.FloxiL1,
			FloxiL2:          cfg.L2.Addresses.FloxiL2,
			Strategy:         cfg.L1.Addresses.Strategy,
			L1FraxFerry:      cfg.L1.Addresses.FraxFerry,
			L2FraxFerry:      cfg.L2.Addresses.FraxFerry,
			L2StandardBridge: cfg.L2.Addresses.L2StandardBridge,
			L1SfrxEth:        cfg.L1.Addresses.SfrxEth,
			L2SfrxEth:        cfg.L2.Addresses.SfrxEth,
		},
		L1StartBlock:           cfg.L1.StartBlock,
		L2StartBlock:           cfg.L2.StartBlock,
		SweepSchedule:          cfg.SweepSchedule,
		L2FinalityPollInterval: cfg.L2FinalityPollInterval,
		L1SafePollInterval:     cfg.L1SafePollInterval,
		MaxFinalityWait:        cfg.MaxFinalityWait,
		StalePassengerAfter:    cfg.StalePassengerAfter,
	})
	if err != nil {
		log.Fatalf("failed to create keeper: %v", err)
	}

	server := api.NewServer(api.ServerOpts{
		Logger:   Logger.With("component", "api-server"),
		Database: db,
		Port:     cfg.APIPort,
	})

	// Cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return k.Run(ctx) })
	g.Go(func() error { return server.Start(ctx) })

	runErr := g.Wait()

	if err := db.Disconnect(context.Background()); err != nil {
		Logger.Error("failed to disconnect database", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		Logger.Error("keeper stopped", "error", runErr)
		os.Exit(1)
	}
	Logger.Info("shut down gracefully")
}
