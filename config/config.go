package config

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/floxi-finance/floxi-keeper/chain"
)

type Environment string

const (
	Mainnet Environment = "mainnet"
	Testnet Environment = "testnet"
)

type Config struct {
	Environment Environment
	L1          L1Network
	L2          L2Network
	PrivateKey  *ecdsa.PrivateKey

	DatabaseURI  string
	DatabaseName string
	APIPort      string

	SweepSchedule          string
	L2FinalityPollInterval time.Duration
	L1SafePollInterval     time.Duration
	MaxFinalityWait        time.Duration
	StalePassengerAfter    time.Duration

	ReceiptTimeout    time.Duration
	LogPollInterval   time.Duration
	LogMaxBlockRange  uint64
	RequestsPerSecond float64

	// Gas is used for every keeper transaction except depositIntoStrategy,
	// which always takes node estimates.
	Gas chain.GasParams
}

const gwei = 1_000_000_000

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFromEnv(os.Getenv)
}

// LoadFromEnv builds a Config from getenv, applying defaults for everything
// that is optional.
func LoadFromEnv(getenv func(string) string) (*Config, error) {
	env := Environment(strings.ToLower(getenv("KEEPER_ENV")))
	if env == "" {
		env = Testnet
	}

	var (
		l1  L1Network
		l2  L2Network
		err error
	)
	switch env {
	case Mainnet:
		l1, l2, err = mainnetNetworks(getenv)
	case Testnet:
		l1, l2, err = testnetNetworks(getenv)
	default:
		return nil, fmt.Errorf("unknown KEEPER_ENV %q", env)
	}
	if err != nil {
		return nil, err
	}

	if v := getenv("L1_RPC_URL"); v != "" {
		l1.RPCURL = v
	}
	if v := getenv("L2_RPC_URL"); v != "" {
		l2.RPCURL = v
	}

	cfg := &Config{
		Environment:  env,
		L1:           l1,
		L2:           l2,
		DatabaseURI:  getenv("DATABASE_URI"),
		DatabaseName: getenv("DATABASE_NAME"),
		APIPort:      withDefault(getenv("API_PORT"), "8080"),
	}

	if cfg.DatabaseURI == "" || cfg.DatabaseName == "" {
		return nil, fmt.Errorf("DATABASE_URI and DATABASE_NAME are required")
	}

	cfg.PrivateKey, err = parsePrivateKey(getenv("DEPLOYER_PRIVATE_KEY"))
	if err != nil {
		return nil, err
	}

	defaultSchedule := "1 * * * * *"
	if env == Mainnet {
		defaultSchedule = "0 0 0 * * *"
	}
	cfg.SweepSchedule = withDefault(getenv("SWEEP_SCHEDULE"), defaultSchedule)

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"L2_FINALITY_POLL_INTERVAL", 10 * time.Minute, &cfg.L2FinalityPollInterval},
		{"L1_SAFE_POLL_INTERVAL", 2 * time.Minute, &cfg.L1SafePollInterval},
		{"MAX_FINALITY_WAIT", 6 * time.Hour, &cfg.MaxFinalityWait},
		{"STALE_PASSENGER_AFTER", 72 * time.Hour, &cfg.StalePassengerAfter},
		{"RECEIPT_TIMEOUT", 10 * time.Minute, &cfg.ReceiptTimeout},
		{"LOG_POLL_INTERVAL", 12 * time.Second, &cfg.LogPollInterval},
	}
	for _, d := range durations {
		if *d.dest, err = parseDuration(getenv, d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.LogMaxBlockRange, err = parseUint(getenv, "LOG_MAX_BLOCK_RANGE", 2000); err != nil {
		return nil, err
	}
	if cfg.L1.StartBlock, err = parseUint(getenv, "L1_START_BLOCK", 0); err != nil {
		return nil, err
	}
	if cfg.L2.StartBlock, err = parseUint(getenv, "L2_START_BLOCK", 0); err != nil {
		return nil, err
	}

	rps, err := parseUint(getenv, "RPC_REQUESTS_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}
	cfg.RequestsPerSecond = float64(rps)

	gasLimit, err := parseUint(getenv, "GAS_LIMIT", 3_500_000)
	if err != nil {
		return nil, err
	}
	maxFee, err := parseUint(getenv, "MAX_FEE_PER_GAS", 10*gwei)
	if err != nil {
		return nil, err
	}
	maxPriorityFee, err := parseUint(getenv, "MAX_PRIORITY_FEE_PER_GAS", 10*gwei)
	if err != nil {
		return nil, err
	}
	if maxPriorityFee > maxFee {
		return nil, fmt.Errorf("MAX_PRIORITY_FEE_PER_GAS %d exceeds MAX_FEE_PER_GAS %d", maxPriorityFee, maxFee)
	}
	cfg.Gas = chain.GasParams{
		GasLimit:             gasLimit,
		MaxFeePerGas:         new(big.Int).SetUint64(maxFee),
		MaxPriorityFeePerGas: new(big.Int).SetUint64(maxPriorityFee),
	}

	return cfg, nil
}

// ParseAddress accepts a hex address in any letter case.
func ParseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(value), nil
}

func parsePrivateKey(value string) (*ecdsa.PrivateKey, error) {
	if value == "" {
		return nil, fmt.Errorf("DEPLOYER_PRIVATE_KEY is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DEPLOYER_PRIVATE_KEY: %w", err)
	}
	return key, nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	value := getenv(key)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parseUint(getenv func(string) string, key string, def uint64) (uint64, error) {
	value := getenv(key)
	if value == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return n, nil
}

func withDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
