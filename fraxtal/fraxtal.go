package fraxtal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floxi-finance/floxi-keeper/chain"
)

type Client struct {
	*chain.Client
	logger *slog.Logger
	Opts   *ClientOpts
}

type ClientOpts struct {
	Chain                   chain.ClientOpts
	FloxiL2Address          common.Address
	L2StandardBridgeAddress common.Address
	FraxFerryAddress        common.Address
	Gas                     chain.GasParams
}

// NewClient returns a new Fraxtal client over HTTP.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Chain.Name == "" {
		opts.Chain.Name = "Fraxtal"
	}

	c, err := chain.NewClient(opts.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Fraxtal: %w", err)
	}

	// Warn user if the contracts are not found at the given addresses.
	ctx := context.TODO()
	c.WarnIfNotContract(ctx, "FloxiL2", opts.FloxiL2Address)
	c.WarnIfNotContract(ctx, "L2StandardBridge", opts.L2StandardBridgeAddress)
	c.WarnIfNotContract(ctx, "FraxFerry", opts.FraxFerryAddress)

	return &Client{
		Client: c,
		logger: c.Logger(),
		Opts:   &opts,
	}, nil
}
