package ethereum

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
	Chain                    chain.ClientOpts
	FloxiL1Address           common.Address
	DelegationManagerAddress common.Address
	StrategyAddress          common.Address
	SfrxEthAddress           common.Address
	// Gas applies to every transaction except depositIntoStrategy.
	Gas chain.GasParams
}

// NewClient returns a new L1 client over HTTP.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Chain.Name == "" {
		opts.Chain.Name = "Ethereum"
	}

	c, err := chain.NewClient(opts.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum: %w", err)
	}

	client := newClient(c, opts)

	// Warn user if the contracts are not found at the given addresses.
	ctx := context.TODO()
	for _, k := range knownContracts(opts) {
		c.WarnIfNotContract(ctx, k.name, k.address)
	}

	return client, nil
}

type namedContract struct {
	name    string
	address common.Address
}

// knownContracts lists the L1 contracts the keeper reads or calls.
func knownContracts(opts ClientOpts) []namedContract {
	return []namedContract{
		{"FloxiL1", opts.FloxiL1Address},
		{"DelegationManager", opts.DelegationManagerAddress},
		{"Strategy", opts.StrategyAddress},
		{"sfrxEth", opts.SfrxEthAddress},
	}
}

func newClient(c *chain.Client, opts ClientOpts) *Client {
	return &Client{
		Client: c,
		logger: c.Logger(),
		Opts:   &opts,
	}
}
