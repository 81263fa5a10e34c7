package ethereum

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
)

type FloxiL1 interface {
	InitiateEigenlayerWithdrawal(ctx context.Context, queueWithdrawalsCalldata []byte) (*types.Receipt, error)
	CompleteEigenlayerWithdrawal(ctx context.Context, withdrawal contracts.Withdrawal) (*types.Receipt, error)
	ShipToL2(ctx context.Context) (*types.Receipt, error)
	DepositIntoStrategy(ctx context.Context) (*types.Receipt, error)
}

var _ FloxiL1 = &Client{}

// InitiateEigenlayerWithdrawal forwards queueWithdrawals call data through the vault.
func (c *Client) InitiateEigenlayerWithdrawal(ctx context.Context, queueWithdrawalsCalldata []byte) (*types.Receipt, error) {
	return c.Transact(ctx, c.Opts.FloxiL1Address, contracts.FloxiL1ABI, c.Opts.Gas, "initiateEigenlayerWithdrawal", queueWithdrawalsCalldata)
}

func (c *Client) CompleteEigenlayerWithdrawal(ctx context.Context, withdrawal contracts.Withdrawal) (*types.Receipt, error) {
	return c.Transact(ctx, c.Opts.FloxiL1Address, contracts.FloxiL1ABI, c.Opts.Gas, "completeEigenlayerWithdrawal", withdrawal)
}

func (c *Client) ShipToL2(ctx context.Context) (*types.Receipt, error) {
	return c.Transact(ctx, c.Opts.FloxiL1Address, contracts.FloxiL1ABI, c.Opts.Gas, "shipToL2")
}

// DepositIntoStrategy uses the node's current fee estimates.
func (c *Client) DepositIntoStrategy(ctx context.Context) (*types.Receipt, error) {
	return c.Transact(ctx, c.Opts.FloxiL1Address, contracts.FloxiL1ABI, chain.GasParams{}, "depositIntoStrategy")
}
