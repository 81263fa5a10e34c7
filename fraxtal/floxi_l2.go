package fraxtal

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/contracts"
)

type FloxiL2 interface {
	GetL1Assets(ctx context.Context) (*big.Int, error)
	SetL1Assets(ctx context.Context, assets *big.Int) (*types.Receipt, error)
	UnlockWithdrawals(ctx context.Context, assets *big.Int, maxIterations *big.Int) (*types.Receipt, error)
}

var _ FloxiL2 = &Client{}

// GetL1Assets reads the vault's record of assets held on L1.
func (c *Client) GetL1Assets(ctx context.Context) (*big.Int, error) {
	out, err := c.Call(ctx, c.Opts.FloxiL2Address, contracts.FloxiL2ABI, "getL1Assets")
	if err != nil {
		return nil, fmt.Errorf("failed to get L1 assets: %w", err)
	}
	assets, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getL1Assets output %T", out[0])
	}
	return assets, nil
}

func (c *Client) SetL1Assets(ctx context.Context, assets *big.Int) (*types.Receipt, error) {
	return c.Transact(ctx, c.Opts.FloxiL2Address, contracts.FloxiL2ABI, c.Opts.Gas, "setL1Assets", assets)
}

// UnlockWithdrawals releases queued L2 withdrawals worth assets, visiting at
// most maxIterations queue entries.
func (c *Client) UnlockWithdrawals(ctx context.Context, assets *big.Int, maxIterations *big.Int) (*types.Receipt, error) {
	return c.Transact(ctx, c.Opts.FloxiL2Address, contracts.FloxiL2ABI, c.Opts.Gas, "unlockWithdrawals", assets, maxIterations)
}
