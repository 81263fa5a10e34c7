package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floxi-finance/floxi-keeper/contracts"
)

func (c *Client) SfrxEthBalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := c.Call(ctx, c.Opts.SfrxEthAddress, contracts.ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get sfrxEth balance: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output %T", out[0])
	}
	return balance, nil
}
