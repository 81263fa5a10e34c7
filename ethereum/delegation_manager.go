package ethereum

import (
	"context"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/floxi-finance/floxi-keeper/contracts"
)

type DelegationManager interface {
	WithdrawalDelay(ctx context.Context, strategies []common.Address) (*big.Int, error)
	EigenWithdrawalsQueuedAt(ctx context.Context, blockNumber uint64) ([]*contracts.DelegationManagerWithdrawalQueued, error)
}

var _ DelegationManager = &Client{}

// WithdrawalDelay reads the current unlock delay, in blocks, for strategies.
func (c *Client) WithdrawalDelay(ctx context.Context, strategies []common.Address) (*big.Int, error) {
	out, err := c.Call(ctx, c.Opts.DelegationManagerAddress, contracts.DelegationManagerABI, "getWithdrawalDelay", strategies)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal delay: %w", err)
	}
	delay, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getWithdrawalDelay output %T", out[0])
	}
	return delay, nil
}

// EigenWithdrawalsQueuedAt returns the delegation manager WithdrawalQueued
// events emitted in a single block.
func (c *Client) EigenWithdrawalsQueuedAt(ctx context.Context, blockNumber uint64) ([]*contracts.DelegationManagerWithdrawalQueued, error) {
	block := new(big.Int).SetUint64(blockNumber)
	logs, err := c.FilterLogs(ctx, geth.FilterQuery{
		FromBlock: block,
		ToBlock:   block,
		Addresses: []common.Address{c.Opts.DelegationManagerAddress},
		Topics:    [][]common.Hash{{contracts.EigenWithdrawalQueuedTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter WithdrawalQueued: %w", err)
	}

	events := make([]*contracts.DelegationManagerWithdrawalQueued, 0, len(logs))
	for _, log := range logs {
		ev, err := contracts.DecodeEigenWithdrawalQueued(log)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
