package chain

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// LogQuery selects the logs delivered by WatchLogs.
type LogQuery struct {
	Name      string
	Addresses []common.Address
	Topics    [][]common.Hash
	// FromBlock is the first block to scan. Zero starts after the current head.
	FromBlock uint64
}

// LogBatch holds every matching log in [FromBlock, ToBlock], in chain order.
type LogBatch struct {
	FromBlock uint64
	ToBlock   uint64
	Logs      []types.Log
}

// WatchLogs polls the chain on every tick and delivers one batch per scanned
// block range, including empty ranges, so consumers can checkpoint ToBlock
// and restart from any block. The subscription ends with an error once the
// RPC retries are exhausted.
func (c *Client) WatchLogs(ctx context.Context, q LogQuery, sink chan<- LogBatch) (event.Subscription, error) {
	next := q.FromBlock
	if next == 0 {
		head, err := c.BlockNumber(ctx, Latest)
		if err != nil {
			return nil, err
		}
		next = head + 1
	}

	c.logger.Info("watching logs", "subscription", q.Name, "fromBlock", next)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(c.Opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			head, err := c.BlockNumber(ctx, Latest)
			if err != nil {
				return err
			}

			for next <= head {
				end := min(head, next+c.Opts.MaxBlockRange-1)

				logs, err := c.FilterLogs(ctx, ethereum.FilterQuery{
					FromBlock: new(big.Int).SetUint64(next),
					ToBlock:   new(big.Int).SetUint64(end),
					Addresses: q.Addresses,
					Topics:    q.Topics,
				})
				if err != nil {
					return err
				}

				select {
				case sink <- LogBatch{FromBlock: next, ToBlock: end, Logs: logs}:
				case <-quit:
					return nil
				}

				next = end + 1
			}
		}
	}), nil
}
