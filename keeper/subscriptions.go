package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/metrics"
)

// subscription watches the logs of one contract. Logs arrive in chain order
// and are handled one batch at a time, so events of one contract are never
// reordered.
type subscription struct {
	name       string
	watcher    LogWatcher
	addresses  []common.Address
	topics     [][]common.Hash
	startBlock uint64
	handle     func(ctx context.Context, logs []types.Log) error
}

type logHandler func(ctx context.Context, log types.Log) error

// dispatch routes every log to the handler registered for its first topic.
func dispatch(handlers map[common.Hash]logHandler) func(ctx context.Context, logs []types.Log) error {
	return func(ctx context.Context, logs []types.Log) error {
		for _, log := range logs {
			if len(log.Topics) == 0 || log.Removed {
				continue
			}
			h, ok := handlers[log.Topics[0]]
			if !ok {
				continue
			}
			if err := h(ctx, log); err != nil {
				return err
			}
		}
		return nil
	}
}

func topicsOf(handlers map[common.Hash]logHandler) [][]common.Hash {
	topics := make([]common.Hash, 0, len(handlers))
	for t := range handlers {
		topics = append(topics, t)
	}
	return [][]common.Hash{topics}
}

func (k *Keeper) subscriptions() []subscription {
	a := k.opts.Addresses

	floxiL2 := map[common.Hash]logHandler{
		contracts.DepositTopic:             k.handleDeposit,
		contracts.TransferTopic:            k.handleTransfer,
		contracts.WithdrawalQueuedTopic:    k.handleWithdrawalQueued,
		contracts.WithdrawalsUnlockedTopic: k.handleWithdrawalsUnlocked,
	}
	l2Ferry := map[common.Hash]logHandler{
		contracts.EmbarkTopic:    k.handleEmbark,
		contracts.DepartTopic:    k.handleDepart,
		contracts.CancelledTopic: k.handleCancelled,
	}
	floxiL1 := map[common.Hash]logHandler{
		contracts.AssetsDepositedIntoStrategyTopic: k.handleAssetsDepositedIntoStrategy,
		contracts.WithdrawalInitiatedTopic:         k.handleWithdrawalInitiated,
		contracts.WithdrawalCompletedTopic:         k.handleWithdrawalCompleted,
	}
	l1Ferry := map[common.Hash]logHandler{
		contracts.DisembarkTopic: k.handleDisembark,
	}

	return []subscription{
		{
			name:       "floxi-l2",
			watcher:    k.l2,
			addresses:  []common.Address{a.FloxiL2},
			topics:     topicsOf(floxiL2),
			startBlock: k.opts.L2StartBlock,
			handle:     dispatch(floxiL2),
		},
		{
			name:      "l2-standard-bridge",
			watcher:   k.l2,
			addresses: []common.Address{a.L2StandardBridge},
			// DepositFinalized(l1Token, l2Token, from, ...) filtered to the vault's sfrxEth route.
			topics: [][]common.Hash{
				{contracts.DepositFinalizedTopic},
				{common.BytesToHash(a.L1SfrxEth.Bytes())},
				{common.BytesToHash(a.L2SfrxEth.Bytes())},
				{common.BytesToHash(a.FloxiL1.Bytes())},
			},
			startBlock: k.opts.L2StartBlock,
			handle:     k.handleDepositsFinalized,
		},
		{
			name:       "fraxtal-ferry",
			watcher:    k.l2,
			addresses:  []common.Address{a.L2FraxFerry},
			topics:     topicsOf(l2Ferry),
			startBlock: k.opts.L2StartBlock,
			handle:     dispatch(l2Ferry),
		},
		{
			name:       "floxi-l1",
			watcher:    k.l1,
			addresses:  []common.Address{a.FloxiL1},
			topics:     topicsOf(floxiL1),
			startBlock: k.opts.L1StartBlock,
			handle:     dispatch(floxiL1),
		},
		{
			name:       "ethereum-ferry",
			watcher:    k.l1,
			addresses:  []common.Address{a.L1FraxFerry},
			topics:     topicsOf(l1Ferry),
			startBlock: k.opts.L1StartBlock,
			handle:     dispatch(l1Ferry),
		},
	}
}

// runSubscription watches s until ctx is cancelled. A failed handler or a
// dead subscription restarts the watch from the last persisted cursor.
func (k *Keeper) runSubscription(ctx context.Context, s subscription) error {
	logger := k.logger.With("subscription", s.name)

	for {
		err := k.watch(ctx, s)
		if ctx.Err() != nil {
			logger.Info("shutting down subscription")
			return nil
		}

		logger.Error("subscription stopped, restarting", "error", err, "delay", k.opts.ResubscribeDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(k.opts.ResubscribeDelay):
		}
	}
}

func (k *Keeper) watch(ctx context.Context, s subscription) error {
	start := s.startBlock
	last, err := k.store.GetLastIndexedBlock(ctx, s.name)
	if err != nil {
		return err
	}
	if last > 0 {
		start = last + 1
	}

	sink := make(chan chain.LogBatch)
	sub, err := s.watcher.WatchLogs(ctx, chain.LogQuery{
		Name:      s.name,
		Addresses: s.addresses,
		Topics:    s.topics,
		FromBlock: start,
	}, sink)
	if err != nil {
		return fmt.Errorf("failed to watch %s logs: %w", s.name, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("%s subscription failed: %w", s.name, err)
		case batch := <-sink:
			if len(batch.Logs) > 0 {
				k.logger.Debug("processing logs",
					"subscription", s.name,
					"fromBlock", batch.FromBlock,
					"toBlock", batch.ToBlock,
					"logs", len(batch.Logs))
			}

			if err := s.handle(ctx, batch.Logs); err != nil {
				return fmt.Errorf("failed to handle %s logs in [%d, %d]: %w", s.name, batch.FromBlock, batch.ToBlock, err)
			}

			if err := k.store.UpdateLastIndexedBlock(ctx, s.name, batch.ToBlock); err != nil {
				return err
			}
			metrics.SetLastIndexedBlock(s.name, batch.ToBlock)
			k.updatePendingMetrics()
		}
	}
}
