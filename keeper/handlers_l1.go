package keeper

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/database/models"
	"github.com/floxi-finance/floxi-keeper/metrics"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

func (k *Keeper) handleAssetsDepositedIntoStrategy(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeAssetsDepositedIntoStrategy(log)
	if err != nil {
		k.logger.Warn("failed to decode AssetsDepositedIntoStrategy", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("AssetsDepositedIntoStrategy")
	k.logger.Info("assets deposited into strategy",
		"assets", ev.Assets,
		"shares", ev.Shares,
		"strategy", ev.Strategy,
		"tx", log.TxHash)
	return nil
}

// handleWithdrawalInitiated correlates the vault's WithdrawalInitiated with
// the delegation manager WithdrawalQueued emitted in the same block.
func (k *Keeper) handleWithdrawalInitiated(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeWithdrawalInitiated(log)
	if err != nil {
		k.logger.Warn("failed to decode WithdrawalInitiated", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("WithdrawalInitiated")

	logger := k.logger.With("tx", log.TxHash, "staker", ev.Staker, "nonce", ev.Nonce)
	if ev.Staker != k.opts.Addresses.FloxiL1 {
		logger.Warn("withdrawal initiated for unexpected staker", "vault", k.opts.Addresses.FloxiL1)
	}

	// Lookup failures are returned so the subscription replays the event.
	receipt, err := k.l1.TransactionReceipt(ctx, log.TxHash)
	if err != nil {
		return fmt.Errorf("failed to get WithdrawalInitiated receipt %s: %w", log.TxHash, err)
	}
	block := receipt.BlockNumber.Uint64()

	queued, err := k.l1.EigenWithdrawalsQueuedAt(ctx, block)
	if err != nil {
		return fmt.Errorf("failed to get restaking withdrawals at block %d: %w", block, err)
	}

	matched := 0
	for _, q := range queued {
		if q.Withdrawal.Staker != ev.Staker {
			continue
		}
		matched++

		entry := &QueuedWithdrawal{
			Withdrawal:     q.Withdrawal,
			WithdrawalRoot: common.Hash(q.WithdrawalRoot),
			TxHash:         q.Raw.TxHash,
			BlockNumber:    block,
		}
		if err := k.store.UpsertQueuedWithdrawal(ctx, queuedToModel(entry)); err != nil {
			return err
		}
		if k.trackers.AddQueued(entry) {
			logger.Info("restaking withdrawal queued",
				"restakingNonce", entry.Withdrawal.Nonce,
				"startBlock", entry.Withdrawal.StartBlock,
				"root", entry.WithdrawalRoot)
		}
	}

	if matched == 0 {
		logger.Warn("no restaking withdrawal found for initiated withdrawal", "block", block)
	}
	return nil
}

func (k *Keeper) handleWithdrawalCompleted(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeWithdrawalCompleted(log)
	if err != nil {
		k.logger.Warn("failed to decode WithdrawalCompleted", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("WithdrawalCompleted")

	c := &CompletedWithdrawal{
		ID:          logID(log),
		Assets:      ev.Assets,
		Shares:      ev.Shares,
		Strategy:    ev.Strategy,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}
	if k.trackers.HasCompleted(c.ID) {
		return nil
	}

	if err := k.store.UpsertCompletedWithdrawals(ctx, []models.CompletedWithdrawal{completedToModel(c, keepertypes.Pending, "")}); err != nil {
		return err
	}
	k.trackers.AddCompleted(c)

	k.logger.Info("withdrawal completed on L1", "id", c.ID, "assets", c.Assets, "shares", c.Shares)

	// The bridge deposit may already have been seen on L2.
	return k.matchUnmatched(ctx)
}
