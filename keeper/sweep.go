package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/metrics"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

// cronLogger adapts slog to cron.Logger. Scheduler chatter goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// runSweep runs Sweep on the configured schedule until ctx is cancelled.
// A tick is skipped while the previous one is still running.
func (k *Keeper) runSweep(ctx context.Context) error {
	logger := cronLogger{logger: k.logger.With("component", "sweep")}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(k.opts.SweepSchedule, func() {
		k.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", k.opts.SweepSchedule, err)
	}

	c.Start()
	if entries := c.Entries(); len(entries) > 0 {
		k.logger.Info("sweep scheduler started", "schedule", k.opts.SweepSchedule, "next", entries[0].Next.Format(time.RFC3339))
	}

	<-ctx.Done()
	<-c.Stop().Done()
	k.logger.Info("sweep scheduler stopped")
	return nil
}

// Sweep completes matured restaking withdrawals, ships settled assets to
// L2, retries unfinished unlock batches and kept bridge deposits, and
// resumes stalled requests.
func (k *Keeper) Sweep(ctx context.Context) {
	if err := k.completeWithdrawals(ctx); err != nil {
		metrics.RecordSweep("error")
		k.logger.Error("failed to complete withdrawals", "error", err)
	} else {
		metrics.RecordSweep("success")
	}

	receipt, err := k.l1.ShipToL2(ctx)
	metrics.RecordTransaction("l1", "shipToL2", err)
	if err != nil {
		k.logger.Warn("failed to ship to L2", "error", err)
	} else {
		k.logger.Info("shipped to L2", "tx", receipt.TxHash)
	}

	k.retryBatches(ctx)
	if err := k.matchUnmatched(ctx); err != nil {
		k.logger.Error("failed to match kept bridge deposits", "error", err)
	}
	k.resumeRequests(ctx)
	k.checkStalePassengers()
	k.updatePendingMetrics()
}

// completeWithdrawals completes every queued restaking withdrawal with
// startBlock + delay < safe block. Entries are dropped only once mined.
func (k *Keeper) completeWithdrawals(ctx context.Context) error {
	queued := k.trackers.Queued()
	if len(queued) == 0 {
		return nil
	}

	delay, err := k.l1.WithdrawalDelay(ctx, []common.Address{k.opts.Addresses.Strategy})
	if err != nil {
		return err
	}
	safe, err := k.l1.BlockNumber(ctx, chain.Safe)
	if err != nil {
		return err
	}
	safeBlock := new(big.Int).SetUint64(safe)

	for _, q := range queued {
		unlockBlock := new(big.Int).Add(new(big.Int).SetUint64(uint64(q.Withdrawal.StartBlock)), delay)
		if unlockBlock.Cmp(safeBlock) >= 0 {
			continue
		}

		logger := k.logger.With("restakingNonce", q.Withdrawal.Nonce, "startBlock", q.Withdrawal.StartBlock)

		receipt, err := k.l1.CompleteEigenlayerWithdrawal(ctx, q.Withdrawal)
		metrics.RecordTransaction("l1", "completeEigenlayerWithdrawal", err)
		if err != nil {
			if chain.IsRevert(err) {
				logger.Warn("failed to complete eigenlayer withdrawal", "error", err)
			} else {
				logger.Error("failed to complete eigenlayer withdrawal", "error", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		k.trackers.RemoveQueued(q.Withdrawal.Nonce)
		if err := k.store.DeleteQueuedWithdrawal(context.WithoutCancel(ctx), q.Withdrawal.Nonce.String()); err != nil {
			logger.Error("failed to delete queued withdrawal", "error", err)
		}
		logger.Info("eigenlayer withdrawal completed", "tx", receipt.TxHash)
	}

	return nil
}

func (k *Keeper) retryBatches(ctx context.Context) {
	k.unlockMu.Lock()
	defer k.unlockMu.Unlock()

	for _, b := range k.trackers.Batches() {
		if ctx.Err() != nil {
			return
		}
		k.logger.Warn("retrying unlock batch", "batch", b.ID, "status", b.Status, "matches", b.Count())
		k.processBatch(ctx, b)
	}
}

// resumeRequests restarts REQUESTED withdrawal requests that have no
// running finality wait.
func (k *Keeper) resumeRequests(ctx context.Context) {
	requests, err := k.store.GetWithdrawalRequests(ctx, string(keepertypes.Requested))
	if err != nil {
		k.logger.Error("failed to get withdrawal requests", "error", err)
		return
	}

	for _, m := range requests {
		req, err := requestFromModel(m)
		if err != nil {
			k.logger.Error("invalid stored withdrawal request", "account", m.Account, "nonce", m.Nonce, "error", err)
			continue
		}
		if k.trackers.RequestInFlight(req.Key()) {
			continue
		}
		k.logger.Info("resuming withdrawal request", "account", req.Account, "nonce", req.Nonce)
		k.startRequest(ctx, req)
	}
}

// checkStalePassengers reports embarked tickets that no Depart has covered
// within StalePassengerAfter.
func (k *Keeper) checkStalePassengers() int {
	now := k.opts.Now()
	stale := 0
	for _, p := range k.trackers.Embarked() {
		embarkedAt := time.Unix(int64(p.Timestamp), 0)
		if now.Sub(embarkedAt) <= k.opts.StalePassengerAfter {
			continue
		}
		stale++
		k.logger.Warn("passenger not departed", "index", p.Index, "embarkedAt", embarkedAt, "amount", p.Amount)
	}
	metrics.SetStalePassengers(stale)
	return stale
}
