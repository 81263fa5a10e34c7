package keeper

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/database/models"
	"github.com/floxi-finance/floxi-keeper/metrics"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

func (k *Keeper) handleDeposit(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeDeposit(log)
	if err != nil {
		k.logger.Warn("failed to decode Deposit", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("Deposit")
	k.logger.Info("deposit received", "from", ev.From, "amount", ev.Amount, "tx", log.TxHash)
	return nil
}

func (k *Keeper) handleTransfer(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeTransfer(log)
	if err != nil {
		k.logger.Warn("failed to decode Transfer", "tx", log.TxHash, "error", err)
		return nil
	}
	if ev.From != (common.Address{}) {
		return nil
	}
	metrics.RecordEvent("Transfer")
	k.logger.Info("shares minted", "to", ev.To, "shares", ev.Value, "tx", log.TxHash)
	return nil
}

func (k *Keeper) handleWithdrawalsUnlocked(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeWithdrawalsUnlocked(log)
	if err != nil {
		k.logger.Warn("failed to decode WithdrawalsUnlocked", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("WithdrawalsUnlocked")
	k.logger.Info("withdrawals unlocked on L2",
		"assets", ev.AssetsUnlocked,
		"fromNonce", ev.FromNonce,
		"toNonce", ev.ToNonce,
		"tx", log.TxHash)
	return nil
}

// handleWithdrawalQueued persists an L2 withdrawal request and starts its
// finality wait. Requests past REQUESTED are replays and are skipped.
func (k *Keeper) handleWithdrawalQueued(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeWithdrawalQueued(log)
	if err != nil {
		k.logger.Warn("failed to decode WithdrawalQueued", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("WithdrawalQueued")

	req := &WithdrawalRequest{
		Account:     ev.Account,
		Nonce:       ev.Nonce,
		Assets:      ev.Assets,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
	}

	stored, err := k.store.GetWithdrawalRequest(ctx, lowerHex(req.Account), req.Nonce.String())
	if err != nil {
		return err
	}
	if stored != nil && keepertypes.RequestStatus(stored.Status) != keepertypes.Requested {
		k.logger.Debug("skipping handled withdrawal request", "account", req.Account, "nonce", req.Nonce, "status", stored.Status)
		return nil
	}
	if k.trackers.RequestInFlight(req.Key()) {
		return nil
	}

	if err := k.store.UpsertWithdrawalRequest(ctx, requestToModel(req, keepertypes.Requested, "")); err != nil {
		return err
	}

	k.logger.Info("withdrawal requested on L2",
		"account", req.Account,
		"nonce", req.Nonce,
		"assets", req.Assets,
		"block", req.BlockNumber)

	k.startRequest(ctx, req)
	return nil
}

func (k *Keeper) startRequest(ctx context.Context, req *WithdrawalRequest) {
	if !k.trackers.StartRequest(req) {
		return
	}
	k.spawn(func() {
		defer k.trackers.FinishRequest(req.Key())
		k.processRequest(ctx, req)
	})
}

// processRequest waits for the request's block to be finalized on L2, then
// initiates the matching restaking withdrawal on L1.
func (k *Keeper) processRequest(ctx context.Context, req *WithdrawalRequest) {
	logger := k.logger.With("account", req.Account, "nonce", req.Nonce)

	err := k.waitForBlock(ctx, "l2", k.l2, chain.Finalized, req.BlockNumber, k.opts.L2FinalityPollInterval)
	if err != nil {
		// The request stays REQUESTED and is resumed by the sweep.
		logger.Warn("withdrawal request not initiated", "error", err)
		return
	}

	calldata, err := contracts.EncodeQueueWithdrawals([]contracts.QueuedWithdrawalParams{{
		Strategies: []common.Address{k.opts.Addresses.Strategy},
		Shares:     []*big.Int{req.Assets},
		Withdrawer: k.opts.Addresses.FloxiL1,
	}})
	if err != nil {
		logger.Error("failed to encode queueWithdrawals", "error", err)
		k.persistRequest(ctx, req, keepertypes.RequestFailed, err.Error())
		return
	}

	receipt, err := k.l1.InitiateEigenlayerWithdrawal(ctx, calldata)
	metrics.RecordTransaction("l1", "initiateEigenlayerWithdrawal", err)
	if err != nil {
		if chain.IsRevert(err) {
			logger.Warn("failed to initiate eigenlayer withdrawal", "error", err)
		} else {
			logger.Error("failed to initiate eigenlayer withdrawal", "error", err)
		}
		k.persistRequest(ctx, req, keepertypes.RequestFailed, err.Error())
		return
	}

	logger.Info("eigenlayer withdrawal initiated", "tx", receipt.TxHash, "block", receipt.BlockNumber)
	k.persistRequest(ctx, req, keepertypes.RequestInitiated, "")
}

// persistRequest records the final state of a request even during shutdown.
func (k *Keeper) persistRequest(ctx context.Context, req *WithdrawalRequest, status keepertypes.RequestStatus, reason string) {
	if err := k.store.UpsertWithdrawalRequest(context.WithoutCancel(ctx), requestToModel(req, status, reason)); err != nil {
		k.logger.Error("failed to persist withdrawal request", "account", req.Account, "nonce", req.Nonce, "status", status, "error", err)
	}
}

// handleDepositsFinalized matches bridge deposits to completed L1
// withdrawals and settles each matched batch on L2. Deposits that match
// nothing are kept until their completed withdrawal shows up.
func (k *Keeper) handleDepositsFinalized(ctx context.Context, logs []types.Log) error {
	var deposits []DepositMatch
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := contracts.DecodeDepositFinalized(log)
		if err != nil {
			k.logger.Warn("failed to decode DepositFinalized", "tx", log.TxHash, "error", err)
			continue
		}
		if ev.From != k.opts.Addresses.FloxiL1 {
			continue
		}
		id := logID(log)
		if k.trackers.DepositMatched(id) {
			continue
		}
		metrics.RecordEvent("DepositFinalized")
		deposits = append(deposits, DepositMatch{
			LogID:       id,
			Amount:      ev.Amount,
			TxHash:      log.TxHash,
			BlockNumber: log.BlockNumber,
			LogIndex:    log.Index,
		})
	}

	for len(deposits) > 0 {
		if err := k.reserveAndUnlock(ctx, &deposits); err != nil {
			return err
		}
	}
	return nil
}

// matchUnmatched retries kept deposits against the pending completed
// withdrawals.
func (k *Keeper) matchUnmatched(ctx context.Context) error {
	if !k.trackers.CanMatchUnmatched() {
		return nil
	}

	deposits := k.trackers.Unmatched()
	k.logger.Info("matching kept bridge deposits", "deposits", len(deposits))
	for len(deposits) > 0 {
		if err := k.reserveAndUnlock(ctx, &deposits); err != nil {
			return err
		}
	}
	return nil
}

// reserveAndUnlock folds the next chunk of deposits into one batch and
// consumes them from deposits.
func (k *Keeper) reserveAndUnlock(ctx context.Context, deposits *[]DepositMatch) error {
	k.unlockMu.Lock()
	defer k.unlockMu.Unlock()

	pending := *deposits
	batch, consumed := k.trackers.Reserve("", pending, k.opts.MaxUnlockMatches)
	*deposits = pending[consumed:]

	if err := k.keepUnmatched(ctx, pending[:consumed]); err != nil {
		return err
	}

	if batch == nil {
		return nil
	}

	if err := k.store.UpsertCompletedWithdrawals(ctx, batchToModels(batch)); err != nil {
		return err
	}

	matched := make([]string, len(batch.Entries))
	for i, e := range batch.Entries {
		matched[i] = e.DepositLog
	}
	if err := k.store.DeleteUnmatchedDeposits(ctx, matched); err != nil {
		k.logger.Error("failed to delete matched deposits", "batch", batch.ID, "error", err)
	}

	k.logger.Info("completed withdrawals reserved",
		"batch", batch.ID,
		"matches", batch.Count(),
		"amount", batch.Amount())

	k.processBatch(ctx, batch)
	return nil
}

// keepUnmatched persists and tracks the consumed deposits that no batch
// holds and that are not already kept.
func (k *Keeper) keepUnmatched(ctx context.Context, consumed []DepositMatch) error {
	var fresh []DepositMatch
	for _, d := range consumed {
		if k.trackers.DepositMatched(d.LogID) || k.trackers.HasUnmatched(d.LogID) {
			continue
		}
		fresh = append(fresh, d)
	}
	if len(fresh) == 0 {
		return nil
	}

	docs := make([]models.UnmatchedDeposit, len(fresh))
	for i, d := range fresh {
		docs[i] = depositToModel(d)
	}
	if err := k.store.UpsertUnmatchedDeposits(ctx, docs); err != nil {
		return err
	}

	for _, d := range fresh {
		k.trackers.AddUnmatched(d)
		k.logger.Warn("bridge deposit matched no completed withdrawal", "deposit", d.LogID, "amount", d.Amount)
	}
	return nil
}

// processBatch drives a batch through setL1Assets and unlockWithdrawals.
// It must be called with unlockMu held. A failed step leaves the batch in
// its current state for the sweep to retry.
func (k *Keeper) processBatch(ctx context.Context, batch *UnlockBatch) {
	amount := batch.Amount()
	count := big.NewInt(int64(batch.Count()))
	logger := k.logger.With("batch", batch.ID, "matches", batch.Count(), "amount", amount)

	if batch.Status == keepertypes.Reserved {
		current, err := k.l2.GetL1Assets(ctx)
		if err != nil {
			logger.Error("failed to get L1 assets", "error", err)
			return
		}

		updated := new(big.Int).Sub(current, amount)
		if updated.Sign() < 0 {
			logger.Error("unlock amount exceeds recorded L1 assets", "l1Assets", current)
			return
		}

		_, err = k.l2.SetL1Assets(ctx, updated)
		metrics.RecordTransaction("l2", "setL1Assets", err)
		if err != nil {
			logger.Error("failed to set L1 assets", "l1Assets", updated, "error", err)
			return
		}

		k.trackers.SetBatchStatus(batch.ID, keepertypes.L1AssetsSet)
		if err := k.store.UpsertCompletedWithdrawals(context.WithoutCancel(ctx), batchToModels(batch)); err != nil {
			logger.Error("failed to persist unlock batch", "error", err)
		}
		logger.Info("L1 assets updated", "l1Assets", updated)
	}

	receipt, err := k.l2.UnlockWithdrawals(ctx, amount, count)
	metrics.RecordTransaction("l2", "unlockWithdrawals", err)
	if err != nil {
		logger.Error("failed to unlock withdrawals", "error", err)
		return
	}

	k.trackers.CommitBatch(batch.ID)
	if err := k.store.DeleteCompletedWithdrawals(context.WithoutCancel(ctx), batch.IDs()); err != nil {
		logger.Error("failed to delete unlocked withdrawals", "error", err)
	}

	logger.Info("withdrawals unlocked", "tx", receipt.TxHash)
}
