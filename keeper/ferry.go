package keeper

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/metrics"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

// handleEmbark tracks tickets bought by the L2 vault.
func (k *Keeper) handleEmbark(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeEmbark(log)
	if err != nil {
		k.logger.Warn("failed to decode Embark", "tx", log.TxHash, "error", err)
		return nil
	}
	if ev.Sender != k.opts.Addresses.FloxiL2 {
		return nil
	}
	metrics.RecordEvent("Embark")

	if k.trackers.HasPassenger(ev.Index) {
		return nil
	}

	p := &Passenger{
		Sender:         ev.Sender,
		Index:          ev.Index,
		Amount:         ev.Amount,
		AmountAfterFee: ev.AmountAfterFee,
		Timestamp:      ev.Timestamp.Uint64(),
		TxHash:         log.TxHash,
		BlockNumber:    log.BlockNumber,
	}
	if err := k.store.UpsertPassenger(ctx, passengerToModel(p, keepertypes.Embarked)); err != nil {
		return err
	}
	k.trackers.Embark(p)

	k.logger.Info("passenger embarked", "index", p.Index, "amount", p.Amount, "amountAfterFee", p.AmountAfterFee)
	return nil
}

// handleDepart moves every embarked passenger with start <= index < end
// into the departed batch.
func (k *Keeper) handleDepart(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeDepart(log)
	if err != nil {
		k.logger.Warn("failed to decode Depart", "tx", log.TxHash, "error", err)
		return nil
	}
	metrics.RecordEvent("Depart")

	hash := common.Hash(ev.Hash)
	for _, p := range k.trackers.Embarked() {
		if p.Index.Cmp(ev.Start) < 0 || p.Index.Cmp(ev.End) >= 0 {
			continue
		}
		departed := *p
		departed.BatchHash = hash
		if err := k.store.UpsertPassenger(ctx, passengerToModel(&departed, keepertypes.Departed)); err != nil {
			return err
		}
	}

	moved := k.trackers.Depart(ev.Start, ev.End, hash)
	if len(moved) > 0 {
		k.logger.Info("passengers departed",
			"batchNo", ev.BatchNo,
			"start", ev.Start,
			"end", ev.End,
			"hash", hash,
			"passengers", len(moved))
	}
	return nil
}

func (k *Keeper) handleCancelled(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeCancelled(log)
	if err != nil {
		k.logger.Warn("failed to decode Cancelled", "tx", log.TxHash, "error", err)
		return nil
	}
	if !ev.Cancel {
		return nil
	}

	p, ok := k.trackers.Cancel(ev.Index)
	if !ok {
		return nil
	}
	metrics.RecordEvent("Cancelled")

	k.logger.Warn("embarked passenger cancelled", "index", p.Index, "amount", p.Amount)
	return k.store.UpsertPassenger(ctx, passengerToModel(p, keepertypes.Embarked))
}

// handleDisembark releases a departed batch that reached L1 and deposits
// the delivered assets once the event is safe.
func (k *Keeper) handleDisembark(ctx context.Context, log types.Log) error {
	ev, err := contracts.DecodeDisembark(log)
	if err != nil {
		k.logger.Warn("failed to decode Disembark", "tx", log.TxHash, "error", err)
		return nil
	}

	hash := common.Hash(ev.Hash)
	if len(k.trackers.Departed(hash)) == 0 {
		return nil
	}
	metrics.RecordEvent("Disembark")

	if err := k.store.DeletePassengersByBatch(ctx, hash.Hex()); err != nil {
		return err
	}
	passengers, _ := k.trackers.Disembark(hash)

	k.logger.Info("passengers disembarked", "hash", hash, "passengers", len(passengers), "block", log.BlockNumber)

	block := log.BlockNumber
	k.spawn(func() {
		k.completeDisembark(ctx, hash, block)
	})
	return nil
}

// completeDisembark deposits the vault's sfrxEth into the strategy once
// block is safe on L1.
func (k *Keeper) completeDisembark(ctx context.Context, hash common.Hash, block uint64) {
	logger := k.logger.With("hash", hash, "block", block)

	if err := k.waitForBlock(ctx, "l1", k.l1, chain.Safe, block, k.opts.L1SafePollInterval); err != nil {
		logger.Warn("disembark not completed", "error", err)
		return
	}

	balance, err := k.l1.SfrxEthBalanceOf(ctx, k.opts.Addresses.FloxiL1)
	if err != nil {
		logger.Error("failed to get vault sfrxEth balance", "error", err)
		return
	}
	if balance.Sign() == 0 {
		logger.Warn("no sfrxEth in vault after disembark")
		return
	}

	receipt, err := k.l1.DepositIntoStrategy(ctx)
	metrics.RecordTransaction("l1", "depositIntoStrategy", err)
	if err != nil {
		logger.Error("failed to deposit into strategy", "balance", balance, "error", err)
		return
	}

	logger.Info("deposited into strategy", "balance", balance, "tx", receipt.TxHash)
}
