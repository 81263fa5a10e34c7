package keeper

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/database/models"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func logID(log types.Log) string {
	return fmt.Sprintf("%s:%d", log.TxHash.Hex(), log.Index)
}

func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func requestToModel(r *WithdrawalRequest, status keepertypes.RequestStatus, reason string) models.WithdrawalRequest {
	return models.WithdrawalRequest{
		Account:     lowerHex(r.Account),
		Nonce:       r.Nonce.String(),
		Assets:      r.Assets.String(),
		TxHash:      r.TxHash.Hex(),
		BlockNumber: r.BlockNumber,
		Status:      string(status),
		Error:       reason,
	}
}

func requestFromModel(m models.WithdrawalRequest) (*WithdrawalRequest, error) {
	nonce, err := parseBig(m.Nonce)
	if err != nil {
		return nil, err
	}
	assets, err := parseBig(m.Assets)
	if err != nil {
		return nil, err
	}
	return &WithdrawalRequest{
		Account:     common.HexToAddress(m.Account),
		Nonce:       nonce,
		Assets:      assets,
		TxHash:      common.HexToHash(m.TxHash),
		BlockNumber: m.BlockNumber,
	}, nil
}

func queuedToModel(q *QueuedWithdrawal) models.QueuedWithdrawal {
	strategies := make([]string, len(q.Withdrawal.Strategies))
	for i, s := range q.Withdrawal.Strategies {
		strategies[i] = lowerHex(s)
	}
	shares := make([]string, len(q.Withdrawal.Shares))
	for i, s := range q.Withdrawal.Shares {
		shares[i] = s.String()
	}

	return models.QueuedWithdrawal{
		Nonce:          q.Withdrawal.Nonce.String(),
		WithdrawalRoot: q.WithdrawalRoot.Hex(),
		Staker:         lowerHex(q.Withdrawal.Staker),
		DelegatedTo:    lowerHex(q.Withdrawal.DelegatedTo),
		Withdrawer:     lowerHex(q.Withdrawal.Withdrawer),
		StartBlock:     q.Withdrawal.StartBlock,
		Strategies:     strategies,
		Shares:         shares,
		TxHash:         q.TxHash.Hex(),
		BlockNumber:    q.BlockNumber,
	}
}

func queuedFromModel(m models.QueuedWithdrawal) (*QueuedWithdrawal, error) {
	if len(m.Strategies) != len(m.Shares) {
		return nil, fmt.Errorf("queued withdrawal %s has %d strategies and %d shares", m.Nonce, len(m.Strategies), len(m.Shares))
	}

	nonce, err := parseBig(m.Nonce)
	if err != nil {
		return nil, err
	}
	strategies := make([]common.Address, len(m.Strategies))
	for i, s := range m.Strategies {
		strategies[i] = common.HexToAddress(s)
	}
	shares := make([]*big.Int, len(m.Shares))
	for i, s := range m.Shares {
		if shares[i], err = parseBig(s); err != nil {
			return nil, err
		}
	}

	return &QueuedWithdrawal{
		Withdrawal: contracts.Withdrawal{
			Staker:      common.HexToAddress(m.Staker),
			DelegatedTo: common.HexToAddress(m.DelegatedTo),
			Withdrawer:  common.HexToAddress(m.Withdrawer),
			Nonce:       nonce,
			StartBlock:  m.StartBlock,
			Strategies:  strategies,
			Shares:      shares,
		},
		WithdrawalRoot: common.HexToHash(m.WithdrawalRoot),
		TxHash:         common.HexToHash(m.TxHash),
		BlockNumber:    m.BlockNumber,
	}, nil
}

func passengerToModel(p *Passenger, status keepertypes.PassengerStatus) models.Passenger {
	m := models.Passenger{
		Index:          p.Index.String(),
		Sender:         lowerHex(p.Sender),
		Amount:         p.Amount.String(),
		AmountAfterFee: p.AmountAfterFee.String(),
		Timestamp:      p.Timestamp,
		Status:         string(status),
		Cancelled:      p.Cancelled,
		TxHash:         p.TxHash.Hex(),
		BlockNumber:    p.BlockNumber,
	}
	if status == keepertypes.Departed {
		m.BatchHash = p.BatchHash.Hex()
	}
	return m
}

func passengerFromModel(m models.Passenger) (*Passenger, error) {
	index, err := parseBig(m.Index)
	if err != nil {
		return nil, err
	}
	amount, err := parseBig(m.Amount)
	if err != nil {
		return nil, err
	}
	afterFee, err := parseBig(m.AmountAfterFee)
	if err != nil {
		return nil, err
	}
	p := &Passenger{
		Sender:         common.HexToAddress(m.Sender),
		Index:          index,
		Amount:         amount,
		AmountAfterFee: afterFee,
		Timestamp:      m.Timestamp,
		Cancelled:      m.Cancelled,
		TxHash:         common.HexToHash(m.TxHash),
		BlockNumber:    m.BlockNumber,
	}
	if m.BatchHash != "" {
		p.BatchHash = common.HexToHash(m.BatchHash)
	}
	return p, nil
}

func completedToModel(c *CompletedWithdrawal, status keepertypes.CompletionStatus, batchID string) models.CompletedWithdrawal {
	return models.CompletedWithdrawal{
		ID:          c.ID,
		Assets:      c.Assets.String(),
		Shares:      c.Shares.String(),
		Strategy:    lowerHex(c.Strategy),
		Status:      string(status),
		BatchID:     batchID,
		DepositLog:  c.DepositLog,
		TxHash:      c.TxHash.Hex(),
		BlockNumber: c.BlockNumber,
		LogIndex:    c.LogIndex,
	}
}

func completedFromModel(m models.CompletedWithdrawal) (*CompletedWithdrawal, error) {
	assets, err := parseBig(m.Assets)
	if err != nil {
		return nil, err
	}
	shares, err := parseBig(m.Shares)
	if err != nil {
		return nil, err
	}
	return &CompletedWithdrawal{
		ID:          m.ID,
		Assets:      assets,
		Shares:      shares,
		Strategy:    common.HexToAddress(m.Strategy),
		TxHash:      common.HexToHash(m.TxHash),
		BlockNumber: m.BlockNumber,
		LogIndex:    m.LogIndex,
		DepositLog:  m.DepositLog,
	}, nil
}

func batchToModels(b *UnlockBatch) []models.CompletedWithdrawal {
	out := make([]models.CompletedWithdrawal, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = completedToModel(e, b.Status, b.ID)
	}
	return out
}

func depositToModel(d DepositMatch) models.UnmatchedDeposit {
	return models.UnmatchedDeposit{
		ID:          d.LogID,
		Amount:      d.Amount.String(),
		TxHash:      d.TxHash.Hex(),
		BlockNumber: d.BlockNumber,
		LogIndex:    d.LogIndex,
	}
}

func depositFromModel(m models.UnmatchedDeposit) (DepositMatch, error) {
	amount, err := parseBig(m.Amount)
	if err != nil {
		return DepositMatch{}, err
	}
	return DepositMatch{
		LogID:       m.ID,
		Amount:      amount,
		TxHash:      common.HexToHash(m.TxHash),
		BlockNumber: m.BlockNumber,
		LogIndex:    m.LogIndex,
	}, nil
}
