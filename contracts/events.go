package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrEventSignatureMismatch = errors.New("event signature mismatch")

// Topic ids of every event the keeper subscribes to.
var (
	AssetsDepositedIntoStrategyTopic = FloxiL1ABI.Events["AssetsDepositedIntoStrategy"].ID
	WithdrawalInitiatedTopic         = FloxiL1ABI.Events["WithdrawalInitiated"].ID
	WithdrawalCompletedTopic         = FloxiL1ABI.Events["WithdrawalCompleted"].ID

	DepositTopic             = FloxiL2ABI.Events["Deposit"].ID
	TransferTopic            = FloxiL2ABI.Events["Transfer"].ID
	WithdrawalQueuedTopic    = FloxiL2ABI.Events["WithdrawalQueued"].ID
	WithdrawalsUnlockedTopic = FloxiL2ABI.Events["WithdrawalsUnlocked"].ID

	DepositFinalizedTopic = L2StandardBridgeABI.Events["DepositFinalized"].ID

	EmbarkTopic    = FraxFerryL2ABI.Events["Embark"].ID
	DepartTopic    = FraxFerryL2ABI.Events["Depart"].ID
	CancelledTopic = FraxFerryL2ABI.Events["Cancelled"].ID
	DisembarkTopic = FraxFerryL1ABI.Events["Disembark"].ID

	EigenWithdrawalQueuedTopic = DelegationManagerABI.Events["WithdrawalQueued"].ID
)

// Withdrawal mirrors the EigenLayer IDelegationManager.Withdrawal struct.
type Withdrawal struct {
	Staker      common.Address
	DelegatedTo common.Address
	Withdrawer  common.Address
	Nonce       *big.Int
	StartBlock  uint32
	Strategies  []common.Address
	Shares      []*big.Int
}

// QueuedWithdrawalParams mirrors IDelegationManager.QueuedWithdrawalParams.
type QueuedWithdrawalParams struct {
	Strategies []common.Address
	Shares     []*big.Int
	Withdrawer common.Address
}

type FloxiL1AssetsDepositedIntoStrategy struct {
	Assets   *big.Int
	Shares   *big.Int
	Strategy common.Address
	Raw      types.Log
}

type FloxiL1WithdrawalInitiated struct {
	WithdrawalId   [32]byte
	Staker         common.Address
	Withdrawer     common.Address
	Nonce          *big.Int
	StartBlock     *big.Int
	Strategy       common.Address
	Shares         *big.Int
	Assets         *big.Int
	WithdrawalRoot [32]byte
	Raw            types.Log
}

type FloxiL1WithdrawalCompleted struct {
	Assets   *big.Int
	Shares   *big.Int
	Strategy common.Address
	Raw      types.Log
}

type FloxiL2Deposit struct {
	From   common.Address
	Amount *big.Int
	Raw    types.Log
}

type FloxiL2Transfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Raw   types.Log
}

type FloxiL2WithdrawalQueued struct {
	Account common.Address
	Nonce   *big.Int
	Assets  *big.Int
	Raw     types.Log
}

type FloxiL2WithdrawalsUnlocked struct {
	AssetsUnlocked *big.Int
	FromNonce      *big.Int
	ToNonce        *big.Int
	Raw            types.Log
}

type L2StandardBridgeDepositFinalized struct {
	L1Token   common.Address
	L2Token   common.Address
	From      common.Address
	To        common.Address
	Amount    *big.Int
	ExtraData []byte
	Raw       types.Log
}

type FraxFerryEmbark struct {
	Sender         common.Address
	Index          *big.Int
	Amount         *big.Int
	AmountAfterFee *big.Int
	Timestamp      *big.Int
	Raw            types.Log
}

type FraxFerryDepart struct {
	BatchNo *big.Int
	Start   *big.Int
	End     *big.Int
	Hash    [32]byte
	Raw     types.Log
}

type FraxFerryCancelled struct {
	Index  *big.Int
	Cancel bool
	Raw    types.Log
}

type FraxFerryDisembark struct {
	Start *big.Int
	End   *big.Int
	Hash  [32]byte
	Raw   types.Log
}

// DelegationManagerWithdrawalQueued is the restaking protocol's event. It
// shares its name with the L2 vault event and is told apart by emitter.
type DelegationManagerWithdrawalQueued struct {
	WithdrawalRoot [32]byte
	Withdrawal     Withdrawal
	Raw            types.Log
}

func DecodeAssetsDepositedIntoStrategy(log types.Log) (*FloxiL1AssetsDepositedIntoStrategy, error) {
	ev := new(FloxiL1AssetsDepositedIntoStrategy)
	if err := unpackLog(FloxiL1ABI, ev, "AssetsDepositedIntoStrategy", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeWithdrawalInitiated(log types.Log) (*FloxiL1WithdrawalInitiated, error) {
	ev := new(FloxiL1WithdrawalInitiated)
	if err := unpackLog(FloxiL1ABI, ev, "WithdrawalInitiated", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeWithdrawalCompleted(log types.Log) (*FloxiL1WithdrawalCompleted, error) {
	ev := new(FloxiL1WithdrawalCompleted)
	if err := unpackLog(FloxiL1ABI, ev, "WithdrawalCompleted", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeDeposit(log types.Log) (*FloxiL2Deposit, error) {
	ev := new(FloxiL2Deposit)
	if err := unpackLog(FloxiL2ABI, ev, "Deposit", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeTransfer(log types.Log) (*FloxiL2Transfer, error) {
	ev := new(FloxiL2Transfer)
	if err := unpackLog(FloxiL2ABI, ev, "Transfer", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeWithdrawalQueued(log types.Log) (*FloxiL2WithdrawalQueued, error) {
	ev := new(FloxiL2WithdrawalQueued)
	if err := unpackLog(FloxiL2ABI, ev, "WithdrawalQueued", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeWithdrawalsUnlocked(log types.Log) (*FloxiL2WithdrawalsUnlocked, error) {
	ev := new(FloxiL2WithdrawalsUnlocked)
	if err := unpackLog(FloxiL2ABI, ev, "WithdrawalsUnlocked", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeDepositFinalized(log types.Log) (*L2StandardBridgeDepositFinalized, error) {
	ev := new(L2StandardBridgeDepositFinalized)
	if err := unpackLog(L2StandardBridgeABI, ev, "DepositFinalized", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeEmbark(log types.Log) (*FraxFerryEmbark, error) {
	ev := new(FraxFerryEmbark)
	if err := unpackLog(FraxFerryL2ABI, ev, "Embark", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeDepart(log types.Log) (*FraxFerryDepart, error) {
	ev := new(FraxFerryDepart)
	if err := unpackLog(FraxFerryL2ABI, ev, "Depart", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeCancelled(log types.Log) (*FraxFerryCancelled, error) {
	ev := new(FraxFerryCancelled)
	if err := unpackLog(FraxFerryL2ABI, ev, "Cancelled", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeDisembark(log types.Log) (*FraxFerryDisembark, error) {
	ev := new(FraxFerryDisembark)
	if err := unpackLog(FraxFerryL1ABI, ev, "Disembark", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

func DecodeEigenWithdrawalQueued(log types.Log) (*DelegationManagerWithdrawalQueued, error) {
	ev := new(DelegationManagerWithdrawalQueued)
	if err := unpackLog(DelegationManagerABI, ev, "WithdrawalQueued", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

// EncodeQueueWithdrawals returns the delegation manager call data that the
// L1 vault forwards in initiateEigenlayerWithdrawal.
func EncodeQueueWithdrawals(params []QueuedWithdrawalParams) ([]byte, error) {
	data, err := DelegationManagerABI.Pack("queueWithdrawals", params)
	if err != nil {
		return nil, fmt.Errorf("failed to pack queueWithdrawals: %w", err)
	}
	return data, nil
}

// unpackLog follows the abigen BoundContract.UnpackLog layout: data fields
// first, then indexed fields from the topics.
func unpackLog(contract abi.ABI, out interface{}, event string, log types.Log) error {
	ev, ok := contract.Events[event]
	if !ok {
		return fmt.Errorf("unknown event %s", event)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return fmt.Errorf("failed to decode %s: %w", event, ErrEventSignatureMismatch)
	}
	if len(log.Data) > 0 {
		if err := contract.UnpackIntoInterface(out, event, log.Data); err != nil {
			return fmt.Errorf("failed to unpack %s: %w", event, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("failed to parse %s topics: %w", event, err)
	}
	return nil
}
