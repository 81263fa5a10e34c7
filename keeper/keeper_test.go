package keeper

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/database/models"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

var account = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")

func TestWithdrawalRequestWaitsForL2Finality(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	assets := big.NewInt(2000000000000000000)

	k.l2.setTip(chain.Finalized, 99)
	require.NoError(t, k.handleWithdrawalQueued(ctx, withdrawalQueuedLog(t, account, big.NewInt(3), assets, 100)))
	assert.Equal(t, string(keepertypes.Requested), k.store.request(account, 3).Status)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, k.l1.initiated())

	k.l2.setTip(chain.Finalized, 100)
	require.Eventually(t, func() bool { return len(k.l1.initiated()) == 1 }, time.Second, time.Millisecond)
	k.handlers.Wait()

	expected, err := contracts.EncodeQueueWithdrawals([]contracts.QueuedWithdrawalParams{{
		Strategies: []common.Address{strategyAddress},
		Shares:     []*big.Int{assets},
		Withdrawer: floxiL1Address,
	}})
	require.NoError(t, err)
	assert.Equal(t, expected, k.l1.initiated()[0])
	assert.Equal(t, contracts.DelegationManagerABI.Methods["queueWithdrawals"].ID, k.l1.initiated()[0][:4])
	assert.Equal(t, string(keepertypes.RequestInitiated), k.store.request(account, 3).Status)
}

func TestInitiatedRequestIsNotReplayed(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	k.l2.setTip(chain.Finalized, 100)

	log := withdrawalQueuedLog(t, account, big.NewInt(1), big.NewInt(10), 100)
	require.NoError(t, k.handleWithdrawalQueued(ctx, log))
	k.handlers.Wait()
	require.Len(t, k.l1.initiated(), 1)

	require.NoError(t, k.handleWithdrawalQueued(ctx, log))
	k.handlers.Wait()
	assert.Len(t, k.l1.initiated(), 1)
}

func TestInitiateRevertMarksRequestFailed(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	k.l2.setTip(chain.Finalized, 100)
	k.l1.initiateErr = &chain.RevertError{Method: "initiateEigenlayerWithdrawal", Reason: "paused"}

	log := withdrawalQueuedLog(t, account, big.NewInt(4), big.NewInt(10), 100)
	require.NoError(t, k.handleWithdrawalQueued(ctx, log))
	k.handlers.Wait()

	req := k.store.request(account, 4)
	assert.Equal(t, string(keepertypes.RequestFailed), req.Status)
	assert.Contains(t, req.Error, "paused")

	// A failed request is not resubmitted by replay or by the sweep.
	require.NoError(t, k.handleWithdrawalQueued(ctx, log))
	k.Sweep(ctx)
	k.handlers.Wait()
	assert.Len(t, k.l1.initiated(), 1)
}

func TestFinalityTimeoutIsResumedBySweep(t *testing.T) {
	k := newTestKeeper(t)
	k.opts.MaxFinalityWait = 10 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, k.handleWithdrawalQueued(ctx, withdrawalQueuedLog(t, account, big.NewInt(5), big.NewInt(10), 100)))
	k.handlers.Wait()

	assert.Empty(t, k.l1.initiated())
	assert.False(t, k.trackers.RequestInFlight(requestKey(account, big.NewInt(5))))
	assert.Equal(t, string(keepertypes.Requested), k.store.request(account, 5).Status)

	k.l2.setTip(chain.Finalized, 100)
	k.Sweep(ctx)
	k.handlers.Wait()

	assert.Len(t, k.l1.initiated(), 1)
	assert.Equal(t, string(keepertypes.RequestInitiated), k.store.request(account, 5).Status)
}

func TestWithdrawalInitiatedCorrelatesStakerCaseInsensitively(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	// Addresses delivered in different case decode to the same bytes.
	k.opts.Addresses.FloxiL1 = common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")
	staker := common.HexToAddress("0xABCDEF0000000000000000000000000000000001")
	embedded := common.HexToAddress("0xabcdef0000000000000000000000000000000001")

	txHash := hashOf(777)
	k.l1.receipts[txHash] = okReceipt(500)
	mine := contracts.Withdrawal{
		Staker:     embedded,
		Withdrawer: embedded,
		Nonce:      big.NewInt(11),
		StartBlock: 500,
		Strategies: []common.Address{strategyAddress},
		Shares:     []*big.Int{big.NewInt(10)},
	}
	other := mine
	other.Staker = common.HexToAddress("0x9999999999999999999999999999999999999999")
	other.Nonce = big.NewInt(12)
	k.l1.eigenQueued[500] = []*contracts.DelegationManagerWithdrawalQueued{
		{WithdrawalRoot: hashOf(1), Withdrawal: other},
		{WithdrawalRoot: hashOf(2), Withdrawal: mine},
	}

	require.NoError(t, k.handleWithdrawalInitiated(ctx, withdrawalInitiatedLog(t, staker, big.NewInt(1), txHash, 500)))

	queued := k.trackers.Queued()
	require.Len(t, queued, 1)
	assert.Equal(t, int64(11), queued[0].Withdrawal.Nonce.Int64())
	assert.Equal(t, hashOf(2), queued[0].WithdrawalRoot)
	assert.Contains(t, k.store.queued, "11")
}

func queueWithdrawal(t *testing.T, k *testKeeper, startBlock uint32) {
	t.Helper()
	q := &QueuedWithdrawal{
		Withdrawal: contracts.Withdrawal{
			Staker:     floxiL1Address,
			Withdrawer: floxiL1Address,
			Nonce:      big.NewInt(int64(startBlock)),
			StartBlock: startBlock,
			Strategies: []common.Address{strategyAddress},
			Shares:     []*big.Int{big.NewInt(1)},
		},
	}
	require.NoError(t, k.store.UpsertQueuedWithdrawal(context.Background(), queuedToModel(q)))
	require.True(t, k.trackers.AddQueued(q))
}

func TestSweepCompletionGating(t *testing.T) {
	tests := []struct {
		name      string
		safe      uint64
		completed bool
	}{
		{name: "eligible", safe: 1051, completed: true},
		{name: "unlock block equals safe", safe: 1050, completed: false},
		{name: "not yet eligible", safe: 1049, completed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKeeper(t)
			queueWithdrawal(t, k, 1000)
			k.l1.setTip(chain.Safe, tt.safe)

			k.Sweep(context.Background())

			assert.Equal(t, 1, k.l1.shipCalls)
			if tt.completed {
				require.Len(t, k.l1.completeCalls, 1)
				assert.Equal(t, uint32(1000), k.l1.completeCalls[0].StartBlock)
				assert.Empty(t, k.trackers.Queued())
				assert.Empty(t, k.store.queued)
			} else {
				assert.Empty(t, k.l1.completeCalls)
				assert.Len(t, k.trackers.Queued(), 1)
			}
		})
	}
}

func TestSweepKeepsRevertedCompletion(t *testing.T) {
	k := newTestKeeper(t)
	queueWithdrawal(t, k, 1000)
	k.l1.setTip(chain.Safe, 2000)
	k.l1.completeErr = &chain.RevertError{Method: "completeEigenlayerWithdrawal"}
	k.l1.shipErr = errors.New("nothing to ship")

	k.Sweep(context.Background())
	assert.Len(t, k.l1.completeCalls, 1)
	assert.Len(t, k.trackers.Queued(), 1)

	k.l1.completeErr = nil
	k.Sweep(context.Background())
	assert.Len(t, k.l1.completeCalls, 2)
	assert.Empty(t, k.trackers.Queued())
	assert.Equal(t, 2, k.l1.shipCalls)
}

func TestFerryEmbarkDepart(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	hash := common.HexToHash("0x4848")

	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 5, 1700000000, 10)))
	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 10, 1700000000, 11)))
	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, account, 6, 1700000000, 12)))
	// Replayed Embark is ignored.
	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 5, 1700000000, 10)))

	require.NoError(t, k.handleDepart(ctx, departLog(t, 0, 10, hash, 13)))

	departed := k.trackers.Departed(hash)
	require.Len(t, departed, 1)
	assert.Equal(t, int64(5), departed[0].Index.Int64())

	embarked := k.trackers.Embarked()
	require.Len(t, embarked, 1)
	assert.Equal(t, int64(10), embarked[0].Index.Int64())

	assert.Equal(t, string(keepertypes.Departed), k.store.passengers["5"].Status)
	assert.Equal(t, hash.Hex(), k.store.passengers["5"].BatchHash)
	assert.Equal(t, string(keepertypes.Embarked), k.store.passengers["10"].Status)
	assert.NotContains(t, k.store.passengers, "6")
}

func TestFerryCancelledMarksPassenger(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()

	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 7, 1700000000, 10)))
	require.NoError(t, k.handleCancelled(ctx, cancelledLog(t, 7, 11)))

	assert.True(t, k.store.passengers["7"].Cancelled)
	assert.Len(t, k.trackers.Embarked(), 1)
}

func departBatch(t *testing.T, k *testKeeper, hash common.Hash) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 5, 1700000000, 10)))
	require.NoError(t, k.handleDepart(ctx, departLog(t, 0, 10, hash, 11)))
}

func TestDisembarkWithZeroBalanceIsLogOnly(t *testing.T) {
	k := newTestKeeper(t)
	hash := common.HexToHash("0x4848")
	departBatch(t, k, hash)
	k.l1.setTip(chain.Safe, 200)

	require.NoError(t, k.handleDisembark(context.Background(), disembarkLog(t, 0, 10, hash, 200)))
	k.handlers.Wait()

	assert.Zero(t, k.l1.deposits())
	assert.Empty(t, k.trackers.Departed(hash))
	assert.Empty(t, k.store.passengers)
}

func TestDisembarkDepositsIntoStrategyOnceSafe(t *testing.T) {
	k := newTestKeeper(t)
	hash := common.HexToHash("0x4848")
	departBatch(t, k, hash)
	k.l1.balance = big.NewInt(99)
	k.l1.setTip(chain.Safe, 199)

	require.NoError(t, k.handleDisembark(context.Background(), disembarkLog(t, 0, 10, hash, 200)))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, k.l1.deposits())

	k.l1.setTip(chain.Safe, 200)
	k.handlers.Wait()
	assert.Equal(t, 1, k.l1.deposits())
}

func TestDisembarkUnknownBatchIsIgnored(t *testing.T) {
	k := newTestKeeper(t)
	k.l1.balance = big.NewInt(99)
	k.l1.setTip(chain.Safe, 200)

	require.NoError(t, k.handleDisembark(context.Background(), disembarkLog(t, 0, 10, common.HexToHash("0x01"), 200)))
	k.handlers.Wait()
	assert.Zero(t, k.l1.deposits())
}

func addCompletedWithdrawals(t *testing.T, k *testKeeper, amounts ...int64) {
	t.Helper()
	for i, a := range amounts {
		require.NoError(t, k.handleWithdrawalCompleted(context.Background(), withdrawalCompletedLog(t, big.NewInt(a), 300, uint(i))))
	}
}

func depositLogs(t *testing.T, amounts ...int64) []types.Log {
	logs := make([]types.Log, len(amounts))
	for i, a := range amounts {
		logs[i] = depositFinalizedLog(t, big.NewInt(a), 400, uint(i))
	}
	return logs
}

func TestDepositsFinalizedUnlockMatchedWithdrawals(t *testing.T) {
	k := newTestKeeper(t)
	addCompletedWithdrawals(t, k, 1, 2, 3)
	k.l2.l1Assets = big.NewInt(100)

	require.NoError(t, k.handleDepositsFinalized(context.Background(), depositLogs(t, 2, 3, 7)))

	require.Len(t, k.l2.setCalls, 1)
	assert.Equal(t, big.NewInt(95), k.l2.setCalls[0])
	require.Len(t, k.l2.unlockCalls, 1)
	assert.Equal(t, big.NewInt(5), k.l2.unlockCalls[0].assets)
	assert.Equal(t, big.NewInt(2), k.l2.unlockCalls[0].count)

	pending := k.trackers.Completed()
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].Assets.Int64())
	assert.Empty(t, k.trackers.Batches())
	assert.Len(t, k.store.completed, 1)
}

func TestDepositsFinalizedCapsMatchesPerUnlock(t *testing.T) {
	k := newTestKeeper(t)

	amounts := make([]int64, 801)
	for i := range amounts {
		amounts[i] = int64(i + 1)
	}
	addCompletedWithdrawals(t, k, amounts...)
	start := new(big.Int).Set(k.l2.l1Assets)

	require.NoError(t, k.handleDepositsFinalized(context.Background(), depositLogs(t, amounts...)))

	// sum(1..800) = 320400
	require.Len(t, k.l2.unlockCalls, 2)
	assert.Equal(t, big.NewInt(320400), k.l2.unlockCalls[0].assets)
	assert.Equal(t, big.NewInt(800), k.l2.unlockCalls[0].count)
	assert.Equal(t, big.NewInt(801), k.l2.unlockCalls[1].assets)
	assert.Equal(t, big.NewInt(1), k.l2.unlockCalls[1].count)

	require.Len(t, k.l2.setCalls, 2)
	assert.Equal(t, new(big.Int).Sub(start, big.NewInt(320400)), k.l2.setCalls[0])
	assert.Equal(t, new(big.Int).Sub(start, big.NewInt(321201)), k.l2.setCalls[1])
	assert.Empty(t, k.trackers.Completed())
	assert.Empty(t, k.store.completed)
}

func TestUnmatchedDepositsSendNothing(t *testing.T) {
	k := newTestKeeper(t)
	addCompletedWithdrawals(t, k, 1)

	require.NoError(t, k.handleDepositsFinalized(context.Background(), depositLogs(t, 5, 6)))

	assert.Zero(t, k.l2.getCalls)
	assert.Empty(t, k.l2.setCalls)
	assert.Empty(t, k.l2.unlockCalls)
	assert.Len(t, k.trackers.Completed(), 1)
	assert.Len(t, k.store.unmatchedIDs(), 2)
	assert.Len(t, k.trackers.Unmatched(), 2)
}

func TestDepositBeforeCompletionIsUnlockedWhenCompletionArrives(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	k.l2.l1Assets = big.NewInt(10)

	logs := depositLogs(t, 4)
	require.NoError(t, k.handleDepositsFinalized(ctx, logs))
	assert.Empty(t, k.l2.unlockCalls)
	require.Len(t, k.store.unmatchedIDs(), 1)

	// Replaying the deposit keeps a single copy.
	require.NoError(t, k.handleDepositsFinalized(ctx, logs))
	assert.Len(t, k.trackers.Unmatched(), 1)

	addCompletedWithdrawals(t, k, 4)

	require.Len(t, k.l2.unlockCalls, 1)
	assert.Equal(t, big.NewInt(4), k.l2.unlockCalls[0].assets)
	assert.Equal(t, big.NewInt(1), k.l2.unlockCalls[0].count)
	assert.Equal(t, big.NewInt(6), k.l2.l1Assets)
	assert.Empty(t, k.trackers.Unmatched())
	assert.Empty(t, k.store.unmatchedIDs())
	assert.Empty(t, k.trackers.Completed())
	assert.Empty(t, k.store.completed)
}

func TestSweepMatchesKeptDepositsAfterRestart(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	k.l2.l1Assets = big.NewInt(10)

	require.NoError(t, k.handleDepositsFinalized(ctx, depositLogs(t, 3)))
	require.NoError(t, k.store.UpsertCompletedWithdrawals(ctx, []models.CompletedWithdrawal{
		completedToModel(&CompletedWithdrawal{
			ID:     "completed-1",
			Assets: big.NewInt(3),
			Shares: big.NewInt(3),
		}, keepertypes.Pending, ""),
	}))

	// A fresh keeper over the same store.
	restarted := newTestKeeper(t)
	restarted.store = k.store
	restarted.Keeper.store = k.store
	restarted.l2.l1Assets = big.NewInt(10)
	require.NoError(t, restarted.Rehydrate(ctx))
	require.Len(t, restarted.trackers.Unmatched(), 1)
	require.Len(t, restarted.trackers.Completed(), 1)

	restarted.Sweep(ctx)

	require.Len(t, restarted.l2.unlockCalls, 1)
	assert.Equal(t, big.NewInt(3), restarted.l2.unlockCalls[0].assets)
	assert.Empty(t, restarted.store.unmatchedIDs())
	assert.Empty(t, restarted.store.completed)
}

func TestSetL1AssetsFailureIsRetriedBySweep(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	addCompletedWithdrawals(t, k, 4)
	k.l2.l1Assets = big.NewInt(10)
	k.l2.setErr = errors.New("nonce too low")

	logs := depositLogs(t, 4)
	require.NoError(t, k.handleDepositsFinalized(ctx, logs))
	assert.Empty(t, k.l2.unlockCalls)

	batches := k.trackers.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, keepertypes.Reserved, batches[0].Status)
	for _, status := range k.store.completedStatuses() {
		assert.Equal(t, string(keepertypes.Reserved), status)
	}

	// Replayed logs do not reserve again.
	require.NoError(t, k.handleDepositsFinalized(ctx, logs))
	assert.Len(t, k.l2.setCalls, 1)

	k.l2.setErr = nil
	k.Sweep(ctx)

	require.Len(t, k.l2.setCalls, 2)
	assert.Equal(t, big.NewInt(6), k.l2.setCalls[1])
	require.Len(t, k.l2.unlockCalls, 1)
	assert.Equal(t, big.NewInt(4), k.l2.unlockCalls[0].assets)
	assert.Empty(t, k.trackers.Batches())
	assert.Empty(t, k.store.completed)
}

func TestUnlockFailureRetriesOnlyUnlock(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	addCompletedWithdrawals(t, k, 4)
	k.l2.l1Assets = big.NewInt(10)
	k.l2.unlockErr = errors.New("receipt timeout")

	require.NoError(t, k.handleDepositsFinalized(ctx, depositLogs(t, 4)))

	batches := k.trackers.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, keepertypes.L1AssetsSet, batches[0].Status)
	for _, status := range k.store.completedStatuses() {
		assert.Equal(t, string(keepertypes.L1AssetsSet), status)
	}

	k.l2.unlockErr = nil
	k.Sweep(ctx)

	assert.Len(t, k.l2.setCalls, 1)
	assert.Len(t, k.l2.unlockCalls, 2)
	assert.Equal(t, big.NewInt(6), k.l2.l1Assets)
	assert.Empty(t, k.trackers.Batches())
}

func TestRehydrateRestoresTrackers(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	s := k.store
	hash := common.HexToHash("0x4848")

	queued := &QueuedWithdrawal{Withdrawal: contracts.Withdrawal{
		Staker:     floxiL1Address,
		Nonce:      big.NewInt(3),
		StartBlock: 10,
		Strategies: []common.Address{strategyAddress},
		Shares:     []*big.Int{big.NewInt(1)},
	}}
	require.NoError(t, s.UpsertQueuedWithdrawal(ctx, queuedToModel(queued)))

	embarked := &Passenger{Sender: floxiL2Address, Index: big.NewInt(1), Amount: big.NewInt(1), AmountAfterFee: big.NewInt(1)}
	departed := &Passenger{Sender: floxiL2Address, Index: big.NewInt(2), Amount: big.NewInt(1), AmountAfterFee: big.NewInt(1), BatchHash: hash}
	require.NoError(t, s.UpsertPassenger(ctx, passengerToModel(embarked, keepertypes.Embarked)))
	require.NoError(t, s.UpsertPassenger(ctx, passengerToModel(departed, keepertypes.Departed)))

	entry := func(id string, assets int64) *CompletedWithdrawal {
		return &CompletedWithdrawal{ID: id, Assets: big.NewInt(assets), Shares: big.NewInt(assets), DepositLog: "log-" + id}
	}
	require.NoError(t, s.UpsertCompletedWithdrawals(ctx, []models.CompletedWithdrawal{
		completedToModel(entry("a", 1), keepertypes.Pending, ""),
		completedToModel(entry("b", 2), keepertypes.Reserved, "batch-1"),
		completedToModel(entry("c", 3), keepertypes.L1AssetsSet, "batch-1"),
		completedToModel(entry("d", 4), keepertypes.L1AssetsSet, "batch-2"),
	}))

	require.NoError(t, k.Rehydrate(ctx))

	assert.Len(t, k.trackers.Queued(), 1)
	assert.Len(t, k.trackers.Embarked(), 1)
	assert.Len(t, k.trackers.Departed(hash), 1)
	assert.Len(t, k.trackers.Completed(), 1)
	assert.True(t, k.trackers.DepositMatched("log-b"))

	batches := k.trackers.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-1", batches[0].ID)
	assert.Equal(t, keepertypes.Reserved, batches[0].Status)
	assert.Equal(t, big.NewInt(5), batches[0].Amount())
	assert.Equal(t, keepertypes.L1AssetsSet, batches[1].Status)
}

func TestWatchResumesFromCursorAndPersistsProgress(t *testing.T) {
	k := newTestKeeper(t)
	require.NoError(t, k.store.UpdateLastIndexedBlock(context.Background(), "floxi-l2", 9))
	k.l2.batches["floxi-l2"] = []chain.LogBatch{
		{FromBlock: 10, ToBlock: 20, Logs: []types.Log{withdrawalsUnlockedLog(t, 15)}},
		{FromBlock: 21, ToBlock: 30},
	}

	var sub subscription
	for _, s := range k.subscriptions() {
		if s.name == "floxi-l2" {
			sub = s
		}
	}
	require.Equal(t, "floxi-l2", sub.name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.watch(ctx, sub) }()

	require.Eventually(t, func() bool {
		n, _ := k.store.GetLastIndexedBlock(ctx, "floxi-l2")
		return n == 30
	}, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	q := k.l2.lastQuery()
	assert.Equal(t, uint64(10), q.FromBlock)
	assert.Equal(t, []common.Address{floxiL2Address}, q.Addresses)
	assert.Len(t, q.Topics[0], 4)
}

func subscriptionNamed(t *testing.T, k *testKeeper, name string) subscription {
	t.Helper()
	for _, s := range k.subscriptions() {
		if s.name == name {
			return s
		}
	}
	t.Fatalf("subscription %s not registered", name)
	return subscription{}
}

func TestWithdrawalInitiatedLookupFailureIsReplayed(t *testing.T) {
	k := newTestKeeper(t)
	txHash := hashOf(600)
	k.l1.batches["floxi-l1"] = []chain.LogBatch{
		{FromBlock: 590, ToBlock: 600, Logs: []types.Log{withdrawalInitiatedLog(t, floxiL1Address, big.NewInt(1), txHash, 600)}},
	}
	sub := subscriptionNamed(t, k, "floxi-l1")

	// The receipt is not available yet.
	err := k.watch(context.Background(), sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, geth.NotFound)

	cursor, _ := k.store.GetLastIndexedBlock(context.Background(), "floxi-l1")
	assert.Zero(t, cursor)
	assert.Empty(t, k.trackers.Queued())

	k.l1.mu.Lock()
	k.l1.receipts[txHash] = okReceipt(600)
	k.l1.eigenQueued[600] = []*contracts.DelegationManagerWithdrawalQueued{{
		WithdrawalRoot: hashOf(3),
		Withdrawal: contracts.Withdrawal{
			Staker:     floxiL1Address,
			Withdrawer: floxiL1Address,
			Nonce:      big.NewInt(21),
			StartBlock: 600,
			Strategies: []common.Address{strategyAddress},
			Shares:     []*big.Int{big.NewInt(10)},
		},
	}}
	k.l1.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.watch(ctx, sub) }()

	require.Eventually(t, func() bool {
		n, _ := k.store.GetLastIndexedBlock(ctx, "floxi-l1")
		return n == 600
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	queued := k.trackers.Queued()
	require.Len(t, queued, 1)
	assert.Equal(t, int64(21), queued[0].Withdrawal.Nonce.Int64())
	assert.Contains(t, k.store.queued, "21")
}

func TestDepartBeforeEmbarkLeavesPassengerEmbarked(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	k.opts.Now = func() time.Time { return now }
	hash := common.HexToHash("0x4848")

	// Depart covering index 5 arrives ahead of its Embark.
	require.NoError(t, k.handleDepart(ctx, departLog(t, 0, 10, hash, 11)))
	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 5, now.Add(-73*time.Hour).Unix(), 10)))

	assert.Empty(t, k.trackers.Departed(hash))
	require.Len(t, k.trackers.Embarked(), 1)
	assert.Equal(t, string(keepertypes.Embarked), k.store.passengers["5"].Status)

	// The batch is unknown on disembark and the passenger is reported stale.
	k.l1.balance = big.NewInt(99)
	k.l1.setTip(chain.Safe, 200)
	require.NoError(t, k.handleDisembark(ctx, disembarkLog(t, 0, 10, hash, 200)))
	k.handlers.Wait()
	assert.Zero(t, k.l1.deposits())
	assert.Equal(t, 1, k.checkStalePassengers())
}

func TestBridgeSubscriptionFiltersRoute(t *testing.T) {
	k := newTestKeeper(t)

	for _, s := range k.subscriptions() {
		if s.name != "l2-standard-bridge" {
			continue
		}
		require.Len(t, s.topics, 4)
		assert.Equal(t, contracts.DepositFinalizedTopic, s.topics[0][0])
		assert.Equal(t, addressTopic(l1SfrxEth), s.topics[1][0])
		assert.Equal(t, addressTopic(l2SfrxEth), s.topics[2][0])
		assert.Equal(t, addressTopic(floxiL1Address), s.topics[3][0])
		return
	}
	t.Fatal("bridge subscription not registered")
}

func TestStalePassengers(t *testing.T) {
	k := newTestKeeper(t)
	now := time.Unix(1700000000, 0)
	k.opts.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 1, now.Add(-73*time.Hour).Unix(), 10)))
	require.NoError(t, k.handleEmbark(ctx, embarkLog(t, floxiL2Address, 2, now.Add(-time.Hour).Unix(), 11)))

	assert.Equal(t, 1, k.checkStalePassengers())
}

func TestJitterStaysWithinBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(10 * time.Second)
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}
