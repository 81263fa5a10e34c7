package keeper

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/database/models"
)

var (
	floxiL1Address  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	floxiL2Address  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	strategyAddress = common.HexToAddress("0x9281ff96637710Cd9A5CAcce9c6FAD8C9F54631c")
	l1SfrxEth       = common.HexToAddress("0xa63f56985F9C7F3bc9fFc5685535649e0C1a55f3")
	l2SfrxEth       = common.HexToAddress("0xFC00000000000000000000000000000000000005")
	l2Bridge        = common.HexToAddress("0x4200000000000000000000000000000000000010")
	l1Ferry         = common.HexToAddress("0x3000000000000000000000000000000000000003")
	l2Ferry         = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

// fakeChain serves block tips and replays preset log batches per subscription.
type fakeChain struct {
	mu      sync.Mutex
	tips    map[chain.BlockTag]uint64
	batches map[string][]chain.LogBatch
	queries []chain.LogQuery
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		tips:    make(map[chain.BlockTag]uint64),
		batches: make(map[string][]chain.LogBatch),
	}
}

func (f *fakeChain) setTip(tag chain.BlockTag, block uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tips[tag] = block
}

func (f *fakeChain) BlockNumber(ctx context.Context, tag chain.BlockTag) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tips[tag], nil
}

func (f *fakeChain) WatchLogs(ctx context.Context, q chain.LogQuery, sink chan<- chain.LogBatch) (event.Subscription, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	batches := f.batches[q.Name]
	f.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		for _, b := range batches {
			select {
			case sink <- b:
			case <-quit:
				return nil
			}
		}
		<-quit
		return nil
	}), nil
}

func (f *fakeChain) lastQuery() chain.LogQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func okReceipt(block uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hashOf(block + 1_000_000),
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

type fakeL1 struct {
	*fakeChain

	delay       *big.Int
	balance     *big.Int
	receipts    map[common.Hash]*types.Receipt
	eigenQueued map[uint64][]*contracts.DelegationManagerWithdrawalQueued

	initiateErr error
	completeErr error
	shipErr     error

	initiateCalls [][]byte
	completeCalls []contracts.Withdrawal
	shipCalls     int
	depositCalls  int
}

func newFakeL1() *fakeL1 {
	return &fakeL1{
		fakeChain:   newFakeChain(),
		delay:       big.NewInt(50),
		balance:     new(big.Int),
		receipts:    make(map[common.Hash]*types.Receipt),
		eigenQueued: make(map[uint64][]*contracts.DelegationManagerWithdrawalQueued),
	}
}

func (f *fakeL1) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, geth.NotFound
	}
	return r, nil
}

func (f *fakeL1) InitiateEigenlayerWithdrawal(ctx context.Context, calldata []byte) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiateCalls = append(f.initiateCalls, calldata)
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return okReceipt(1), nil
}

func (f *fakeL1) CompleteEigenlayerWithdrawal(ctx context.Context, w contracts.Withdrawal) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls = append(f.completeCalls, w)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return okReceipt(2), nil
}

func (f *fakeL1) ShipToL2(ctx context.Context) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipCalls++
	if f.shipErr != nil {
		return nil, f.shipErr
	}
	return okReceipt(3), nil
}

func (f *fakeL1) DepositIntoStrategy(ctx context.Context) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depositCalls++
	return okReceipt(4), nil
}

func (f *fakeL1) WithdrawalDelay(ctx context.Context, strategies []common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.delay), nil
}

func (f *fakeL1) EigenWithdrawalsQueuedAt(ctx context.Context, block uint64) ([]*contracts.DelegationManagerWithdrawalQueued, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eigenQueued[block], nil
}

func (f *fakeL1) SfrxEthBalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeL1) initiated() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.initiateCalls...)
}

func (f *fakeL1) deposits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depositCalls
}

type unlockCall struct {
	assets *big.Int
	count  *big.Int
}

type fakeL2 struct {
	*fakeChain

	l1Assets  *big.Int
	setErr    error
	unlockErr error

	getCalls    int
	setCalls    []*big.Int
	unlockCalls []unlockCall
}

func newFakeL2() *fakeL2 {
	return &fakeL2{fakeChain: newFakeChain(), l1Assets: big.NewInt(1_000_000_000)}
}

func (f *fakeL2) GetL1Assets(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return new(big.Int).Set(f.l1Assets), nil
}

func (f *fakeL2) SetL1Assets(ctx context.Context, assets *big.Int) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, assets)
	if f.setErr != nil {
		return nil, f.setErr
	}
	f.l1Assets = new(big.Int).Set(assets)
	return okReceipt(5), nil
}

func (f *fakeL2) UnlockWithdrawals(ctx context.Context, assets, maxIterations *big.Int) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlockCalls = append(f.unlockCalls, unlockCall{assets: assets, count: maxIterations})
	if f.unlockErr != nil {
		return nil, f.unlockErr
	}
	return okReceipt(6), nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu         sync.Mutex
	cursors    map[string]uint64
	requests   map[string]models.WithdrawalRequest
	queued     map[string]models.QueuedWithdrawal
	passengers map[string]models.Passenger
	completed  map[string]models.CompletedWithdrawal
	unmatched  map[string]models.UnmatchedDeposit
}

func newMemStore() *memStore {
	return &memStore{
		cursors:    make(map[string]uint64),
		requests:   make(map[string]models.WithdrawalRequest),
		queued:     make(map[string]models.QueuedWithdrawal),
		passengers: make(map[string]models.Passenger),
		completed:  make(map[string]models.CompletedWithdrawal),
		unmatched:  make(map[string]models.UnmatchedDeposit),
	}
}

func (s *memStore) GetLastIndexedBlock(ctx context.Context, subscription string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[subscription], nil
}

func (s *memStore) UpdateLastIndexedBlock(ctx context.Context, subscription string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[subscription] = block
	return nil
}

func (s *memStore) UpsertWithdrawalRequest(ctx context.Context, r models.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.Account+":"+r.Nonce] = r
	return nil
}

func (s *memStore) GetWithdrawalRequest(ctx context.Context, account, nonce string) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[account+":"+nonce]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memStore) GetWithdrawalRequests(ctx context.Context, status string) ([]models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WithdrawalRequest
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) UpsertQueuedWithdrawal(ctx context.Context, q models.QueuedWithdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[q.Nonce] = q
	return nil
}

func (s *memStore) DeleteQueuedWithdrawal(ctx context.Context, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queued, nonce)
	return nil
}

func (s *memStore) GetQueuedWithdrawals(ctx context.Context) ([]models.QueuedWithdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueuedWithdrawal
	for _, q := range s.queued {
		out = append(out, q)
	}
	return out, nil
}

func (s *memStore) UpsertPassenger(ctx context.Context, p models.Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passengers[p.Index] = p
	return nil
}

func (s *memStore) DeletePassengersByBatch(ctx context.Context, batchHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.passengers {
		if p.BatchHash == batchHash {
			delete(s.passengers, k)
		}
	}
	return nil
}

func (s *memStore) GetPassengers(ctx context.Context, status string) ([]models.Passenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Passenger
	for _, p := range s.passengers {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) UpsertCompletedWithdrawals(ctx context.Context, ws []models.CompletedWithdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range ws {
		s.completed[w.ID] = w
	}
	return nil
}

func (s *memStore) DeleteCompletedWithdrawals(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.completed, id)
	}
	return nil
}

func (s *memStore) GetCompletedWithdrawals(ctx context.Context, status string) ([]models.CompletedWithdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CompletedWithdrawal
	for _, w := range s.completed {
		if status == "" || w.Status == status {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpsertUnmatchedDeposits(ctx context.Context, ds []models.UnmatchedDeposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range ds {
		s.unmatched[d.ID] = d
	}
	return nil
}

func (s *memStore) DeleteUnmatchedDeposits(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.unmatched, id)
	}
	return nil
}

func (s *memStore) GetUnmatchedDeposits(ctx context.Context) ([]models.UnmatchedDeposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UnmatchedDeposit
	for _, d := range s.unmatched {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) unmatchedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.unmatched))
	for id := range s.unmatched {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *memStore) request(account common.Address, nonce int64) models.WithdrawalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[lowerHex(account)+":"+big.NewInt(nonce).String()]
}

func (s *memStore) completedStatuses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.completed))
	for id, w := range s.completed {
		out[id] = w.Status
	}
	return out
}

type testKeeper struct {
	*Keeper
	l1    *fakeL1
	l2    *fakeL2
	store *memStore
}

func newTestKeeper(t *testing.T) *testKeeper {
	t.Helper()

	l1 := newFakeL1()
	l2 := newFakeL2()
	store := newMemStore()

	k, err := NewKeeper(Opts{
		L1:     l1,
		L2:     l2,
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Addresses: Addresses{
			FloxiL1:          floxiL1Address,
			FloxiL2:          floxiL2Address,
			Strategy:         strategyAddress,
			L1FraxFerry:      l1Ferry,
			L2FraxFerry:      l2Ferry,
			L2StandardBridge: l2Bridge,
			L1SfrxEth:        l1SfrxEth,
			L2SfrxEth:        l2SfrxEth,
		},
		L2FinalityPollInterval: time.Millisecond,
		L1SafePollInterval:     time.Millisecond,
		MaxFinalityWait:        time.Second,
		ResubscribeDelay:       time.Millisecond,
	})
	require.NoError(t, err)

	return &testKeeper{Keeper: k, l1: l1, l2: l2, store: store}
}

func hashOf(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n))
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func packData(t *testing.T, ev abi.Event, args ...interface{}) []byte {
	t.Helper()
	data, err := ev.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)
	return data
}

func withdrawalQueuedLog(t *testing.T, account common.Address, nonce, assets *big.Int, block uint64) types.Log {
	ev := contracts.FloxiL2ABI.Events["WithdrawalQueued"]
	return types.Log{
		Address:     floxiL2Address,
		Topics:      []common.Hash{ev.ID, addressTopic(account), common.BigToHash(nonce)},
		Data:        packData(t, ev, assets),
		BlockNumber: block,
		TxHash:      hashOf(block),
	}
}

func withdrawalInitiatedLog(t *testing.T, staker common.Address, nonce *big.Int, txHash common.Hash, block uint64) types.Log {
	ev := contracts.FloxiL1ABI.Events["WithdrawalInitiated"]
	return types.Log{
		Address: floxiL1Address,
		Topics:  []common.Hash{ev.ID, hashOf(99), common.BigToHash(nonce), hashOf(98)},
		Data: packData(t, ev, staker, staker, big.NewInt(int64(block)), strategyAddress,
			big.NewInt(10), big.NewInt(10)),
		BlockNumber: block,
		TxHash:      txHash,
	}
}

func withdrawalCompletedLog(t *testing.T, assets *big.Int, block uint64, index uint) types.Log {
	ev := contracts.FloxiL1ABI.Events["WithdrawalCompleted"]
	return types.Log{
		Address:     floxiL1Address,
		Topics:      []common.Hash{ev.ID},
		Data:        packData(t, ev, assets, assets, strategyAddress),
		BlockNumber: block,
		TxHash:      hashOf(block),
		Index:       index,
	}
}

func depositFinalizedLog(t *testing.T, amount *big.Int, block uint64, index uint) types.Log {
	ev := contracts.L2StandardBridgeABI.Events["DepositFinalized"]
	return types.Log{
		Address:     l2Bridge,
		Topics:      []common.Hash{ev.ID, addressTopic(l1SfrxEth), addressTopic(l2SfrxEth), addressTopic(floxiL1Address)},
		Data:        packData(t, ev, floxiL2Address, amount, []byte{}),
		BlockNumber: block,
		TxHash:      hashOf(block),
		Index:       index,
	}
}

func embarkLog(t *testing.T, sender common.Address, index int64, timestamp int64, block uint64) types.Log {
	ev := contracts.FraxFerryL2ABI.Events["Embark"]
	return types.Log{
		Address:     l2Ferry,
		Topics:      []common.Hash{ev.ID, addressTopic(sender)},
		Data:        packData(t, ev, big.NewInt(index), big.NewInt(100), big.NewInt(99), big.NewInt(timestamp)),
		BlockNumber: block,
		TxHash:      hashOf(block),
	}
}

func departLog(t *testing.T, start, end int64, hash common.Hash, block uint64) types.Log {
	ev := contracts.FraxFerryL2ABI.Events["Depart"]
	return types.Log{
		Address:     l2Ferry,
		Topics:      []common.Hash{ev.ID},
		Data:        packData(t, ev, big.NewInt(1), big.NewInt(start), big.NewInt(end), hash),
		BlockNumber: block,
		TxHash:      hashOf(block),
	}
}

func cancelledLog(t *testing.T, index int64, block uint64) types.Log {
	ev := contracts.FraxFerryL2ABI.Events["Cancelled"]
	return types.Log{
		Address:     l2Ferry,
		Topics:      []common.Hash{ev.ID},
		Data:        packData(t, ev, big.NewInt(index), true),
		BlockNumber: block,
		TxHash:      hashOf(block),
	}
}

func disembarkLog(t *testing.T, start, end int64, hash common.Hash, block uint64) types.Log {
	ev := contracts.FraxFerryL1ABI.Events["Disembark"]
	return types.Log{
		Address:     l1Ferry,
		Topics:      []common.Hash{ev.ID},
		Data:        packData(t, ev, big.NewInt(start), big.NewInt(end), hash),
		BlockNumber: block,
		TxHash:      hashOf(block),
	}
}

func withdrawalsUnlockedLog(t *testing.T, block uint64) types.Log {
	ev := contracts.FloxiL2ABI.Events["WithdrawalsUnlocked"]
	return types.Log{
		Address:     floxiL2Address,
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(5))},
		Data:        packData(t, ev, big.NewInt(1), big.NewInt(2)),
		BlockNumber: block,
		TxHash:      hashOf(block),
	}
}
