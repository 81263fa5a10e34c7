package keeper

import (
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/types"
)

// MaxUnlockMatches caps the completed withdrawals folded into one
// unlockWithdrawals call, which iterates on-chain over that many entries.
const MaxUnlockMatches = 800

type WithdrawalRequest struct {
	Account     common.Address
	Nonce       *big.Int
	Assets      *big.Int
	TxHash      common.Hash
	BlockNumber uint64
}

func (r *WithdrawalRequest) Key() string {
	return requestKey(r.Account, r.Nonce)
}

func requestKey(account common.Address, nonce *big.Int) string {
	return lowerHex(account) + ":" + nonce.String()
}

type QueuedWithdrawal struct {
	Withdrawal     contracts.Withdrawal
	WithdrawalRoot common.Hash
	TxHash         common.Hash
	BlockNumber    uint64
}

func (q *QueuedWithdrawal) Key() string {
	return q.Withdrawal.Nonce.String()
}

type Passenger struct {
	Sender         common.Address
	Index          *big.Int
	Amount         *big.Int
	AmountAfterFee *big.Int
	Timestamp      uint64
	Cancelled      bool
	BatchHash      common.Hash
	TxHash         common.Hash
	BlockNumber    uint64
}

type CompletedWithdrawal struct {
	ID          string
	Assets      *big.Int
	Shares      *big.Int
	Strategy    common.Address
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
	// DepositLog is the DepositFinalized log this entry was matched to.
	DepositLog string
}

// UnlockBatch is a group of completed withdrawals matched to bridge
// deposits whose L2 accounting has not finished yet.
type UnlockBatch struct {
	ID      string
	Status  types.CompletionStatus
	Entries []*CompletedWithdrawal
}

func (b *UnlockBatch) Amount() *big.Int {
	total := new(big.Int)
	for _, e := range b.Entries {
		total.Add(total, e.Assets)
	}
	return total
}

func (b *UnlockBatch) Count() int {
	return len(b.Entries)
}

func (b *UnlockBatch) IDs() []string {
	ids := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		ids[i] = e.ID
	}
	return ids
}

// DepositMatch is a DepositFinalized amount waiting to be matched.
type DepositMatch struct {
	LogID       string
	Amount      *big.Int
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}

// Trackers owns every pending-work collection of the keeper. All methods
// are safe for concurrent use.
type Trackers struct {
	mu sync.Mutex

	requests map[string]*WithdrawalRequest
	queued   map[string]*QueuedWithdrawal
	embarked map[string]*Passenger
	departed map[common.Hash][]*Passenger

	completed map[string]*CompletedWithdrawal
	// byAssets keeps pending completed withdrawal ids per amount, oldest first.
	byAssets map[string][]string
	batches  map[string]*UnlockBatch
	deposits map[string]string
	// unmatched holds deposits that arrived before their completed withdrawal.
	unmatched map[string]DepositMatch
}

func NewTrackers() *Trackers {
	return &Trackers{
		requests:  make(map[string]*WithdrawalRequest),
		queued:    make(map[string]*QueuedWithdrawal),
		embarked:  make(map[string]*Passenger),
		departed:  make(map[common.Hash][]*Passenger),
		completed: make(map[string]*CompletedWithdrawal),
		byAssets:  make(map[string][]string),
		batches:   make(map[string]*UnlockBatch),
		deposits:  make(map[string]string),
		unmatched: make(map[string]DepositMatch),
	}
}

// StartRequest marks a request as in flight. It returns false when the
// request is already being processed.
func (t *Trackers) StartRequest(r *WithdrawalRequest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.requests[r.Key()]; ok {
		return false
	}
	t.requests[r.Key()] = r
	return true
}

func (t *Trackers) FinishRequest(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requests, key)
}

func (t *Trackers) RequestInFlight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.requests[key]
	return ok
}

// AddQueued returns false if a withdrawal with the same nonce is tracked.
func (t *Trackers) AddQueued(q *QueuedWithdrawal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.queued[q.Key()]; ok {
		return false
	}
	t.queued[q.Key()] = q
	return true
}

func (t *Trackers) RemoveQueued(nonce *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.queued, nonce.String())
}

// Queued returns the queued withdrawals ordered by start block, then nonce.
func (t *Trackers) Queued() []*QueuedWithdrawal {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*QueuedWithdrawal, 0, len(t.queued))
	for _, q := range t.queued {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Withdrawal.StartBlock != out[j].Withdrawal.StartBlock {
			return out[i].Withdrawal.StartBlock < out[j].Withdrawal.StartBlock
		}
		return out[i].Withdrawal.Nonce.Cmp(out[j].Withdrawal.Nonce) < 0
	})
	return out
}

// Embark returns false when the index is already tracked.
func (t *Trackers) Embark(p *Passenger) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := p.Index.String()
	if _, ok := t.embarked[key]; ok {
		return false
	}
	for _, departed := range t.departed {
		for _, d := range departed {
			if d.Index.Cmp(p.Index) == 0 {
				return false
			}
		}
	}
	t.embarked[key] = p
	return true
}

// Depart moves every embarked passenger with start <= index < end to the
// departed set under hash and returns the moved passengers.
func (t *Trackers) Depart(start, end *big.Int, hash common.Hash) []*Passenger {
	t.mu.Lock()
	defer t.mu.Unlock()

	var moved []*Passenger
	for key, p := range t.embarked {
		if p.Index.Cmp(start) >= 0 && p.Index.Cmp(end) < 0 {
			p.BatchHash = hash
			moved = append(moved, p)
			delete(t.embarked, key)
		}
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].Index.Cmp(moved[j].Index) < 0 })

	if len(moved) > 0 {
		t.departed[hash] = append(t.departed[hash], moved...)
	}
	return moved
}

// Cancel flags an embarked passenger as cancelled.
func (t *Trackers) Cancel(index *big.Int) (*Passenger, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.embarked[index.String()]
	if !ok {
		return nil, false
	}
	p.Cancelled = true
	return p, true
}

// Disembark removes the departed batch with hash.
func (t *Trackers) Disembark(hash common.Hash) ([]*Passenger, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	passengers, ok := t.departed[hash]
	if ok {
		delete(t.departed, hash)
	}
	return passengers, ok
}

// HasPassenger reports whether index is embarked or departed.
func (t *Trackers) HasPassenger(index *big.Int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.embarked[index.String()]; ok {
		return true
	}
	for _, departed := range t.departed {
		for _, d := range departed {
			if d.Index.Cmp(index) == 0 {
				return true
			}
		}
	}
	return false
}

// AddDeparted restores a departed passenger.
func (t *Trackers) AddDeparted(p *Passenger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.departed[p.BatchHash] = append(t.departed[p.BatchHash], p)
}

func (t *Trackers) Embarked() []*Passenger {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Passenger, 0, len(t.embarked))
	for _, p := range t.embarked {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index.Cmp(out[j].Index) < 0 })
	return out
}

func (t *Trackers) Departed(hash common.Hash) []*Passenger {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Passenger(nil), t.departed[hash]...)
}

// AddCompleted appends a pending completed withdrawal. It returns false
// when the id is already pending or part of a batch.
func (t *Trackers) AddCompleted(c *CompletedWithdrawal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasCompleted(c.ID) {
		return false
	}

	t.completed[c.ID] = c
	key := c.Assets.String()
	t.byAssets[key] = append(t.byAssets[key], c.ID)
	return true
}

// HasCompleted reports whether id is pending or part of a batch.
func (t *Trackers) HasCompleted(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasCompleted(id)
}

func (t *Trackers) hasCompleted(id string) bool {
	if _, ok := t.completed[id]; ok {
		return true
	}
	for _, b := range t.batches {
		for _, e := range b.Entries {
			if e.ID == id {
				return true
			}
		}
	}
	return false
}

func (t *Trackers) Completed() []*CompletedWithdrawal {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*CompletedWithdrawal, 0, len(t.completed))
	for _, c := range t.completed {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out
}

// DepositMatched reports whether a DepositFinalized log was already folded
// into a batch that is still outstanding.
func (t *Trackers) DepositMatched(logID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.deposits[logID]
	return ok
}

// Reserve matches deposits in order against pending completed withdrawals
// of the same amount, oldest first, stopping after limit matches. Matched
// entries leave the pending set and form a RESERVED batch. It returns the
// batch, or nil when nothing matched, and the number of deposits consumed.
// Deposits already held by a batch are consumed without matching. A matched
// deposit is no longer unmatched. An empty batchID names the batch after its
// first matched deposit.
func (t *Trackers) Reserve(batchID string, deposits []DepositMatch, limit int) (*UnlockBatch, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := &UnlockBatch{ID: batchID, Status: types.Reserved}
	consumed := 0
	for _, d := range deposits {
		if batch.Count() >= limit {
			break
		}
		consumed++

		if _, ok := t.deposits[d.LogID]; ok {
			continue
		}

		key := d.Amount.String()
		ids := t.byAssets[key]
		if len(ids) == 0 {
			continue
		}

		entry := t.completed[ids[0]]
		if len(ids) == 1 {
			delete(t.byAssets, key)
		} else {
			t.byAssets[key] = ids[1:]
		}
		delete(t.completed, entry.ID)

		entry.DepositLog = d.LogID
		batch.Entries = append(batch.Entries, entry)
		delete(t.unmatched, d.LogID)
	}

	if batch.Count() == 0 {
		return nil, consumed
	}
	if batch.ID == "" {
		batch.ID = batch.Entries[0].DepositLog
	}

	t.addBatch(batch)
	return batch, consumed
}

// AddUnmatched keeps a deposit that matched nothing for a later Reserve.
// It returns false when the deposit is already kept or held by a batch.
func (t *Trackers) AddUnmatched(d DepositMatch) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.unmatched[d.LogID]; ok {
		return false
	}
	if _, ok := t.deposits[d.LogID]; ok {
		return false
	}
	t.unmatched[d.LogID] = d
	return true
}

func (t *Trackers) HasUnmatched(logID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.unmatched[logID]
	return ok
}

// Unmatched returns the kept deposits in chain order.
func (t *Trackers) Unmatched() []DepositMatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]DepositMatch, 0, len(t.unmatched))
	for _, d := range t.unmatched {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out
}

// CanMatchUnmatched reports whether a kept deposit has a pending completed
// withdrawal of the same amount.
func (t *Trackers) CanMatchUnmatched() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, d := range t.unmatched {
		if len(t.byAssets[d.Amount.String()]) > 0 {
			return true
		}
	}
	return false
}

// AddBatch restores an outstanding batch.
func (t *Trackers) AddBatch(b *UnlockBatch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addBatch(b)
}

func (t *Trackers) addBatch(b *UnlockBatch) {
	t.batches[b.ID] = b
	for _, e := range b.Entries {
		if e.DepositLog != "" {
			t.deposits[e.DepositLog] = b.ID
		}
	}
}

func (t *Trackers) SetBatchStatus(id string, status types.CompletionStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.batches[id]; ok {
		b.Status = status
	}
}

// CommitBatch drops a batch whose unlock has been mined.
func (t *Trackers) CommitBatch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.batches[id]
	if !ok {
		return
	}
	for _, e := range b.Entries {
		delete(t.deposits, e.DepositLog)
	}
	delete(t.batches, id)
}

// Batches returns the outstanding batches ordered by id.
func (t *Trackers) Batches() []*UnlockBatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*UnlockBatch, 0, len(t.batches))
	for _, b := range t.batches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sizes reports the number of items per tracker.
func (t *Trackers) Sizes() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	departed := 0
	for _, d := range t.departed {
		departed += len(d)
	}
	reserved := 0
	for _, b := range t.batches {
		reserved += b.Count()
	}

	return map[string]int{
		"requests":  len(t.requests),
		"queued":    len(t.queued),
		"embarked":  len(t.embarked),
		"departed":  departed,
		"completed": len(t.completed),
		"reserved":  reserved,
		"unmatched": len(t.unmatched),
	}
}
