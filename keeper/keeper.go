package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"golang.org/x/sync/errgroup"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/contracts"
	"github.com/floxi-finance/floxi-keeper/database/models"
	"github.com/floxi-finance/floxi-keeper/metrics"
	keepertypes "github.com/floxi-finance/floxi-keeper/types"
)

type LogWatcher interface {
	BlockNumber(ctx context.Context, tag chain.BlockTag) (uint64, error)
	WatchLogs(ctx context.Context, q chain.LogQuery, sink chan<- chain.LogBatch) (event.Subscription, error)
}

// L1Client is the Ethereum side of the keeper, implemented by *ethereum.Client.
type L1Client interface {
	LogWatcher
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	InitiateEigenlayerWithdrawal(ctx context.Context, queueWithdrawalsCalldata []byte) (*types.Receipt, error)
	CompleteEigenlayerWithdrawal(ctx context.Context, withdrawal contracts.Withdrawal) (*types.Receipt, error)
	ShipToL2(ctx context.Context) (*types.Receipt, error)
	DepositIntoStrategy(ctx context.Context) (*types.Receipt, error)
	WithdrawalDelay(ctx context.Context, strategies []common.Address) (*big.Int, error)
	EigenWithdrawalsQueuedAt(ctx context.Context, blockNumber uint64) ([]*contracts.DelegationManagerWithdrawalQueued, error)
	SfrxEthBalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// L2Client is the Fraxtal side of the keeper, implemented by *fraxtal.Client.
type L2Client interface {
	LogWatcher
	GetL1Assets(ctx context.Context) (*big.Int, error)
	SetL1Assets(ctx context.Context, assets *big.Int) (*types.Receipt, error)
	UnlockWithdrawals(ctx context.Context, assets *big.Int, maxIterations *big.Int) (*types.Receipt, error)
}

// Store persists tracker state and subscription cursors, implemented by
// *database.Database.
type Store interface {
	GetLastIndexedBlock(ctx context.Context, subscription string) (uint64, error)
	UpdateLastIndexedBlock(ctx context.Context, subscription string, blockNumber uint64) error

	UpsertWithdrawalRequest(ctx context.Context, request models.WithdrawalRequest) error
	GetWithdrawalRequest(ctx context.Context, account, nonce string) (*models.WithdrawalRequest, error)
	GetWithdrawalRequests(ctx context.Context, status string) ([]models.WithdrawalRequest, error)

	UpsertQueuedWithdrawal(ctx context.Context, withdrawal models.QueuedWithdrawal) error
	DeleteQueuedWithdrawal(ctx context.Context, nonce string) error
	GetQueuedWithdrawals(ctx context.Context) ([]models.QueuedWithdrawal, error)

	UpsertPassenger(ctx context.Context, passenger models.Passenger) error
	DeletePassengersByBatch(ctx context.Context, batchHash string) error
	GetPassengers(ctx context.Context, status string) ([]models.Passenger, error)

	UpsertCompletedWithdrawals(ctx context.Context, withdrawals []models.CompletedWithdrawal) error
	DeleteCompletedWithdrawals(ctx context.Context, ids []string) error
	GetCompletedWithdrawals(ctx context.Context, status string) ([]models.CompletedWithdrawal, error)

	UpsertUnmatchedDeposits(ctx context.Context, deposits []models.UnmatchedDeposit) error
	DeleteUnmatchedDeposits(ctx context.Context, ids []string) error
	GetUnmatchedDeposits(ctx context.Context) ([]models.UnmatchedDeposit, error)
}

type Addresses struct {
	FloxiL1          common.Address
	FloxiL2          common.Address
	Strategy         common.Address
	L1FraxFerry      common.Address
	L2FraxFerry      common.Address
	L2StandardBridge common.Address
	L1SfrxEth        common.Address
	L2SfrxEth        common.Address
}

type Opts struct {
	L1        L1Client
	L2        L2Client
	Store     Store
	Logger    *slog.Logger
	Addresses Addresses

	L1StartBlock uint64
	L2StartBlock uint64

	SweepSchedule          string
	L2FinalityPollInterval time.Duration
	L1SafePollInterval     time.Duration
	MaxFinalityWait        time.Duration
	StalePassengerAfter    time.Duration
	ResubscribeDelay       time.Duration
	MaxUnlockMatches       int

	// Now defaults to time.Now.
	Now func() time.Time
}

type Keeper struct {
	l1       L1Client
	l2       L2Client
	store    Store
	trackers *Trackers
	logger   *slog.Logger
	opts     Opts

	// unlockMu serialises the L2 accounting calls made by the bridge
	// handler and the sweep.
	unlockMu sync.Mutex
	handlers sync.WaitGroup
}

func NewKeeper(opts Opts) (*Keeper, error) {
	if opts.L1 == nil || opts.L2 == nil || opts.Store == nil {
		return nil, errors.New("keeper requires L1, L2 and Store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = "1 * * * * *"
	}
	if opts.L2FinalityPollInterval <= 0 {
		opts.L2FinalityPollInterval = 10 * time.Minute
	}
	if opts.L1SafePollInterval <= 0 {
		opts.L1SafePollInterval = 2 * time.Minute
	}
	if opts.MaxFinalityWait <= 0 {
		opts.MaxFinalityWait = 6 * time.Hour
	}
	if opts.StalePassengerAfter <= 0 {
		opts.StalePassengerAfter = 72 * time.Hour
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = 15 * time.Second
	}
	if opts.MaxUnlockMatches <= 0 {
		opts.MaxUnlockMatches = MaxUnlockMatches
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Keeper{
		l1:       opts.L1,
		l2:       opts.L2,
		store:    opts.Store,
		trackers: NewTrackers(),
		logger:   opts.Logger,
		opts:     opts,
	}, nil
}

func (k *Keeper) Trackers() *Trackers {
	return k.trackers
}

// Run restores pending state, then runs every log subscription and the
// sweep until ctx is cancelled. It returns after in-flight handlers exit.
func (k *Keeper) Run(ctx context.Context) error {
	if err := k.Rehydrate(ctx); err != nil {
		return fmt.Errorf("failed to rehydrate trackers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range k.subscriptions() {
		s := s
		g.Go(func() error {
			return k.runSubscription(gctx, s)
		})
	}
	g.Go(func() error {
		return k.runSweep(gctx)
	})

	err := g.Wait()
	k.handlers.Wait()

	k.logger.Info("keeper stopped")
	return err
}

// spawn runs fn as an in-flight handler that Run waits for on shutdown.
func (k *Keeper) spawn(fn func()) {
	k.handlers.Add(1)
	go func() {
		defer k.handlers.Done()
		fn()
	}()
}

// Rehydrate loads the persisted trackers. Withdrawal requests still in
// REQUESTED state resume their finality wait on the next sweep.
func (k *Keeper) Rehydrate(ctx context.Context) error {
	queued, err := k.store.GetQueuedWithdrawals(ctx)
	if err != nil {
		return err
	}
	for _, m := range queued {
		q, err := queuedFromModel(m)
		if err != nil {
			return err
		}
		k.trackers.AddQueued(q)
	}

	passengers, err := k.store.GetPassengers(ctx, "")
	if err != nil {
		return err
	}
	for _, m := range passengers {
		p, err := passengerFromModel(m)
		if err != nil {
			return err
		}
		switch keepertypes.PassengerStatus(m.Status) {
		case keepertypes.Embarked:
			k.trackers.Embark(p)
		case keepertypes.Departed:
			k.trackers.AddDeparted(p)
		}
	}

	completed, err := k.store.GetCompletedWithdrawals(ctx, "")
	if err != nil {
		return err
	}
	batches := make(map[string]*UnlockBatch)
	for _, m := range completed {
		c, err := completedFromModel(m)
		if err != nil {
			return err
		}
		status := keepertypes.CompletionStatus(m.Status)
		if status == keepertypes.Pending || m.BatchID == "" {
			k.trackers.AddCompleted(c)
			continue
		}
		b, ok := batches[m.BatchID]
		if !ok {
			b = &UnlockBatch{ID: m.BatchID, Status: status}
			batches[m.BatchID] = b
		}
		// A partially persisted transition leaves the batch at its earliest state.
		if status == keepertypes.Reserved {
			b.Status = keepertypes.Reserved
		}
		b.Entries = append(b.Entries, c)
	}
	for _, b := range batches {
		k.trackers.AddBatch(b)
	}

	// Batches go first so deposits they already hold are not kept twice.
	deposits, err := k.store.GetUnmatchedDeposits(ctx)
	if err != nil {
		return err
	}
	for _, m := range deposits {
		d, err := depositFromModel(m)
		if err != nil {
			return err
		}
		k.trackers.AddUnmatched(d)
	}

	k.updatePendingMetrics()

	sizes := k.trackers.Sizes()
	k.logger.Info("trackers rehydrated",
		"queued", sizes["queued"],
		"embarked", sizes["embarked"],
		"departed", sizes["departed"],
		"completed", sizes["completed"],
		"unmatched", sizes["unmatched"],
		"batches", len(batches))

	return nil
}

func (k *Keeper) updatePendingMetrics() {
	for name, n := range k.trackers.Sizes() {
		metrics.SetPending(name, n)
	}
}
