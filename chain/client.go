package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// Backend is the node surface used by Client. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

type BlockTag int

const (
	Latest BlockTag = iota
	Safe
	Finalized
)

func (t BlockTag) String() string {
	switch t {
	case Safe:
		return "safe"
	case Finalized:
		return "finalized"
	default:
		return "latest"
	}
}

func (t BlockTag) number() *big.Int {
	switch t {
	case Safe:
		return big.NewInt(int64(rpc.SafeBlockNumber))
	case Finalized:
		return big.NewInt(int64(rpc.FinalizedBlockNumber))
	default:
		return nil
	}
}

type Client struct {
	backend Backend
	chainId *big.Int
	auth    *bind.TransactOpts
	limiter *rate.Limiter
	sendMu  sync.Mutex
	logger  *slog.Logger
	Opts    *ClientOpts
}

type ClientOpts struct {
	Name              string
	Endpoint          string
	PrivateKey        *ecdsa.PrivateKey
	Logger            *slog.Logger
	RequestsPerSecond float64
	RetryAttempts     int
	RetryBackoff      time.Duration
	PollInterval      time.Duration
	MaxBlockRange     uint64
	ReceiptTimeout    time.Duration
}

const (
	defaultRequestsPerSecond = 10
	defaultRetryAttempts     = 5
	defaultRetryBackoff      = 2 * time.Second
	defaultPollInterval      = 12 * time.Second
	defaultMaxBlockRange     = 2000
	defaultReceiptTimeout    = 10 * time.Minute
)

// NewClient dials the endpoint and returns a client signing with opts.PrivateKey.
func NewClient(opts ClientOpts) (*Client, error) {
	client, err := ethclient.Dial(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Name, err)
	}

	chainId, err := client.ChainID(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to get chainId: %w", err)
	}

	c, err := NewClientWithBackend(client, chainId, opts)
	if err != nil {
		return nil, err
	}

	c.logger.Info("connected to "+opts.Name, "chainId", chainId, "account", c.Address())
	return c, nil
}

// NewClientWithBackend builds a client over an existing backend.
func NewClientWithBackend(backend Backend, chainId *big.Int, opts ClientOpts) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxBlockRange == 0 {
		opts.MaxBlockRange = defaultMaxBlockRange
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = defaultReceiptTimeout
	}

	auth, err := bind.NewKeyedTransactorWithChainID(opts.PrivateKey, chainId)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	return &Client{
		backend: backend,
		chainId: chainId,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), int(opts.RequestsPerSecond)+1),
		logger:  opts.Logger,
		Opts:    &opts,
	}, nil
}

// Address is the keeper account that signs transactions on this chain.
func (c *Client) Address() common.Address {
	return crypto.PubkeyToAddress(c.Opts.PrivateKey.PublicKey)
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainId)
}

func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// BlockNumber returns the head for the given tag.
func (c *Client) BlockNumber(ctx context.Context, tag BlockTag) (uint64, error) {
	if tag == Latest {
		return retry(ctx, c, "get block number", func(ctx context.Context) (uint64, error) {
			return c.backend.BlockNumber(ctx)
		})
	}

	header, err := retry(ctx, c, "get "+tag.String()+" header", func(ctx context.Context) (*types.Header, error) {
		return c.backend.HeaderByNumber(ctx, tag.number())
	})
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return retry(ctx, c, "get transaction receipt", func(ctx context.Context) (*types.Receipt, error) {
		return c.backend.TransactionReceipt(ctx, txHash)
	})
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return retry(ctx, c, "filter logs", func(ctx context.Context) ([]types.Log, error) {
		return c.backend.FilterLogs(ctx, q)
	})
}

// IsContract reports whether code is deployed at addr.
func (c *Client) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	code, err := retry(ctx, c, "get code", func(ctx context.Context) ([]byte, error) {
		return c.backend.CodeAt(ctx, addr, nil)
	})
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// WarnIfNotContract logs a warning when nothing is deployed at addr.
func (c *Client) WarnIfNotContract(ctx context.Context, name string, addr common.Address) {
	if ok, _ := c.IsContract(ctx, addr); !ok {
		c.logger.Warn("contract not found for "+name+" at given Address", "address", addr.Hex(), "endpoint", c.Opts.Endpoint)
	}
}

// retry runs fn until it succeeds, fails permanently or the attempts run out.
// Every attempt waits on the client's rate limiter first.
func retry[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
		backoff = c.Opts.RetryBackoff
	)

	for attempt := 0; attempt < c.Opts.RetryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt < c.Opts.RetryAttempts-1 {
			c.logger.Debug("rpc call failed, retrying", "op", op, "attempt", attempt+1, "error", err)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return zero, fmt.Errorf("failed to %s after %d attempts: %w", op, c.Opts.RetryAttempts, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	return !IsRevert(err) && !isRevert(err)
}
