package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// GasParams are applied to an outgoing transaction. Zero or nil fields are
// estimated by the node.
type GasParams struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Call executes a view function and returns its unpacked outputs.
func (c *Client) Call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	out, err := c.call(ctx, to, method, data)
	if err != nil {
		return nil, err
	}

	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

// Transact simulates the call from the keeper account, sends it when the
// simulation succeeds and blocks until the receipt is available.
func (c *Client) Transact(ctx context.Context, to common.Address, contract abi.ABI, gas GasParams, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	if _, err := c.call(ctx, to, method, data); err != nil {
		return nil, err
	}

	tx, err := c.send(ctx, to, contract, gas, method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	c.logger.Info("transaction sent", "method", method, "to", to.Hex(), "txHash", tx.Hash().Hex(), "nonce", tx.Nonce())

	return c.waitMined(ctx, method, tx)
}

func (c *Client) call(ctx context.Context, to common.Address, method string, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: c.Address(), To: &to, Data: data}
	return retry(ctx, c, "call "+method, func(ctx context.Context) ([]byte, error) {
		out, err := c.backend.CallContract(ctx, msg, nil)
		if err != nil && isRevert(err) {
			return nil, newRevertError(method, err)
		}
		return out, err
	})
}

// send signs once and broadcasts with retries, so a retried broadcast can
// only ever resend the same transaction.
func (c *Client) send(ctx context.Context, to common.Address, contract abi.ABI, gas GasParams, method string, data []byte) (*types.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	bound := bind.NewBoundContract(to, contract, c.backend, c.backend, c.backend)

	tx, err := retry(ctx, c, "sign "+method, func(ctx context.Context) (*types.Transaction, error) {
		opts := *c.auth
		opts.Context = ctx
		opts.NoSend = true
		opts.GasLimit = gas.GasLimit
		opts.GasFeeCap = gas.MaxFeePerGas
		opts.GasTipCap = gas.MaxPriorityFeePerGas
		return bound.RawTransact(&opts, data)
	})
	if err != nil {
		return nil, err
	}

	_, err = retry(ctx, c, "send "+method, func(ctx context.Context) (struct{}, error) {
		err := c.backend.SendTransaction(ctx, tx)
		if err != nil && strings.Contains(err.Error(), "already known") {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func (c *Client) waitMined(ctx context.Context, method string, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.Opts.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s %s", ErrReceiptTimeout, method, tx.Hash().Hex())
		}
		return nil, fmt.Errorf("failed to wait for %s receipt: %w", method, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s %s", ErrTransactionFailed, method, tx.Hash().Hex())
	}

	c.logger.Info("transaction mined", "method", method, "txHash", tx.Hash().Hex(), "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	return receipt, nil
}
