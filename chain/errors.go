package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrReceiptTimeout is returned when a sent transaction is not mined
	// within ClientOpts.ReceiptTimeout.
	ErrReceiptTimeout = errors.New("timed out waiting for receipt")

	// ErrTransactionFailed is returned for receipts with a failed status.
	ErrTransactionFailed = errors.New("transaction failed")
)

// RevertError is returned when the pre-flight call of a transaction reverts.
// Nothing was sent.
type RevertError struct {
	Method string
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s reverted: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("%s reverted: %v", e.Method, e.Err)
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// IsRevert reports whether err is or wraps a *RevertError.
func IsRevert(err error) bool {
	var revert *RevertError
	return errors.As(err, &revert)
}

func newRevertError(method string, err error) *RevertError {
	revert := &RevertError{Method: method, Err: err}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if reason, unpackErr := abi.UnpackRevert(common.FromHex(hexData)); unpackErr == nil {
				revert.Reason = reason
			}
		}
	}
	return revert
}

// isRevert recognises node errors for calls that reverted.
func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
