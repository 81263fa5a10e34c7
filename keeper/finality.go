package keeper

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/floxi-finance/floxi-keeper/chain"
	"github.com/floxi-finance/floxi-keeper/metrics"
)

// ErrFinalityTimeout is returned when a block does not reach the awaited
// tag within MaxFinalityWait.
var ErrFinalityTimeout = errors.New("finality wait exceeded")

// waitForBlock blocks until the watcher's tip for tag is at or past block.
// Polls are spaced by interval with +/-20% jitter.
func (k *Keeper) waitForBlock(ctx context.Context, chainName string, w LogWatcher, tag chain.BlockTag, block uint64, interval time.Duration) error {
	deadline := time.NewTimer(k.opts.MaxFinalityWait)
	defer deadline.Stop()

	for {
		tip, err := w.BlockNumber(ctx, tag)
		if err != nil {
			k.logger.Warn("failed to get block number", "chain", chainName, "tag", tag, "error", err)
		} else if tip >= block {
			return nil
		} else {
			k.logger.Debug("waiting for block", "chain", chainName, "tag", tag, "block", block, "tip", tip)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			metrics.RecordFinalityTimeout(chainName)
			k.logger.Error("block did not reach tag in time, operator action required",
				"chain", chainName, "tag", tag, "block", block, "maxWait", k.opts.MaxFinalityWait)
			return ErrFinalityTimeout
		case <-time.After(jitter(interval)):
		}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 5
	if spread == 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*spread+1)-spread)
}
