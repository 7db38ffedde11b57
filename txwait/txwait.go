// Package txwait waits for transaction confirmation with an upper bound on
// the time spent waiting.
package txwait

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultTimeout bounds a confirmation wait when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// PollInterval is how often WaitHash queries for a receipt.
var PollInterval = time.Second

// Outcome is the result category of a confirmation wait.
type Outcome int

const (
	// Confirmed means the transaction was mined and succeeded.
	Confirmed Outcome = iota
	// Reverted means the transaction was mined and failed.
	Reverted
	// TimedOut means no receipt appeared before the timeout. The transaction may still be mined later.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Reverted:
		return "reverted"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result of a wait. Receipt is nil when the wait timed out.
type Result struct {
	Outcome Outcome
	Receipt *types.Receipt
}

// ReceiptBackend is the subset of a chain client needed to resume a wait by hash.
type ReceiptBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Wait blocks until tx is mined or timeout elapses.
// Cancelling ctx aborts the wait with ctx's error; reaching the timeout is
// not an error and is reported as TimedOut.
func Wait(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, backend, tx)
	if err != nil {
		return timeoutOrError(ctx, err)
	}
	return fromReceipt(receipt), nil
}

// WaitHash is Wait for a transaction known only by its hash, such as one
// recorded by an earlier run.
func WaitHash(ctx context.Context, backend ReceiptBackend, txHash common.Hash, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return fromReceipt(receipt), nil
		}
		if !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			return Result{}, err
		}

		select {
		case <-waitCtx.Done():
			return timeoutOrError(ctx, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func timeoutOrError(parent context.Context, err error) (Result, error) {
	if parent.Err() != nil {
		return Result{}, parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Outcome: TimedOut}, nil
	}
	return Result{}, err
}

func fromReceipt(receipt *types.Receipt) Result {
	if receipt.Status == types.ReceiptStatusSuccessful {
		return Result{Outcome: Confirmed, Receipt: receipt}
	}
	return Result{Outcome: Reverted, Receipt: receipt}
}
