// Package observer drives the bootstrap/align/steady-state loop: it pulls
// blocks, logs and transactions from chainio, feeds them to the fsp
// packages, and forwards resulting messages to notify sinks.
package observer

import (
	"context"
	"fmt"

	"flarewatch/chainio"
)

// BoundaryNotFound is returned when the boundary finder exhausts its
// iteration budget without bracketing the target timestamp.
type BoundaryNotFound struct {
	Target    int64
	LastBlock uint64
	LastTS    int64
}

func (e *BoundaryNotFound) Error() string {
	return fmt.Sprintf("observer: boundary not found for target timestamp %d (last tried block %d at %d)", e.Target, e.LastBlock, e.LastTS)
}

const (
	boundaryToleranceS = 600
	boundaryStepBlocks = 100
	boundaryMaxSteps   = 2000
)

// FindBoundary locates a block number whose timestamp lies within
// ±600 seconds of target, starting from an initial guess derived from n0's
// own timestamp and avgBlockTimeS seconds per block (one second when
// avgBlockTimeS is not positive). It steps by
// 100 blocks towards the target on every overshoot, matching the bootstrap
// window search used to locate the voter-registration scan range.
func FindBoundary(ctx context.Context, client chainio.RPCClient, n0 uint64, n0TimestampS, target int64, avgBlockTimeS int64) (uint64, error) {
	if avgBlockTimeS <= 0 {
		avgBlockTimeS = 1
	}

	deltaS := n0TimestampS - target
	guess := int64(n0) - deltaS/avgBlockTimeS
	if guess < 0 {
		guess = 0
	}
	current := uint64(guess)

	var lastTS int64
	for i := 0; i < boundaryMaxSteps; i++ {
		b, err := client.BlockByNumber(ctx, current, false)
		if err != nil {
			return 0, fmt.Errorf("observer: boundary finder: block %d: %w", current, err)
		}
		lastTS = b.TimestampS

		d := b.TimestampS - target
		if d < 0 {
			d = -d
		}
		if d <= boundaryToleranceS {
			return current, nil
		}

		step := uint64(boundaryStepBlocks)
		if b.TimestampS > target {
			if current < step {
				return 0, &BoundaryNotFound{Target: target, LastBlock: current, LastTS: lastTS}
			}
			current -= step
		} else {
			current += step
		}
	}

	return 0, &BoundaryNotFound{Target: target, LastBlock: current, LastTS: lastTS}
}
