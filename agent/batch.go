package agent

import (
	"context"

	"github.com/shoheigorila/a1agent/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// BatchTarget is one (address, chain, block) unit of work for RunBatch.
type BatchTarget struct {
	Target  common.Address
	ChainID uint64
	Block   string
}

// BatchResult pairs a BatchTarget with its LoopResult.
type BatchResult struct {
	Target BatchTarget
	Result LoopResult
}

// RunBatch runs one Controller.Run per target, bounded by a semaphore of
// width parallel, per spec.md §5's inter-run parallelism model: each run
// owns its own AgentContext and transport clients, and the only shared
// mutable state is whatever process-wide Cache the collaborators were
// constructed with.
func RunBatch(ctx context.Context, newController func() *Controller, targets []BatchTarget, parallel int) ([]BatchResult, error) {
	if parallel <= 0 {
		parallel = 1
	}
	sem := semaphore.NewWeighted(int64(parallel))
	results := make([]BatchResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			controller := newController()
			result := controller.Run(gctx, target.Target, target.ChainID, target.Block)
			results[i] = BatchResult{Target: target, Result: result}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
