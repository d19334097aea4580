/*

The runner fans a validated sweep grid out over a worker pool. Each worker
owns its variants end to end: materialize the pool clone, run the trading
strategy over the price series, and report a result. A failed variant is a
data point, not a run failure; only infrastructure errors abort the sweep.

*/

package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/sampler"
	"github.com/curveforge/poolsim/internal/strategy"
	"github.com/curveforge/poolsim/internal/types"
)

// Config holds the dependencies for a Runner. The sink must be safe for
// concurrent use; every worker logs ticks through it.
type Config struct {
	Workers     int
	Arbitrageur strategy.Arbitrageur
	Sink        strategy.StateLog
}

type Runner struct {
	logger  zerolog.Logger
	strat   *strategy.Strategy
	workers int
	sink    strategy.StateLog
}

func New(cfg Config) (*Runner, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.Workers)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("state log sink cannot be nil")
	}
	return &Runner{
		logger:  logger.GetForComponent("runner"),
		strat:   strategy.New(cfg.Arbitrageur),
		workers: cfg.Workers,
		sink:    cfg.Sink,
	}, nil
}

// Result aggregates one sweep.
type Result struct {
	Run      types.RunRecord
	Variants []types.VariantResult
}

// Run sweeps the whole grid. Variant results come back ordered by variant
// index regardless of worker scheduling.
func (r *Runner) Run(ctx context.Context, grid *sampler.Grid, samples []strategy.PriceSample) (Result, error) {
	startedAt := time.Now()
	size := grid.Size()

	r.logger.Info().
		Int("variants", size).
		Int("workers", r.workers).
		Int("ticks", len(samples)).
		Msg("Starting parameter sweep")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan types.VariantResult, size)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, err := r.runVariant(ctx, grid, idx, samples)
				if err != nil {
					fail(err)
					return
				}
				results <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := 0; idx < size; idx++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- idx:
			}
		}
	}()

	wg.Wait()
	close(results)

	if firstErr != nil {
		return Result{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out := Result{
		Run: types.RunRecord{
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			Axes:       grid.Axes(),
			Variants:   size,
		},
	}
	for res := range results {
		out.Variants = append(out.Variants, res)
		if res.Status == types.VariantCompleted {
			out.Run.Completed++
		} else {
			out.Run.Failed++
		}
	}
	sort.Slice(out.Variants, func(i, j int) bool {
		return out.Variants[i].VariantIndex < out.Variants[j].VariantIndex
	})

	r.logger.Info().
		Int("completed", out.Run.Completed).
		Int("failed", out.Run.Failed).
		Str("duration", out.Run.FinishedAt.Sub(startedAt).String()).
		Msg("Parameter sweep finished")
	return out, nil
}

// runVariant materializes and simulates one grid point. Parameter application
// failures (an unsafe A for the pool's state, say) fail the variant, not the
// sweep.
func (r *Runner) runVariant(ctx context.Context, grid *sampler.Grid, idx int, samples []strategy.PriceSample) (types.VariantResult, error) {
	v, err := grid.Variant(idx)
	if err != nil {
		r.logger.Warn().Err(err).Int("variant", idx).Msg("Variant rejected by its parameters")
		return types.VariantResult{
			VariantIndex: idx,
			Status:       types.VariantFailed,
			FailReason:   err.Error(),
			TotalVolume:  sdkmath.ZeroInt(),
			TotalFees:    sdkmath.ZeroInt(),
		}, nil
	}
	return r.strat.Run(ctx, v, samples, r.sink)
}
