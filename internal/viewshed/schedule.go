package viewshed

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// partitionsPerWorker oversubscribes the pool slightly so uneven partitions
// (sectors through rough terrain, rows crossing the observer) balance out.
const partitionsPerWorker = 4

// runPartitions runs fn for every partition in [0, parts) on at most workers
// goroutines. Cancellation is observed at partition boundaries only.
func runPartitions(ctx context.Context, workers, parts int, fn func(part int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for p := 0; p < parts; p++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// span returns the half-open range of partition p when n items are split
// into parts contiguous, near-equal chunks.
func span(n, parts, p int) (lo, hi int) {
	return p * n / parts, (p + 1) * n / parts
}

func partitionCount(n, workers int) int {
	parts := workers * partitionsPerWorker
	if parts > n {
		parts = n
	}
	if parts < 1 {
		parts = 1
	}
	return parts
}

// runExact evaluates every cell with a full sight profile, partitioning
// the grid into contiguous row bands.
func runExact(ctx context.Context, ev *Evaluator, workers int, agg *aggregator) error {
	rows, cols := ev.grid.Dims()
	parts := partitionCount(rows, workers)
	agg.partitions(parts)

	return runPartitions(ctx, workers, parts, func(part int) {
		start := time.Now()
		lo, hi := span(rows, parts, part)
		for row := lo; row < hi; row++ {
			for col := 0; col < cols; col++ {
				agg.write(part, row*cols+col, ev.Evaluate(row, col))
			}
		}
		tracef("exact partition %d rows [%d, %d) in %v", part, lo, hi, time.Since(start))
	})
}

// runSweep registers cells in sectors and sweeps contiguous sector ranges
// in parallel. Each cell is owned by exactly one sector, so writes from
// different partitions never touch the same cell.
func runSweep(ctx context.Context, ev *Evaluator, sectors, workers int, agg *aggregator) error {
	start := time.Now()
	sw := newSweeper(ev, sectors)
	diagf("registered cells into %d sectors in %v", sectors, time.Since(start))

	parts := partitionCount(sectors, workers)
	agg.partitions(parts)

	return runPartitions(ctx, workers, parts, func(part int) {
		start := time.Now()
		lo, hi := span(sectors, parts, part)
		targets, resolved := 0, 0
		for s := lo; s < hi; s++ {
			sec := &sw.sectors[s]
			targets += len(sec.targets)
			_, n := sw.sweepSector(sec, func(idx int, d Decision) {
				agg.write(part, idx, d)
			})
			resolved += n
		}
		tracef("sweep partition %d sectors [%d, %d) %d targets, %d without a full profile, in %v",
			part, lo, hi, targets, resolved, time.Since(start))
	})
}
