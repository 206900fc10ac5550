package dance

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Debaug/particle-dance/engine/random"
	"github.com/go-gl/mathgl/mgl32"
)

// SeedBatchSize is the number of points generated by one seeding task.
const SeedBatchSize = 1 << 16

// SeedPoints creates n points uniformly distributed over [-1, 1]^2.
// Batch b of SeedBatchSize points draws from an Rng seeded with Hash(seed, b), so the result
// depends only on seed and n, never on the number of workers.
//
// Parameters:
//   - seed: the seed every batch is derived from
//   - n: the number of points
//   - workers: the number of concurrent workers; non-positive means one per CPU
//
// Returns:
//   - []Point: the points
func SeedPoints(seed uint32, n int, workers int) []Point {
	points := make([]Point, n)
	if n == 0 {
		return points
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batches := (n + SeedBatchSize - 1) / SeedBatchSize
	workers = min(workers, batches)

	pool := worker.NewDynamicWorkerPool(workers, batches, time.Second)
	defer pool.Stop()

	var wg sync.WaitGroup
	for b := range batches {
		start := b * SeedBatchSize
		end := min(start+SeedBatchSize, n)
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: b,
			Do: func() (any, error) {
				defer wg.Done()
				rng := random.WithSeed(random.Hash(seed, uint32(b)))
				for i := start; i < end; i++ {
					points[i].Pos = rng.Vec2().Mul(2).Sub(mgl32.Vec2{1, 1})
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return points
}
