package scorer

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foodshed/siteplan/internal/model"
)

// maxScoringWorkers bounds the worker pool so small inputs do not
// oversubscribe the scheduler.
const maxScoringWorkers = 8

// ScoreAll scores the pool in fixed-size chunks on a bounded worker pool.
// Chunk results are concatenated in chunk order, so output order is
// deterministic. A panic while scoring one chunk drops that chunk's
// candidates and leaves the others intact.
func (s *Scorer) ScoreAll(ctx context.Context, cells []model.Cell, workers int) []model.ScoredCandidate {
	if len(cells) == 0 {
		return nil
	}

	if workers <= 0 || workers > maxScoringWorkers {
		workers = maxScoringWorkers
	}
	if n := runtime.NumCPU(); workers > n {
		workers = n
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	chunkSize := (len(cells) + workers - 1) / workers
	chunks := make([][]model.ScoredCandidate, workers)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		lo := i * chunkSize
		hi := min(lo+chunkSize, len(cells))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Warn("scorer: chunk panicked, dropping its candidates",
						zap.Int("chunk_start", lo),
						zap.Any("panic", r),
					)
					chunks[i] = nil
				}
			}()
			out := make([]model.ScoredCandidate, 0, hi-lo)
			for _, c := range cells[lo:hi] {
				if cand, ok := s.Score(c); ok {
					out = append(out, cand)
				}
			}
			chunks[i] = out
			return nil
		})
	}
	_ = g.Wait()

	var all []model.ScoredCandidate
	for _, chunk := range chunks {
		all = append(all, chunk...)
	}
	return all
}
