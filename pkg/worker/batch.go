package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Result pairs one item's output with the error that produced it, so a
// caller can settle a whole batch and inspect failures per item instead
// of aborting on the first one.
type Result[R any] struct {
	Value R
	Err   error
}

// RunBatches processes items in fixed-size batches: batches run
// sequentially, items within a batch run concurrently. The batch size
// bounds concurrent upstream calls; it is backpressure, not correctness.
// Results are returned in item order. A panic inside fn is captured as
// that item's error.
func RunBatches[T, R any](ctx context.Context, items []T, batchSize int, fn func(context.Context, T) (R, error)) []Result[R] {
	if batchSize <= 0 {
		batchSize = 1
	}

	results := make([]Result[R], len(items))

	for offset := 0; offset < len(items); offset += batchSize {
		if ctx.Err() != nil {
			// Caller cancelled: mark the remaining items and stop scanning.
			for i := offset; i < len(items); i++ {
				results[i] = Result[R]{Err: ctx.Err()}
			}
			slog.Info("Batch run cancelled", "component", "BatchRunner", "processed", offset, "total", len(items))
			return results
		}

		end := offset + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						results[i] = Result[R]{Err: fmt.Errorf("panic: %v", r)}
					}
				}()
				value, err := fn(ctx, items[i])
				results[i] = Result[R]{Value: value, Err: err}
			}(i)
		}
		wg.Wait()
	}

	return results
}
