// Package batch runs independent jobs in parallel on a bounded worker pool.
//
// Predict resolves every requested league from cache at the same time and
// needs the answers back in request order. The pool hands out job indexes
// to a fixed number of workers and collects one Result per index, so the
// caller can merge them in the order it asked:
//
//	pool := batch.NewPool(batch.DefaultConfig(), func(ctx context.Context, i int) ([]Row, error) {
//		return resolveLeague(ctx, leagueIDs[i])
//	})
//	results := pool.Run(ctx, len(leagueIDs))
//
// The pool:
//   - Starts at most MaxConcurrency workers (never more than there are jobs)
//   - Bounds each job with its own timeout under the caller's context
//   - Marks jobs that never ran because the context ended with its error
//   - Keeps going after a failed job; errors are per result
package batch
