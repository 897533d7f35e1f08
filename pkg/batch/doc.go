// Package batch fetches product data for many identifiers in one call.
//
// A batch is processed in four steps:
//   - Normalize deduplicates the identifiers and remembers every position each
//     one occupied.
//   - Dispatcher fans the unique identifiers out over a fixed worker pool, never
//     more than the concurrency limit in flight.
//   - Coordinator re-dispatches the identifiers whose last attempt failed with a
//     detail-less transport error, for at most MaxRetries extra rounds.
//   - Reassemble projects the final outcomes back onto the original request
//     order, duplicates included.
//
// Example usage:
//
//	client, _ := upstream.New(upstream.DefaultConfig())
//	svc, _ := batch.NewService(client, batch.DefaultConfig())
//	res, err := svc.Run(ctx, batch.Request{
//		Identifiers: []string{"84747291048", "84747291048"},
//		Credentials: credentials.Bundle{Cookie: cookie},
//	})
//
// Individual fetch failures never fail the batch; only request validation does.
package batch
