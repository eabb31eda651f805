// Package downloader schedules batches of asset transfers.
//
// A [Coordinator] runs the requests of a batch either serially, in input
// order and stopping at the first failure, or threaded, with one goroutine
// per request optionally capped by Options.Concurrency. Threaded batches never
// cancel sibling transfers when one fails; the failures are collected into a
// [BatchError].
//
// # Usage
//
//	c := downloader.New(executor, downloader.Options{
//	    Concurrency: 8,
//	    Progress:    reporter,
//	    Logger:      logger,
//	})
//	paths, err := c.Run(ctx, reqs, downloader.BatchOptions{Threaded: true, Resume: true})
//
// # Progress
//
// The shared progress reporter is flushed at the start of every batch, so
// bars from an earlier batch never leak into the next one. Every batch logs
// a random batch id and a summary line with the file count, byte count and
// duration.
package downloader
