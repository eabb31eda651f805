// Package transfer moves a single asset from its presigned URL to disk.
//
// An [Executor] decides up front whether any bytes need fetching: an existing
// destination is skipped unless overriding, and with resume enabled the local
// size is compared against a HEAD of the remote object. Partial files continue
// from their last byte with an open range request; files larger than the
// remote are fetched again from the start.
//
// Transient failures (5xx, 408, 429, dropped connections) are retried under a
// [retry.Policy]. Bodies are streamed in fixed-size chunks and every chunk is
// reported to an optional [progress.Reporter].
//
//	exec := transfer.New(stachttp.NewClient(stachttp.DefaultOptions()), retry.Default())
//	out, err := exec.Transfer(ctx, req, transfer.Options{Resume: true})
package transfer
