// Package http provides the HTTP client used to fetch presigned assets.
//
// This package handles:
//   - Connection pooling for concurrent downloads
//   - HEAD requests to probe the remote size
//   - GET requests, optionally resuming with an open byte range
//   - Classification of failures into retryable and fatal
//
// The client makes exactly one request per call. Retrying is the caller's
// concern; [IsRetryable] is the predicate to drive it with.
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Probe the remote size
//	info, err := client.Head(ctx, url)
//	// info.Size is -1 when the server reports no length
//
//	// Resume from byte 1024
//	resp, err := client.Get(ctx, url, 1024)
//	defer resp.Body.Close()
//	// resp.StatusCode is 206, 200 (range ignored) or 416 (nothing left)
//
// # Errors
//
//   - [*StatusError]: unexpected status; Temporary() for 5xx, 408 and 429
//   - [*ConnectError]: the remote host could not be reached or the connection dropped
//   - [ErrRangeIgnored]: a 206 without a usable Content-Range
package http
