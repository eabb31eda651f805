// Package stacfetch downloads presigned assets of remote imagery products.
//
// A [Client] plans download requests from an item's asset map, runs them
// serially or concurrently, skips files that are already on disk and can
// resume partial files with ranged requests. Transient HTTP failures are
// retried with capped exponential backoff (2s, 4s, 8s, 16s, 16s, ...).
//
// # Single assets
//
//	c, _ := stacfetch.New(stacfetch.Options{})
//	defer c.Close()
//	path, err := c.DownloadAsset(ctx, presignedURL, stacfetch.AssetOptions{Resume: true})
//
// # Products
//
// [Client.DownloadProduct] takes one product's asset map and returns local
// paths keyed by asset key. [Client.DownloadProducts] takes several items
// and returns paths keyed by product id, then asset key. Asset filters
// accept "raster" as shorthand for the HH and VV polarizations.
//
// # Orders
//
// [Client.DownloadOrder] resolves an order, tasking request or collect id
// through a [Resolver]. [BucketResolver] reads item documents stored in any
// gocloud.dev/blob bucket.
//
// # Layout
//
//	{LocalDir}/{filename}                 default
//	{LocalDir}/{product id}/{filename}    with SeparateDirs
package stacfetch
