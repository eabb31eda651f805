package stacfetch_test

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/stacfetch/pkg/stacfetch"
)

func Example_downloadProduct() {
	ctx := context.Background()
	c, _ := stacfetch.New(stacfetch.Options{RetryAttempts: 8})
	defer c.Close()

	assets := stacfetch.Assets{}
	assets.Set("HH", stacfetch.Asset{Href: "https://example.com/SAT_C05_SP_GEO_HH_20220101120000_20220101120010_HH.tif?X-Amz-Signature=..."})
	assets.Set("thumbnail", stacfetch.Asset{Href: "https://example.com/SAT_C05_SP_GEO_HH_20220101120000_20220101120010_thumb.png?X-Amz-Signature=..."})

	paths, err := c.DownloadProduct(ctx, assets, stacfetch.ProductOptions{
		LocalDir: "/data",
		Include:  []string{"raster"},
		Resume:   true,
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(paths["HH"])
}

func Example_downloadOrder() {
	ctx := context.Background()
	bucket, _ := blob.OpenBucket(ctx, "s3://orders?region=eu-west-1")
	defer bucket.Close()

	c, _ := stacfetch.New(stacfetch.Options{Concurrency: 4})
	defer c.Close()

	// Reads s3://orders/presigned/<id>.json
	paths, err := c.DownloadOrder(ctx, stacfetch.BucketResolver(bucket, "presigned/"), "order-1234", stacfetch.ProductsOptions{
		ProductOptions: stacfetch.ProductOptions{LocalDir: "/data", Threaded: true},
		SeparateDirs:   true,
		ProductTypes:   []string{"GEO"},
	})
	if err != nil {
		panic(err)
	}
	for product, files := range paths {
		fmt.Println(product, len(files))
	}
}
