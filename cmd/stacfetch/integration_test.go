//go:build integration

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ligustah/stacfetch/internal/asset"
	"github.com/ligustah/stacfetch/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	srv := testutils.StartAssetServer(t)

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "cli-test-orders")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	hh := testutils.GenerateTestData(t, 1024*1024)
	items := []asset.Item{
		{ID: productA, Assets: asset.NewAssets("HH", srv.AddFile("/"+productA+"_HH.tif", hh))},
		{ID: productB, Assets: asset.NewAssets("VV", srv.AddFile("/"+productB+"_VV.tif", hh[:4096]))},
	}
	doc, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal items: %v", err)
	}
	minio.PutObject(t, ctx, "orders/o-9.json", doc)

	captureStdout(t)
	dir := t.TempDir()

	t.Run("order", func(t *testing.T) {
		code := run([]string{"order", "-bucket", minio.BucketURL, "-id", "o-9",
			"-output", dir, "-separate-dirs", "-threaded"})
		if code != ExitSuccess {
			t.Fatalf("order failed with exit code %d", code)
		}

		got, err := os.ReadFile(filepath.Join(dir, productA, productA+"_HH.tif"))
		if err != nil {
			t.Fatalf("read HH: %v", err)
		}
		if len(got) != len(hh) {
			t.Errorf("HH size = %d, want %d", len(got), len(hh))
		}
	})

	t.Run("products", func(t *testing.T) {
		code := run([]string{"products", "-bucket", minio.BucketURL, "-object", "orders/",
			"-output", dir, "-separate-dirs"})
		if code != ExitSuccess {
			t.Fatalf("products failed with exit code %d", code)
		}
	})
}
