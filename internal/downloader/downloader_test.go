package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ligustah/stacfetch/internal/asset"
	stachttp "github.com/ligustah/stacfetch/internal/http"
	"github.com/ligustah/stacfetch/internal/logging"
	"github.com/ligustah/stacfetch/internal/planner"
	"github.com/ligustah/stacfetch/internal/progress"
	"github.com/ligustah/stacfetch/internal/retry"
	"github.com/ligustah/stacfetch/internal/testutils"
	"github.com/ligustah/stacfetch/internal/transfer"
)

// fakeTransferer records calls and fails the keys listed in fail.
type fakeTransferer struct {
	fail  map[string]error
	delay time.Duration

	mu      sync.Mutex
	calls   []string
	opts    []transfer.Options
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeTransferer) Transfer(ctx context.Context, req *asset.Request, opts transfer.Options) (transfer.Outcome, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.Key)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.fail[req.Key]; err != nil {
		return transfer.Outcome{}, err
	}
	return transfer.Outcome{Key: req.Key, ProductID: req.ProductID, Path: req.Destination, Size: 10}, nil
}

func requests(keys ...string) []*asset.Request {
	reqs := make([]*asset.Request, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, &asset.Request{Key: k, ProductID: "P", Destination: "/tmp/" + k})
	}
	return reqs
}

func TestRunSerialOrder(t *testing.T) {
	fake := &fakeTransferer{}
	c := New(fake, Options{})

	paths, err := c.Run(context.Background(), requests("HH", "VV", "metadata"), BatchOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := strings.Join(fake.calls, ","); got != "HH,VV,metadata" {
		t.Errorf("calls = %s, want HH,VV,metadata", got)
	}
	if len(paths) != 3 || paths["VV"] != "/tmp/VV" {
		t.Errorf("paths = %v", paths)
	}
}

func TestRunSerialStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeTransferer{fail: map[string]error{"VV": boom}}
	c := New(fake, Options{})

	paths, err := c.Run(context.Background(), requests("HH", "VV", "metadata"), BatchOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(fake.calls) != 2 {
		t.Errorf("calls = %v, want 2", fake.calls)
	}
	if len(paths) != 1 || paths["HH"] == "" {
		t.Errorf("paths = %v, want only HH", paths)
	}
}

func TestRunThreadedCollectsFailures(t *testing.T) {
	errVV := errors.New("vv failed")
	errLog := errors.New("log failed")
	fake := &fakeTransferer{fail: map[string]error{"VV": errVV, "log": errLog}, delay: 10 * time.Millisecond}
	c := New(fake, Options{})

	paths, err := c.Run(context.Background(), requests("HH", "VV", "metadata", "log", "thumbnail"), BatchOptions{Threaded: true})
	if err == nil {
		t.Fatal("expected error")
	}

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("err = %T, want *BatchError", err)
	}
	if batchErr.Total != 5 || len(batchErr.Failed) != 2 {
		t.Errorf("batch error = %+v", batchErr)
	}
	if !errors.Is(err, errVV) || !errors.Is(err, errLog) {
		t.Errorf("err %v does not match both failures", err)
	}

	if len(fake.calls) != 5 {
		t.Errorf("calls = %d, want 5 (siblings must not be cancelled)", len(fake.calls))
	}
	if len(paths) != 3 {
		t.Errorf("paths = %v, want 3 completed", paths)
	}
	if fake.maxSeen.Load() < 2 {
		t.Errorf("max concurrency = %d, want transfers to overlap", fake.maxSeen.Load())
	}
}

func TestRunThreadedConcurrencyCap(t *testing.T) {
	fake := &fakeTransferer{delay: 20 * time.Millisecond}
	c := New(fake, Options{Concurrency: 2})

	keys := []string{"a", "b", "c", "d", "e", "f"}
	paths, err := c.Run(context.Background(), requests(keys...), BatchOptions{Threaded: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(paths) != len(keys) {
		t.Errorf("paths = %d, want %d", len(paths), len(keys))
	}
	if got := fake.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrency = %d, want <= 2", got)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	fake := &fakeTransferer{}
	c := New(fake, Options{Logger: logging.New(&buf, slog.LevelInfo, logging.FormatText)})

	for _, threaded := range []bool{false, true} {
		paths, err := c.Run(context.Background(), nil, BatchOptions{Threaded: threaded})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if paths == nil || len(paths) != 0 {
			t.Errorf("paths = %v, want empty map", paths)
		}
	}

	if len(fake.calls) != 0 {
		t.Errorf("calls = %v, want none", fake.calls)
	}
	if !strings.Contains(buf.String(), "nothing to download") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestRunFlushesProgressBeforeBatch(t *testing.T) {
	reporter := progress.NewReporter(progress.Options{Output: io.Discard})
	defer reporter.Close()

	reporter.Add("stale.tif", 100)
	reporter.Add("older.tif", progress.UnknownTotal)

	c := New(&fakeTransferer{}, Options{Progress: reporter})
	if _, err := c.Run(context.Background(), nil, BatchOptions{ShowProgress: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := reporter.Len(); n != 0 {
		t.Errorf("reporter has %d tasks after batch start, want 0", n)
	}
}

func TestRunPassesOptions(t *testing.T) {
	reporter := progress.NewReporter(progress.Options{Output: io.Discard})
	defer reporter.Close()

	fake := &fakeTransferer{}
	c := New(fake, Options{Progress: reporter})

	if _, err := c.Run(context.Background(), requests("HH"), BatchOptions{Override: true, Resume: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := c.Run(context.Background(), requests("HH"), BatchOptions{ShowProgress: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	first, second := fake.opts[0], fake.opts[1]
	if !first.Override || !first.Resume || first.Progress != nil {
		t.Errorf("first options = %+v", first)
	}
	if second.Override || second.Resume || second.Progress != reporter {
		t.Errorf("second options = %+v", second)
	}
}

func TestRunCancelledSerial(t *testing.T) {
	fake := &fakeTransferer{}
	c := New(fake, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, requests("HH", "VV"), BatchOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("calls = %v, want none", fake.calls)
	}
}

func TestRunProductsGroupsByProduct(t *testing.T) {
	reqs := []*asset.Request{
		{Key: "HH", ProductID: "A", Destination: "/a/HH"},
		{Key: "VV", ProductID: "A", Destination: "/a/VV"},
		{Key: "HH", ProductID: "B", Destination: "/b/HH"},
	}
	c := New(&fakeTransferer{}, Options{})

	paths, err := c.RunProducts(context.Background(), reqs, BatchOptions{Threaded: true})
	if err != nil {
		t.Fatalf("RunProducts: %v", err)
	}
	if len(paths) != 2 || len(paths["A"]) != 2 || paths["B"]["HH"] != "/b/HH" {
		t.Errorf("paths = %v", paths)
	}
}

func TestRunProductsEndToEnd(t *testing.T) {
	srv := testutils.StartAssetServer(t)

	products := []string{
		"SAT_C05_SP_GEO_HH_20220101120000_20220101120010",
		"SAT_C07_SP_GEO_VV_20230505080000_20230505080015",
	}
	var items []asset.Item
	want := make(map[string][]byte)
	for i, id := range products {
		hh := testutils.GenerateTestData(t, int64(1000*(i+1)))
		vv := testutils.GenerateTestData(t, int64(700*(i+1)))
		items = append(items, asset.Item{
			ID: id,
			Assets: asset.NewAssets(
				"HH", srv.AddFile("/"+id+"/"+id+"_HH.tif", hh),
				"VV", srv.AddFile("/"+id+"/"+id+"_VV.tif", vv),
			),
		})
		want[id+"_HH.tif"] = hh
		want[id+"_VV.tif"] = vv
	}

	policy := retry.Default()
	policy.MaxAttempts = 3
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	exec := transfer.New(stachttp.NewClient(stachttp.DefaultOptions()), policy)

	for _, separate := range []bool{true, false} {
		dir := t.TempDir()
		reqs, err := planner.PlanItems(items, dir, planner.Options{SeparateDirs: separate})
		if err != nil {
			t.Fatalf("PlanItems: %v", err)
		}

		c := New(exec, Options{Concurrency: 3})
		paths, err := c.RunProducts(context.Background(), reqs, BatchOptions{Threaded: true})
		if err != nil {
			t.Fatalf("RunProducts: %v", err)
		}
		if len(paths) != 2 {
			t.Fatalf("products = %d, want 2", len(paths))
		}

		for _, id := range products {
			for key, path := range paths[id] {
				wantDir := dir
				if separate {
					wantDir = filepath.Join(dir, id)
				}
				if filepath.Dir(path) != wantDir {
					t.Errorf("%s/%s in %s, want %s", id, key, filepath.Dir(path), wantDir)
				}
				got, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("read %s: %v", path, err)
				}
				if !bytes.Equal(got, want[filepath.Base(path)]) {
					t.Errorf("%s content mismatch", path)
				}
			}
		}
	}
}
