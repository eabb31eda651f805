package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/stacfetch/internal/asset"
)

// Common errors.
var (
	ErrNotFound = errors.New("source: document not found")
	ErrFormat   = errors.New("source: unrecognised document")
)

// Load reads an item document from key in the bucket at bucketURL.
// Supported schemes are file://, mem://, s3:// and gs://.
func Load(ctx context.Context, bucketURL, key string) ([]asset.Item, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("source: open bucket: %w", err)
	}
	defer bucket.Close()

	return LoadFromBucket(ctx, bucket, key)
}

// LoadFromBucket reads an item document from an existing bucket handle.
func LoadFromBucket(ctx context.Context, bucket *blob.Bucket, key string) ([]asset.Item, error) {
	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("source: read %s: %w", key, err)
	}

	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return items, nil
}

// LoadAll reads every .json document under prefix, in key order, and
// concatenates their items.
func LoadAll(ctx context.Context, bucket *blob.Bucket, prefix string) ([]asset.Item, error) {
	var items []asset.Item
	found := false

	iter := bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: list %s: %w", prefix, err)
		}
		if obj.IsDir || path.Ext(obj.Key) != ".json" {
			continue
		}
		found = true

		loaded, err := LoadFromBucket(ctx, bucket, obj.Key)
		if err != nil {
			return nil, err
		}
		items = append(items, loaded...)
	}

	if !found {
		return nil, fmt.Errorf("%w: no documents under %s", ErrNotFound, prefix)
	}
	return items, nil
}

// Parse decodes an item document. Accepted shapes are a FeatureCollection,
// an array of items, a single item, or a bare asset map.
func Parse(data []byte) ([]asset.Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrFormat)
	}

	switch data[0] {
	case '[':
		var items []asset.Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return items, nil
	case '{':
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrFormat)
	}

	var probe struct {
		Type     string          `json:"type"`
		Features json.RawMessage `json:"features"`
		Assets   json.RawMessage `json:"assets"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	switch {
	case probe.Features != nil || strings.EqualFold(probe.Type, "FeatureCollection"):
		var fc struct {
			Features []asset.Item `json:"features"`
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return fc.Features, nil
	case probe.Assets != nil:
		var it asset.Item
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return []asset.Item{it}, nil
	default:
		var assets asset.Assets
		if err := json.Unmarshal(data, &assets); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return []asset.Item{{Assets: assets}}, nil
	}
}

// Resolver maps identifiers (orders, tasking requests, collects) to the
// item documents stored at <Prefix><id>.json in a bucket.
type Resolver struct {
	Bucket *blob.Bucket
	Prefix string
}

// Resolve loads the items stored for id.
func (r *Resolver) Resolve(ctx context.Context, id string) ([]asset.Item, error) {
	if id == "" {
		return nil, errors.New("source: empty id")
	}
	return LoadFromBucket(ctx, r.Bucket, r.Prefix+id+".json")
}

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
