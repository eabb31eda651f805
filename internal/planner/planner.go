package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ligustah/stacfetch/internal/asset"
	"github.com/ligustah/stacfetch/internal/logging"
)

// Errors returned by Plan.
var (
	ErrConfiguration = errors.New("planner: invalid configuration")
	ErrValidation    = errors.New("planner: invalid asset map")
)

// Options configures how an asset map is turned into requests.
type Options struct {
	// Include keeps only the listed asset keys. Empty keeps every key.
	// The "raster" alias expands to the raw polarization keys.
	Include []string

	// Exclude drops the listed asset keys. Exclude wins over Include.
	Exclude []string

	// SeparateDirs places each product's files under destDir/<product id>.
	SeparateDirs bool

	// Logger receives warnings about filter entries that match nothing.
	Logger *slog.Logger
}

// SplitList splits a comma-separated filter string, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Plan turns one product's asset map into download requests rooted at
// destDir. Requests follow the asset map's order.
func Plan(assets asset.Assets, destDir string, opts Options) ([]*asset.Request, error) {
	log := logging.OrDiscard(opts.Logger)

	if err := assets.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := checkDir(destDir); err != nil {
		return nil, err
	}

	productID, err := asset.ProductID(assets)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	log = log.With("product", productID)

	dir := destDir
	if opts.SeparateDirs {
		dir = filepath.Join(destDir, productID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create product directory: %v", ErrConfiguration, err)
		}
	}

	keys := filterKeys(assets, opts.Include, opts.Exclude, log)

	reqs := make([]*asset.Request, 0, len(keys))
	seen := make(map[string]string, len(keys))
	for _, key := range keys {
		a, _ := assets.Get(key)
		name, err := asset.FilenameFromURL(a.Href)
		if err != nil {
			return nil, fmt.Errorf("%w: asset %q: %w", ErrValidation, key, err)
		}
		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: assets %q and %q share file name %q", ErrValidation, other, key, name)
		}
		seen[name] = key

		if !asset.ParseKind(key).Known() {
			log.Debug("unrecognised asset key", "key", key)
		}
		reqs = append(reqs, &asset.Request{
			URL:         a.Href,
			Destination: filepath.Join(dir, name),
			Key:         key,
			ProductID:   productID,
		})
	}
	return reqs, nil
}

// PlanItems plans every item and concatenates the requests in item order.
// Destinations must be unique across all items: a product listed twice has
// its repeated requests dropped, while distinct products sharing a file name
// are rejected with ErrValidation.
func PlanItems(items []asset.Item, destDir string, opts Options) ([]*asset.Request, error) {
	log := logging.OrDiscard(opts.Logger)

	var reqs []*asset.Request
	owners := make(map[string]*asset.Request)
	for _, it := range items {
		planned, err := Plan(it.Assets, destDir, opts)
		if err != nil {
			if it.ID != "" {
				return nil, fmt.Errorf("item %s: %w", it.ID, err)
			}
			return nil, err
		}

		for _, req := range planned {
			owner, ok := owners[req.Destination]
			switch {
			case !ok:
				owners[req.Destination] = req
				reqs = append(reqs, req)
			case owner.ProductID == req.ProductID && owner.Key == req.Key:
				log.Warn("product listed more than once, ignoring repeat",
					"product", req.ProductID, "key", req.Key)
			default:
				return nil, fmt.Errorf("%w: %s/%s and %s/%s share destination %s, use separate directories",
					ErrValidation, owner.ProductID, owner.Key, req.ProductID, req.Key, req.Destination)
			}
		}
	}
	return reqs, nil
}

func checkDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: destination directory not set", ErrConfiguration)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: destination directory: %v", ErrConfiguration, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfiguration, dir)
	}
	return nil
}

// filterKeys applies include then exclude to the asset keys, keeping order.
// Filter entries naming keys that are not in assets are dropped with a warning.
func filterKeys(assets asset.Assets, include, exclude []string, log *slog.Logger) []string {
	keys := assets.Keys()

	if len(include) > 0 {
		want := expand(assets, include, "include", log)
		kept := keys[:0]
		for _, k := range keys {
			if want[k] {
				kept = append(kept, k)
			}
		}
		keys = kept
	}

	if len(exclude) > 0 {
		drop := expand(assets, exclude, "exclude", log)
		kept := keys[:0]
		for _, k := range keys {
			if !drop[k] {
				kept = append(kept, k)
			}
		}
		keys = kept
	}
	return keys
}

// expand resolves the raster alias and drops entries with no matching asset.
func expand(assets asset.Assets, entries []string, filter string, log *slog.Logger) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if e == asset.RasterAlias {
			for _, k := range asset.RawPolarizationKeys() {
				if assets.Has(k) {
					set[k] = true
				}
			}
			continue
		}
		if !assets.Has(e) {
			log.Warn("asset filter entry matches no asset, ignoring", "filter", filter, "entry", e)
			continue
		}
		set[e] = true
	}
	return set
}
