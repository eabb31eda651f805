package asset

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
)

// Errors returned when deriving product identity.
var (
	ErrNoIdentityAsset  = errors.New("asset: no raster asset to derive product id from")
	ErrIdentityMismatch = errors.New("asset: product id pattern does not match")
	ErrNoFilename       = errors.New("asset: url has no filename")
)

// productIDPattern matches the product identifier at the start of a raster filename.
var productIDPattern = regexp.MustCompile(`^([A-Z0-9]+(?:_[A-Z0-9]+)*_\d{14}_\d{14})`)

// Request describes a single asset transfer.
type Request struct {
	// URL is the presigned source URL.
	URL string

	// Destination is the local file path. Empty means the executor picks one
	// in the system temp directory.
	Destination string

	// Key is the asset key, unique within one product.
	Key string

	// ProductID identifies the owning product, if known.
	ProductID string
}

// Kind returns the kind of the request's asset key.
func (r *Request) Kind() Kind {
	return ParseKind(r.Key)
}

// FilenameFromURL returns the last path segment of rawURL, ignoring any
// query string.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("asset: parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: %s", ErrNoFilename, u.Redacted())
	}
	return name, nil
}

// ProductID derives the product identifier from the first identity asset in
// assets.
func ProductID(assets Assets) (string, error) {
	for _, k := range identityKinds {
		a, ok := assets.Get(k.String())
		if !ok {
			continue
		}
		name, err := FilenameFromURL(a.Href)
		if err != nil {
			return "", err
		}
		m := productIDPattern.FindStringSubmatch(name)
		if m == nil {
			return "", fmt.Errorf("%w: %s asset %q", ErrIdentityMismatch, k, name)
		}
		return m[1], nil
	}
	return "", ErrNoIdentityAsset
}
