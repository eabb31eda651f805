package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Asset is one presigned file of a product.
type Asset struct {
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Assets is an asset map that preserves insertion (document) order.
// The zero value is an empty map ready to use.
type Assets struct {
	keys  []string
	byKey map[string]Asset
}

// NewAssets builds an Assets from alternating key, href pairs.
// It panics on an odd number of arguments.
func NewAssets(pairs ...string) Assets {
	if len(pairs)%2 != 0 {
		panic("asset: NewAssets requires key, href pairs")
	}
	var a Assets
	for i := 0; i < len(pairs); i += 2 {
		a.Set(pairs[i], Asset{Href: pairs[i+1]})
	}
	return a
}

// Set adds or replaces an asset. Replacing keeps the original position.
func (a *Assets) Set(key string, v Asset) {
	if a.byKey == nil {
		a.byKey = make(map[string]Asset)
	}
	if _, ok := a.byKey[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.byKey[key] = v
}

// Get returns the asset stored under key.
func (a Assets) Get(key string) (Asset, bool) {
	v, ok := a.byKey[key]
	return v, ok
}

// Has reports whether key is present.
func (a Assets) Has(key string) bool {
	_, ok := a.byKey[key]
	return ok
}

// Keys returns the asset keys in order.
func (a Assets) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Len returns the number of assets.
func (a Assets) Len() int {
	return len(a.keys)
}

// Validate checks that the map is non-empty and every asset has an href.
func (a Assets) Validate() error {
	if a.Len() == 0 {
		return errors.New("asset: empty asset map")
	}
	for _, k := range a.keys {
		if a.byKey[k].Href == "" {
			return fmt.Errorf("asset: %q has no href", k)
		}
	}
	return nil
}

// UnmarshalJSON decodes a JSON object keeping the key order.
func (a *Assets) UnmarshalJSON(data []byte) error {
	*a = Assets{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("asset: assets must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("asset: unexpected token %v", tok)
		}
		var v Asset
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("asset %q: %w", key, err)
		}
		a.Set(key, v)
	}

	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the map as a JSON object in key order.
func (a Assets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(a.byKey[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
