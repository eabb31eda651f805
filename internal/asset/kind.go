package asset

// Kind classifies an asset key.
type Kind int

// Known asset kinds.
const (
	KindOther Kind = iota
	KindHH
	KindVV
	KindHV
	KindVH
	KindAnalyticProduct
	KindChangeMap
	KindMetadata
	KindThumbnail
	KindPreview
	KindLog
)

// RasterAlias is the filter term that expands to the raw polarization keys.
const RasterAlias = "raster"

var kindKeys = map[Kind]string{
	KindHH:              "HH",
	KindVV:              "VV",
	KindHV:              "HV",
	KindVH:              "VH",
	KindAnalyticProduct: "analytic_product",
	KindChangeMap:       "changemap",
	KindMetadata:        "metadata",
	KindThumbnail:       "thumbnail",
	KindPreview:         "preview",
	KindLog:             "log",
}

var keyKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindKeys))
	for k, s := range kindKeys {
		m[s] = k
	}
	return m
}()

// rawPolarizations are the keys the raster alias expands to.
var rawPolarizations = []Kind{KindHH, KindVV}

// identityKinds are the assets a product identifier can be derived from, in
// order of preference.
var identityKinds = []Kind{KindHH, KindVV, KindAnalyticProduct, KindChangeMap}

// ParseKind returns the kind for an asset key. Unknown keys map to KindOther.
func ParseKind(key string) Kind {
	if k, ok := keyKinds[key]; ok {
		return k
	}
	return KindOther
}

// String returns the asset key for k, or "other".
func (k Kind) String() string {
	if s, ok := kindKeys[k]; ok {
		return s
	}
	return "other"
}

// IsRaster reports whether k is a raster asset.
func (k Kind) IsRaster() bool {
	switch k {
	case KindHH, KindVV, KindHV, KindVH, KindAnalyticProduct, KindChangeMap:
		return true
	}
	return false
}

// Known reports whether k is part of the asset vocabulary.
func (k Kind) Known() bool {
	_, ok := kindKeys[k]
	return ok
}

// RawPolarizationKeys returns the asset keys the raster alias expands to.
func RawPolarizationKeys() []string {
	keys := make([]string, len(rawPolarizations))
	for i, k := range rawPolarizations {
		keys[i] = k.String()
	}
	return keys
}
