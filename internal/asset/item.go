package asset

// ProductTypeProperty is the item property holding the product type.
const ProductTypeProperty = "sar:product_type"

// Item is a STAC-like product with presigned assets.
type Item struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Assets     Assets         `json:"assets"`
}

// ProductType returns the item's product type, or "" if unset.
func (it Item) ProductType() string {
	s, _ := it.Properties[ProductTypeProperty].(string)
	return s
}

// FilterByProductType returns the items whose product type is in types.
// An empty types list keeps every item.
func FilterByProductType(items []Item, types []string) []Item {
	if len(types) == 0 {
		return items
	}
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []Item
	for _, it := range items {
		if want[it.ProductType()] {
			out = append(out, it)
		}
	}
	return out
}
