// Package shopify holds the raw upstream record types and the
// Normalizer. All loosely-typed upstream JSON handling lives here;
// everything downstream operates on catalog.Mod.
package shopify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProductsPage is the body of one GET /products.json response.
type ProductsPage struct {
	Products []Product `json:"products"`
}

// Product is the ephemeral upstream representation of one catalog
// entry. It exists only for the duration of a store's scrape and is
// never persisted.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Tags        TagList   `json:"tags"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
}

// Image carries a single product image URL.
type Image struct {
	Src string `json:"src"`
}

// Variant carries per-variant pricing as the upstream string.
type Variant struct {
	Price string `json:"price"`
}

// TagList accepts the two shapes upstreams emit for tags: a JSON array
// of strings, or a single comma-separated string. Either way the list
// is trimmed of surrounding whitespace and empty entries are dropped.
type TagList []string

// UnmarshalJSON implements the dual-shape decoding.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = trimTags(list)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tags are neither array nor string: %w", err)
	}
	*t = trimTags(strings.Split(raw, ","))
	return nil
}

func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
