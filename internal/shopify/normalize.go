package shopify

import (
	"errors"
	"strconv"
	"strings"

	"github.com/torquemods/modhub/internal/catalog"
)

// ErrMissingField marks a record lacking a required field (upstream id
// or title). Such records are skipped and counted, never fatal.
var ErrMissingField = errors.New("record missing required field")

const unknownVendor = "Unknown"

// Normalize maps one raw product to its canonical form. The mapping is
// pure and deterministic: same input, same output.
//
// Price convention: the lowest parseable variant price. Upstreams
// reorder variants freely, so "first variant" is not stable; a record
// with no parseable price gets 0.
func Normalize(store catalog.Store, p Product) (catalog.Mod, error) {
	if p.ID == 0 || strings.TrimSpace(p.Title) == "" {
		return catalog.Mod{}, ErrMissingField
	}

	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img.Src != "" {
			images = append(images, img.Src)
		}
	}

	vendor := strings.TrimSpace(p.Vendor)
	if vendor == "" {
		vendor = unknownVendor
	}

	base := strings.TrimRight(store.BaseURL, "/")
	upstreamID := strconv.FormatInt(p.ID, 10)

	return catalog.Mod{
		ID:          store.ID + ":" + upstreamID,
		StoreID:     store.ID,
		Title:       p.Title,
		Images:      images,
		Price:       lowestPrice(p.Variants),
		Vendor:      vendor,
		ProductType: p.ProductType,
		Tags:        append([]string(nil), p.Tags...),
		ProductURL:  base + "/products/" + p.Handle,
	}, nil
}

func lowestPrice(variants []Variant) float64 {
	lowest := 0.0
	found := false
	for _, v := range variants {
		price, err := strconv.ParseFloat(strings.TrimSpace(v.Price), 64)
		if err != nil || price < 0 {
			continue
		}
		if !found || price < lowest {
			lowest = price
			found = true
		}
	}
	return lowest
}
