package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed data/products.json
var seedProducts []byte

// Product is a read-only catalog entry. Images supersedes the legacy Image
// field and Categories supersedes the legacy Category field.
type Product struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Images      []string `json:"images,omitempty"`
	Image       string   `json:"image,omitempty"`
	Description string   `json:"description"`
	Categories  []string `json:"categories,omitempty"`
	Category    string   `json:"category,omitempty"`
	InStock     bool     `json:"inStock"`
}

// PrimaryImage returns the first image, falling back to the legacy field.
func (p Product) PrimaryImage() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return p.Image
}

// CategoryList returns Categories, or the legacy single Category as a list.
func (p Product) CategoryList() []string {
	if len(p.Categories) > 0 {
		return p.Categories
	}
	if p.Category != "" {
		return []string{p.Category}
	}
	return nil
}

// Seed decodes the bundled storefront product list.
func Seed() ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(seedProducts, &products); err != nil {
		return nil, fmt.Errorf("catalog: decode seed products: %w", err)
	}
	return products, nil
}
