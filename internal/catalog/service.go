package catalog

import (
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// AllCategories is the pseudo category that disables category filtering.
const AllCategories = "All"

// Sort orders accepted by List.
const (
	SortName      = "name"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
)

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Sort     string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
}

// ListResult carries the filtered products and the unfiltered catalog size.
type ListResult struct {
	Items []Product
	Total int
}

// Service serves the static product list. It never mutates its products, so
// it is safe for concurrent use.
type Service struct {
	products []Product
	byID     map[int]int
}

// NewService indexes products by id. Duplicate ids are rejected.
func NewService(products []Product) (*Service, error) {
	byID := make(map[int]int, len(products))
	for i, p := range products {
		if _, dup := byID[p.ID]; dup {
			return nil, errors.New("catalog: duplicate product id " + strconv.Itoa(p.ID))
		}
		byID[p.ID] = i
	}
	return &Service{products: slices.Clone(products), byID: byID}, nil
}

// NewSeededService builds a Service over the bundled product list.
func NewSeededService() (*Service, error) {
	products, err := Seed()
	if err != nil {
		return nil, err
	}
	return NewService(products)
}

// Get returns the product with the given id.
func (s *Service) Get(id int) (Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return s.products[i], nil
}

// Categories returns "All" followed by every category in first-seen order.
func (s *Service) Categories() []string {
	out := []string{AllCategories}
	seen := map[string]struct{}{}
	for _, p := range s.products {
		for _, c := range p.CategoryList() {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// List filters by search term (name or description), category, price range
// and stock, then sorts.
func (s *Service) List(params ListParams) ListResult {
	term := strings.ToLower(strings.TrimSpace(params.Query))
	items := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		if params.Category != "" && params.Category != AllCategories &&
			!slices.Contains(p.CategoryList(), params.Category) {
			continue
		}
		if params.MinPrice != nil && p.Price < *params.MinPrice {
			continue
		}
		if params.MaxPrice != nil && p.Price > *params.MaxPrice {
			continue
		}
		if params.InStock != nil && p.InStock != *params.InStock {
			continue
		}
		items = append(items, p)
	}

	switch params.Sort {
	case SortPriceLow:
		slices.SortStableFunc(items, func(a, b Product) int { return compareFloat(a.Price, b.Price) })
	case SortPriceHigh:
		slices.SortStableFunc(items, func(a, b Product) int { return compareFloat(b.Price, a.Price) })
	default:
		slices.SortStableFunc(items, func(a, b Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}
	return ListResult{Items: items, Total: len(s.products)}
}

// ParseListParams normalises raw query values into typed filters.
func ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
		Sort:     normalizeSort(values.Get("sort")),
	}
	var err error
	if params.MinPrice, err = optionalFloat(values, "minPrice"); err != nil {
		return params, err
	}
	if params.MaxPrice, err = optionalFloat(values, "maxPrice"); err != nil {
		return params, err
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return params, common.BadRequest("minPrice cannot be greater than maxPrice", map[string]string{"field": "price"})
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, common.BadRequest("inStock must be true or false", map[string]string{"field": "inStock"})
		}
		params.InStock = &b
	}
	return params, nil
}

func optionalFloat(values url.Values, field string) (*float64, error) {
	v := strings.TrimSpace(values.Get(field))
	if v == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed < 0 {
		return nil, common.BadRequest(field+" must be a non-negative number", map[string]string{"field": field})
	}
	return &parsed, nil
}

func normalizeSort(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SortPriceLow, "price_asc":
		return SortPriceLow
	case SortPriceHigh, "price_desc":
		return SortPriceHigh
	default:
		return SortName
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
