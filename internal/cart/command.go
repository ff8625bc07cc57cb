package cart

import "github.com/noah-isme/toko-storefront/internal/catalog"

// Command is a tagged cart mutation request handled by Reduce.
type Command interface {
	// Name is the stable label used in logs and metrics.
	Name() string
	mutatesItems() bool
}

// AddItem adds Quantity units of Product. A Quantity below 1 adds a single unit.
type AddItem struct {
	Product  catalog.Product
	Quantity int
}

// RemoveItem drops the line with ID; absent ids are ignored.
type RemoveItem struct {
	ID int
}

// UpdateQuantity sets the quantity of line ID, floored at 1.
type UpdateQuantity struct {
	ID       int
	Quantity int
}

// ClearCart empties the cart without touching IsOpen.
type ClearCart struct{}

// OpenCart sets IsOpen.
type OpenCart struct{}

// CloseCart clears IsOpen.
type CloseCart struct{}

// ToggleCart flips IsOpen.
type ToggleCart struct{}

// ReplaceItems swaps the item list for a previously saved one, keeping IsOpen.
// The store issues it when reloading from the mirror.
type ReplaceItems struct {
	Items []LineItem
}

func (AddItem) Name() string        { return "add_item" }
func (RemoveItem) Name() string     { return "remove_item" }
func (UpdateQuantity) Name() string { return "update_quantity" }
func (ClearCart) Name() string      { return "clear_cart" }
func (OpenCart) Name() string       { return "open_cart" }
func (CloseCart) Name() string      { return "close_cart" }
func (ToggleCart) Name() string     { return "toggle_cart" }
func (ReplaceItems) Name() string   { return "replace_items" }

func (AddItem) mutatesItems() bool        { return true }
func (RemoveItem) mutatesItems() bool     { return true }
func (UpdateQuantity) mutatesItems() bool { return true }
func (ClearCart) mutatesItems() bool      { return true }
func (OpenCart) mutatesItems() bool       { return false }
func (CloseCart) mutatesItems() bool      { return false }
func (ToggleCart) mutatesItems() bool     { return false }
func (ReplaceItems) mutatesItems() bool   { return false }
