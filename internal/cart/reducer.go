package cart

import "slices"

// Reduce applies cmd to s and returns the next state. It never mutates the
// Items backing array of s. Unknown commands return s unchanged.
func Reduce(s State, cmd Command) State {
	switch c := cmd.(type) {
	case AddItem:
		qty := c.Quantity
		if qty < 1 {
			qty = 1
		}
		items := slices.Clone(s.Items)
		if i := indexOf(items, c.Product.ID); i >= 0 {
			items[i].Quantity += qty
		} else {
			items = append(items, LineItem{
				ID:       c.Product.ID,
				Name:     c.Product.Name,
				Price:    c.Product.Price,
				Image:    c.Product.PrimaryImage(),
				Quantity: qty,
			})
		}
		return s.withItems(items)

	case RemoveItem:
		i := indexOf(s.Items, c.ID)
		if i < 0 {
			return s
		}
		return s.withItems(slices.Delete(slices.Clone(s.Items), i, i+1))

	case UpdateQuantity:
		i := indexOf(s.Items, c.ID)
		if i < 0 {
			return s
		}
		items := slices.Clone(s.Items)
		items[i].Quantity = max(1, c.Quantity)
		return s.withItems(items)

	case ClearCart:
		return s.withItems([]LineItem{})

	case OpenCart:
		s.IsOpen = true
		return s

	case CloseCart:
		s.IsOpen = false
		return s

	case ToggleCart:
		s.IsOpen = !s.IsOpen
		return s

	case ReplaceItems:
		items := slices.Clone(c.Items)
		if items == nil {
			items = []LineItem{}
		}
		return s.withItems(items)
	}
	return s
}
