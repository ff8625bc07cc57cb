package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// MaxAddQuantity caps a single add request, matching the product page selector.
const MaxAddQuantity = 10

// Handler exposes the cart store over HTTP.
type Handler struct {
	Store   *Store
	Catalog *catalog.Service
}

type addItemRequest struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Quantity  int `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// Routes mounts the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateQuantity)
	r.Delete("/items/{id}", h.RemoveItem)
	r.Post("/open", h.Open)
	r.Post("/close", h.Close)
	r.Post("/toggle", h.Toggle)
	r.Post("/reload", h.Reload)
}

// Get returns the current cart.
func (h *Handler) Get(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, h.Store.State())
}

// AddItem resolves the product from the catalog and adds it.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	product, err := h.Catalog.Get(req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			common.WriteError(w, common.NotFound("product not found"))
			return
		}
		common.WriteError(w, err)
		return
	}
	if !product.InStock {
		common.WriteError(w, common.NewAppError("OUT_OF_STOCK", "product is out of stock", http.StatusConflict, nil))
		return
	}
	qty := min(max(req.Quantity, 1), MaxAddQuantity)
	common.Data(w, http.StatusOK, h.Store.AddItem(r.Context(), product, qty))
}

// UpdateQuantity sets a line's quantity. Anything below 1 removes the line,
// like decrementing past one on the cart page.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathInt(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req updateQuantityRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if *req.Quantity < 1 {
		common.Data(w, http.StatusOK, h.Store.RemoveItem(r.Context(), id))
		return
	}
	common.Data(w, http.StatusOK, h.Store.UpdateQuantity(r.Context(), id, *req.Quantity))
}

// RemoveItem drops a line; unknown ids are a no-op.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathInt(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.Store.RemoveItem(r.Context(), id))
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.Store.Clear(r.Context()))
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.Store.Open(r.Context()))
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.Store.Close(r.Context()))
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.Store.Toggle(r.Context()))
}

// Reload replaces the items with the saved cart, keeping the open flag.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.Store.Reload(r.Context()))
}
