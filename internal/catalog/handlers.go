package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, h.service.Categories())
}

// Products handles GET /api/v1/products with search, category filter and sort.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result := h.service.List(params)
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Items,
		"meta": map[string]int{"showing": len(result.Items), "total": result.Total},
	})
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, err := common.PathInt(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	product, err := h.service.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NotFound(err.Error()))
			return
		}
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, product)
}
