package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vzdolci/storefront/internal/domain"
	"github.com/vzdolci/storefront/internal/domain/cart"
)

// cartResponse wraps a cart snapshot with the derived totals the frontend
// renders.
type cartResponse struct {
	Cart      cart.Snapshot `json:"cart"`
	Total     string        `json:"total"`
	ItemCount int           `json:"itemCount"`
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	c := cart.Restore(snap)
	return cartResponse{
		Cart:      snap,
		Total:     c.Total().StringFixed(2),
		ItemCount: c.ItemCount(),
	}
}

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	snap := h.carts.Create(r.Context())
	writeJSON(w, http.StatusCreated, newCartResponse(snap))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, domain.Invalid("productId", "Produto é obrigatório"))
		return
	}

	// Prices always come from the catalog, never from the client.
	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := h.carts.Add(r.Context(), chi.URLParam(r, "cartID"), *p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) setCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity < 1 {
		writeError(w, r, domain.Invalid("quantity", "Quantidade deve ser no mínimo 1"))
		return
	}

	snap, err := h.carts.SetQuantity(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Remove(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(snap))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Clear(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(snap))
}
