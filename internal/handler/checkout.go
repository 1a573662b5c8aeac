package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vzdolci/storefront/internal/domain"
	"github.com/vzdolci/storefront/internal/domain/customer"
)

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CartID string `json:"cartId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CartID == "" {
		writeError(w, r, domain.Invalid("cartId", "Carrinho é obrigatório"))
		return
	}

	s, err := h.checkout.Start(r.Context(), req.CartID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": s})
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (h *Handler) setCheckoutCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
		CPF   string `json:"cpf"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	info, err := customer.New(req.Name, req.Email, req.Phone, req.CPF)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.checkout.SetCustomer(chi.URLParam(r, "sessionID"), info)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (h *Handler) startPix(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.StartPix(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (h *Handler) startWhatsApp(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.StartWhatsApp(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (h *Handler) confirmWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.checkout.ConfirmWhatsApp(r.Context(), chi.URLParam(r, "sessionID"), req.Confirmed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (h *Handler) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Cancel(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}
