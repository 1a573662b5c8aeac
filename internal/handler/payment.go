package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/domain"
	"github.com/vzdolci/storefront/internal/domain/customer"
	"github.com/vzdolci/storefront/internal/domain/payment"
	"github.com/vzdolci/storefront/internal/gateway/mercadopago"
)

// createPayment creates a direct PIX payment outside a checkout session.
func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		writeError(w, r, mercadopago.ErrNotConfigured)
		return
	}

	var req struct {
		OrderID     string          `json:"orderId"`
		Amount      decimal.Decimal `json:"amount"`
		Method      string          `json:"method"`
		Description string          `json:"description"`
		Payer       struct {
			Email     string `json:"email"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
			CPF       string `json:"cpf"`
		} `json:"payer"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if !req.Amount.IsPositive() {
		writeError(w, r, domain.Invalid("amount", "Valor do pagamento inválido"))
		return
	}
	if !customer.ValidEmail(req.Payer.Email) {
		writeError(w, r, domain.Invalid("email", "Email inválido"))
		return
	}

	method := payment.MethodPix
	if req.Method != "" {
		parsed, err := payment.ParseMethod(req.Method)
		if err != nil {
			writeError(w, r, domain.Invalid("method", "Método de pagamento inválido"))
			return
		}
		method = parsed
	}

	info, err := h.gateway.CreatePayment(r.Context(), mercadopago.CreatePaymentRequest{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Method:      method,
		Description: req.Description,
		Payer: mercadopago.Payer{
			Email:     req.Payer.Email,
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
			CPF:       req.Payer.CPF,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.storePayment(r, info)
	writeJSON(w, http.StatusCreated, map[string]any{"payment": info})
}

// paymentStatus proxies the current payment state from the gateway.
func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		writeError(w, r, mercadopago.ErrNotConfigured)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, domain.Invalid("id", "Identificador do pagamento é obrigatório"))
		return
	}

	info, err := h.gateway.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.storePayment(r, info)
	writeJSON(w, http.StatusOK, map[string]any{"payment": info})
}

// storePayment write-through caches gateway responses into the payments
// store. Failures only affect later lookups, so they are logged and ignored.
func (h *Handler) storePayment(r *http.Request, info payment.Info) {
	if h.payments == nil {
		return
	}
	if err := h.payments.Upsert(r.Context(), info); err != nil {
		zctx.From(r.Context()).Warn("persist payment failed",
			zap.String("payment_id", info.PaymentID),
			zap.Error(err))
	}
}

// createPreference creates a Checkout PRO preference, either from a stored
// cart or from explicit items.
func (h *Handler) createPreference(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		writeError(w, r, mercadopago.ErrNotConfigured)
		return
	}

	var req struct {
		CartID            string `json:"cartId"`
		ExternalReference string `json:"externalReference"`
		Items             []struct {
			Title     string          `json:"title"`
			UnitPrice decimal.Decimal `json:"unitPrice"`
			Quantity  int             `json:"quantity"`
		} `json:"items"`
		Payer struct {
			Email     string `json:"email"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"payer"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var items []mercadopago.PreferenceItem
	switch {
	case req.CartID != "":
		snap, err := h.carts.Get(r.Context(), req.CartID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, line := range snap.Items {
			items = append(items, mercadopago.PreferenceItem{
				Title:      line.Product.Name,
				PictureURL: line.Product.Image,
				UnitPrice:  line.Product.Price,
				Quantity:   line.Quantity,
			})
		}
	default:
		for _, line := range req.Items {
			items = append(items, mercadopago.PreferenceItem{
				Title:     line.Title,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
			})
		}
	}

	if len(items) == 0 {
		writeError(w, r, domain.Invalid("items", "Itens do pedido são obrigatórios"))
		return
	}
	for _, item := range items {
		if item.Quantity <= 0 || !item.UnitPrice.IsPositive() || item.Title == "" {
			writeError(w, r, domain.Invalid("items", "Itens do pedido inválidos"))
			return
		}
	}
	if req.Payer.Email != "" && !customer.ValidEmail(req.Payer.Email) {
		writeError(w, r, domain.Invalid("email", "Email inválido"))
		return
	}

	pref, err := h.gateway.CreatePreference(r.Context(), mercadopago.CreatePreferenceRequest{
		ExternalReference: req.ExternalReference,
		Items:             items,
		Payer: mercadopago.Payer{
			Email:     req.Payer.Email,
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"preferenceId": pref.ID,
		"initPoint":    pref.InitPoint,
	})
}
