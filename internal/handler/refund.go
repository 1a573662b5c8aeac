package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain"
	"github.com/vzdolci/storefront/internal/gateway/mercadopago"
)

// refundPayment refunds a payment, fully or partially. The endpoint is
// API-key protected; it is meant for the shop staff, not the storefront.
func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	if h.refunds == nil || !h.refunds.Authorize(r.Header.Get("X-API-Key")) {
		zctx.From(r.Context()).Warn("unauthorized refund attempt")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Não autorizado"})
		return
	}
	if h.gateway == nil {
		writeError(w, r, mercadopago.ErrNotConfigured)
		return
	}

	var req struct {
		PaymentID string           `json:"paymentId"`
		Amount    *decimal.Decimal `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PaymentID == "" {
		writeError(w, r, domain.Invalid("paymentId", "Identificador do pagamento é obrigatório"))
		return
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		writeError(w, r, domain.Invalid("amount", "Valor do reembolso inválido"))
		return
	}

	refund, err := h.gateway.RefundPayment(r.Context(), req.PaymentID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refund": refund})
}
