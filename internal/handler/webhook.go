package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/webhook"
)

// receiveWebhook handles Mercado Pago notifications. The gateway retries on
// anything but 2xx, so every accepted delivery is acknowledged with 200 even
// when downstream processing fails.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Corpo da requisição inválido"})
		return
	}

	n, err := webhook.ParseNotification(body)
	if err != nil {
		lg.Warn("malformed webhook payload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Notificação inválida"})
		return
	}

	if err := h.webhooks.Verify(r.Header.Get("x-signature"), r.Header.Get("x-request-id"), n); err != nil {
		lg.Warn("webhook signature rejected", zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Assinatura inválida"})
		return
	}

	h.webhooks.Process(r.Context(), n)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
