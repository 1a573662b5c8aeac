// Package handler exposes the storefront HTTP API: catalog, carts, checkout
// sessions, direct gateway operations, and the webhook receiver.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vzdolci/storefront/internal/checkout"
	"github.com/vzdolci/storefront/internal/domain"
	"github.com/vzdolci/storefront/internal/domain/cart"
	"github.com/vzdolci/storefront/internal/domain/catalog"
	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/domain/payment"
	"github.com/vzdolci/storefront/internal/gateway/mercadopago"
	"github.com/vzdolci/storefront/internal/webhook"
	"github.com/vzdolci/storefront/internal/whatsapp"
)

// Gateway is the slice of the payment gateway the handlers call directly.
// The checkout manager holds its own narrower view.
type Gateway interface {
	CreatePayment(ctx context.Context, req mercadopago.CreatePaymentRequest) (payment.Info, error)
	GetPayment(ctx context.Context, id string) (payment.Info, error)
	RefundPayment(ctx context.Context, paymentID string, amount *decimal.Decimal) (mercadopago.Refund, error)
	CreatePreference(ctx context.Context, req mercadopago.CreatePreferenceRequest) (mercadopago.Preference, error)
}

// Handler carries the domain dependencies for all HTTP endpoints.
type Handler struct {
	products catalog.Repository
	carts    *cart.Store
	checkout *checkout.Manager
	gateway  Gateway
	payments webhook.PaymentSink
	webhooks *webhook.Processor
	refunds  *RefundAuth
}

// NewHandler constructs a Handler. gateway may be nil when credentials are
// missing; the payment endpoints then answer with a configuration error.
func NewHandler(
	products catalog.Repository,
	carts *cart.Store,
	manager *checkout.Manager,
	gateway Gateway,
	payments webhook.PaymentSink,
	webhooks *webhook.Processor,
	refunds *RefundAuth,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		checkout: manager,
		gateway:  gateway,
		payments: payments,
		webhooks: webhooks,
		refunds:  refunds,
	}
}

// Routes mounts every API endpoint on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Post("/carts", h.createCart)
		r.Route("/carts/{cartID}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{productID}", h.setCartItemQuantity)
			r.Delete("/items/{productID}", h.removeCartItem)
			r.Post("/clear", h.clearCart)
		})

		r.Post("/checkout", h.startCheckout)
		r.Post("/checkout/preference", h.createPreference)
		r.Route("/checkout/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getCheckout)
			r.Post("/customer", h.setCheckoutCustomer)
			r.Post("/pix", h.startPix)
			r.Post("/whatsapp", h.startWhatsApp)
			r.Post("/whatsapp/confirm", h.confirmWhatsApp)
			r.Post("/cancel", h.cancelCheckout)
		})

		r.Post("/mercadopago/create-payment", h.createPayment)
		r.Get("/mercadopago/payment-status/{id}", h.paymentStatus)
		r.Post("/mercadopago/refund", h.refundPayment)

		r.Post("/webhooks/mercadopago", h.receiveWebhook)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the API error taxonomy. Technical detail goes to
// the request logger; clients only ever see the user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message})
		return
	}

	var terr *checkout.TransitionError
	if errors.As(err, &terr) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Operação não permitida nesta etapa do checkout"})
		return
	}

	var gerr *mercadopago.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.IsRateLimited():
			if gerr.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(gerr.RetryAfter))
			}
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Muitas requisições. Tente novamente em instantes."})
		case gerr.IsClientError():
			lg.Warn("gateway rejected request",
				zap.Int("status", gerr.StatusCode),
				zap.String("message", gerr.Message))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Não foi possível processar o pagamento. Verifique os dados e tente novamente."})
		default:
			lg.Error("gateway upstream error",
				zap.Int("status", gerr.StatusCode),
				zap.String("message", gerr.Message))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Falha na comunicação com o provedor de pagamento. Tente novamente."})
		}
		return
	}

	switch {
	case errors.Is(err, cart.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Carrinho não encontrado"})
	case errors.Is(err, catalog.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Produto não encontrado"})
	case errors.Is(err, checkout.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: checkout.ErrSessionNotFound.Error()})
	case errors.Is(err, mercadopago.ErrPaymentNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: mercadopago.ErrPaymentNotFound.Error()})
	case errors.Is(err, mercadopago.ErrNotConfigured), errors.Is(err, whatsapp.ErrNotConfigured):
		lg.Error("missing payment configuration", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Pagamento indisponível no momento"})
	case errors.Is(err, checkout.ErrCustomerRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: checkout.ErrCustomerRequired.Error()})
	case errors.Is(err, checkout.ErrNoQRCode):
		lg.Error("gateway returned no QR code")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: checkout.ErrNoQRCode.Error()})
	case errors.Is(err, order.ErrEmptyItems):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Carrinho vazio"})
	case errors.Is(err, order.ErrZeroTotal):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Total do pedido inválido"})
	case isOrderValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Itens do carrinho inválidos. Atualize a página e tente novamente."})
	default:
		lg.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Erro interno. Tente novamente."})
	}
}

func isOrderValidation(err error) bool {
	var (
		pnf *order.ProductNotFoundError
		iq  *order.InvalidQuantityError
		pm  *order.PriceMismatchError
	)
	return errors.As(err, &pnf) || errors.As(err, &iq) || errors.As(err, &pm)
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "Corpo da requisição inválido")
	}
	return nil
}
