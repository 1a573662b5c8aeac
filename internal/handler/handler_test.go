package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vzdolci/storefront/internal/checkout"
	"github.com/vzdolci/storefront/internal/domain/cart"
	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/domain/payment"
	"github.com/vzdolci/storefront/internal/gateway/mercadopago"
	"github.com/vzdolci/storefront/internal/storage/memory"
	"github.com/vzdolci/storefront/internal/webhook"
	"github.com/vzdolci/storefront/internal/whatsapp"
)

const (
	testAPIKey       = "refund-key-123"
	testPepper       = "pepper"
	testHookSecret   = "hook-secret"
	testWhatsAppDest = "5511999998888"
)

type gatewayMock struct {
	mu           sync.Mutex
	createFn     func(req mercadopago.CreatePaymentRequest) (payment.Info, error)
	getFn        func(id string) (payment.Info, error)
	refundFn     func(paymentID string, amount *decimal.Decimal) (mercadopago.Refund, error)
	preferenceFn func(req mercadopago.CreatePreferenceRequest) (mercadopago.Preference, error)
}

func (g *gatewayMock) CreatePayment(_ context.Context, req mercadopago.CreatePaymentRequest) (payment.Info, error) {
	g.mu.Lock()
	fn := g.createFn
	g.mu.Unlock()
	if fn == nil {
		return pendingPix("pay-1", req.Amount), nil
	}
	return fn(req)
}

func (g *gatewayMock) GetPayment(_ context.Context, id string) (payment.Info, error) {
	g.mu.Lock()
	fn := g.getFn
	g.mu.Unlock()
	if fn == nil {
		return pendingPix(id, decimal.RequireFromString("14.00")), nil
	}
	return fn(id)
}

func (g *gatewayMock) RefundPayment(_ context.Context, paymentID string, amount *decimal.Decimal) (mercadopago.Refund, error) {
	g.mu.Lock()
	fn := g.refundFn
	g.mu.Unlock()
	if fn == nil {
		return mercadopago.Refund{ID: "r-1", PaymentID: paymentID, Status: "approved"}, nil
	}
	return fn(paymentID, amount)
}

func (g *gatewayMock) CreatePreference(_ context.Context, req mercadopago.CreatePreferenceRequest) (mercadopago.Preference, error) {
	g.mu.Lock()
	fn := g.preferenceFn
	g.mu.Unlock()
	if fn == nil {
		return mercadopago.Preference{ID: "pref-1", InitPoint: "https://mp.example/init"}, nil
	}
	return fn(req)
}

func pendingPix(id string, amount decimal.Decimal) payment.Info {
	info, err := payment.New(payment.Params{
		PaymentID: id,
		Status:    payment.StatusPending,
		Method:    payment.MethodPix,
		Amount:    amount,
		QRCode:    "00020126pix-payload",
		CreatedAt: time.Now(),
	})
	if err != nil {
		panic(err)
	}
	return info
}

type fixture struct {
	handler  *Handler
	router   http.Handler
	gateway  *gatewayMock
	carts    *cart.Store
	orders   *memory.OrderRepository
	payments *memory.PaymentRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lg := zaptest.NewLogger(t)

	catalogRepo := memory.NewCatalogRepository()
	carts := cart.NewStore(memory.NewCartRepository(), 10*time.Millisecond, lg)
	t.Cleanup(func() { carts.Close(context.Background()) })

	orders := memory.NewOrderRepository()
	orderSvc := order.NewService(catalogRepo, orders)
	gateway := &gatewayMock{}

	wa, err := whatsapp.NewBuilder(testWhatsAppDest)
	require.NoError(t, err)

	manager := checkout.NewManager(gateway, orderSvc, carts, wa, checkout.Options{
		InitialDelay: 10 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		ConfirmDelay: 5 * time.Millisecond,
	}, lg)
	t.Cleanup(manager.Close)

	payments := memory.NewPaymentRepository()
	hooks := webhook.NewProcessor(
		webhook.NewVerifier(testHookSecret),
		memory.NewWebhookEventRepository(),
		gateway,
		payments,
		orderSvc,
		lg,
	)

	h := NewHandler(
		catalogRepo,
		carts,
		manager,
		gateway,
		payments,
		hooks,
		NewRefundAuth(testAPIKey, testPepper),
	)
	return &fixture{
		handler:  h,
		router:   h.Routes(),
		gateway:  gateway,
		carts:    carts,
		orders:   orders,
		payments: payments,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeResponse(t, rec)
	products, ok := out["products"].([]any)
	require.True(t, ok)
	assert.Len(t, products, 4)
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products/strati-di-moca", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeResponse(t, rec)
	product, ok := out["product"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Strati di Moca", product["name"])

	rec = f.do(t, http.MethodGet, "/api/products/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Produto não encontrado", decodeResponse(t, rec)["error"])
}

func TestCartLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/carts", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeResponse(t, rec)
	cartID := created["cart"].(map[string]any)["id"].(string)
	require.NotEmpty(t, cartID)

	rec = f.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", map[string]string{"productId": "crema-cotta-morango"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", map[string]string{"productId": "crema-cotta-morango"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeResponse(t, rec)
	assert.Equal(t, "28.00", out["total"])
	assert.Equal(t, 2.0, out["itemCount"])

	rec = f.do(t, http.MethodPut, "/api/carts/"+cartID+"/items/crema-cotta-morango", map[string]int{"quantity": 3}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42.00", decodeResponse(t, rec)["total"])

	rec = f.do(t, http.MethodPut, "/api/carts/"+cartID+"/items/crema-cotta-morango", map[string]int{"quantity": 0}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/carts/"+cartID+"/items/crema-cotta-morango", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.00", decodeResponse(t, rec)["total"])

	rec = f.do(t, http.MethodGet, "/api/carts/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Carrinho não encontrado", decodeResponse(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", map[string]string{"productId": "nope"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/carts", nil, nil)
	cartID := decodeResponse(t, rec)["cart"].(map[string]any)["id"].(string)
	f.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", map[string]string{"productId": "strati-di-moca"}, nil)

	rec = f.do(t, http.MethodPost, "/api/checkout", map[string]string{"cartId": cartID}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decodeResponse(t, rec)["session"].(map[string]any)
	sessionID := session["id"].(string)
	assert.Equal(t, "entering_customer_data", session["state"])

	// Invalid customer data keeps the session where it is.
	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/customer", map[string]string{
		"name": "Ana Silva", "email": "not-an-email", "phone": "11988887777", "cpf": "52998224725",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email inválido", decodeResponse(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/customer", map[string]string{
		"name": "Ana Silva", "email": "ana@example.com", "phone": "11988887777", "cpf": "52998224725",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "method_selected", decodeResponse(t, rec)["session"].(map[string]any)["state"])

	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/pix", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session = decodeResponse(t, rec)["session"].(map[string]any)
	assert.Equal(t, "awaiting_confirmation", session["state"])
	paymentOut := session["payment"].(map[string]any)
	assert.Equal(t, "00020126pix-payload", paymentOut["qrCode"])

	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "method_selected", decodeResponse(t, rec)["session"].(map[string]any)["state"])

	// The WhatsApp path hands the customer a prefilled chat link.
	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/whatsapp", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session = decodeResponse(t, rec)["session"].(map[string]any)
	assert.Equal(t, "awaiting_manual_confirmation", session["state"])
	assert.Contains(t, session["whatsAppLink"], "https://wa.me/"+testWhatsAppDest)

	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/whatsapp/confirm", map[string]bool{"confirmed": true}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decodeResponse(t, rec)["session"].(map[string]any)["state"])

	rec = f.do(t, http.MethodGet, "/api/checkout/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutGuards(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/checkout", map[string]string{"cartId": "missing"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/checkout", map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// PIX before customer data is a state conflict.
	cartRec := f.do(t, http.MethodPost, "/api/carts", nil, nil)
	cartID := decodeResponse(t, cartRec)["cart"].(map[string]any)["id"].(string)
	f.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", map[string]string{"productId": "strati-di-moca"}, nil)
	rec = f.do(t, http.MethodPost, "/api/checkout", map[string]string{"cartId": cartID}, nil)
	sessionID := decodeResponse(t, rec)["session"].(map[string]any)["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/checkout/"+sessionID+"/pix", nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{
		"amount":      "42.50",
		"description": "Pedido",
		"payer":       map[string]string{"email": "ana@example.com"},
	}
	rec := f.do(t, http.MethodPost, "/api/mercadopago/create-payment", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decodeResponse(t, rec)["payment"].(map[string]any)
	assert.Equal(t, "pay-1", out["paymentId"])

	// Write-through cache keeps the record.
	_, ok := f.payments.GetByID(context.Background(), "pay-1")
	assert.True(t, ok)
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/mercadopago/create-payment", map[string]any{
		"amount": "0", "payer": map[string]string{"email": "ana@example.com"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Valor do pagamento inválido", decodeResponse(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/mercadopago/create-payment", map[string]any{
		"amount": "10.00", "payer": map[string]string{"email": "bad"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email inválido", decodeResponse(t, rec)["error"])
}

func TestCreatePaymentWithoutGateway(t *testing.T) {
	f := newFixture(t)
	f.handler.gateway = nil

	rec := f.do(t, http.MethodPost, "/api/mercadopago/create-payment", map[string]any{
		"amount": "10.00", "payer": map[string]string{"email": "ana@example.com"},
	}, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Pagamento indisponível no momento", decodeResponse(t, rec)["error"])
}

func TestCreatePaymentErrorMapping(t *testing.T) {
	f := newFixture(t)

	t.Run("rate limited", func(t *testing.T) {
		f.gateway.createFn = func(mercadopago.CreatePaymentRequest) (payment.Info, error) {
			return payment.Info{}, &mercadopago.Error{StatusCode: http.StatusTooManyRequests, RetryAfter: 30}
		}
		rec := f.do(t, http.MethodPost, "/api/mercadopago/create-payment", map[string]any{
			"amount": "10.00", "payer": map[string]string{"email": "ana@example.com"},
		}, nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	})

	t.Run("upstream client error", func(t *testing.T) {
		f.gateway.createFn = func(mercadopago.CreatePaymentRequest) (payment.Info, error) {
			return payment.Info{}, &mercadopago.Error{StatusCode: http.StatusBadRequest, Message: "bad payer"}
		}
		rec := f.do(t, http.MethodPost, "/api/mercadopago/create-payment", map[string]any{
			"amount": "10.00", "payer": map[string]string{"email": "ana@example.com"},
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream outage", func(t *testing.T) {
		f.gateway.createFn = func(mercadopago.CreatePaymentRequest) (payment.Info, error) {
			return payment.Info{}, &mercadopago.Error{StatusCode: http.StatusServiceUnavailable}
		}
		rec := f.do(t, http.MethodPost, "/api/mercadopago/create-payment", map[string]any{
			"amount": "10.00", "payer": map[string]string{"email": "ana@example.com"},
		}, nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestPaymentStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/mercadopago/payment-status/pay-9", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeResponse(t, rec)["payment"].(map[string]any)
	assert.Equal(t, "pay-9", out["paymentId"])

	f.gateway.getFn = func(string) (payment.Info, error) {
		return payment.Info{}, mercadopago.ErrPaymentNotFound
	}
	rec = f.do(t, http.MethodGet, "/api/mercadopago/payment-status/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"paymentId": "pay-1"}

	t.Run("requires api key", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/mercadopago/refund", body, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = f.do(t, http.MethodPost, "/api/mercadopago/refund", body, map[string]string{"X-API-Key": "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authorized", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/mercadopago/refund", body, map[string]string{"X-API-Key": testAPIKey})
		require.Equal(t, http.StatusOK, rec.Code)
		out := decodeResponse(t, rec)["refund"].(map[string]any)
		assert.Equal(t, "approved", out["status"])
	})

	t.Run("missing payment id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/mercadopago/refund", map[string]any{}, map[string]string{"X-API-Key": testAPIKey})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreatePreference(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/checkout/preference", map[string]any{
		"items": []map[string]any{{"title": "Strati di Moca", "unitPrice": "14.00", "quantity": 2}},
		"payer": map[string]string{"email": "ana@example.com"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeResponse(t, rec)
	assert.Equal(t, "pref-1", out["preferenceId"])
	assert.Equal(t, "https://mp.example/init", out["initPoint"])

	rec = f.do(t, http.MethodPost, "/api/checkout/preference", map[string]any{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/checkout/preference", map[string]any{
		"items": []map[string]any{{"title": "", "unitPrice": "14.00", "quantity": 1}},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func signWebhook(dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(testHookSecret))
	mac.Write([]byte("id:" + dataID + ";request-id:" + requestID + ";ts:" + ts + ";"))
	return "ts=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)

	f.gateway.getFn = func(id string) (payment.Info, error) {
		info, err := payment.New(payment.Params{
			PaymentID: id,
			Status:    payment.StatusApproved,
			Method:    payment.MethodPix,
			Amount:    decimal.RequireFromString("14.00"),
		})
		require.NoError(t, err)
		return info, nil
	}

	body := map[string]any{
		"id":   777,
		"type": "payment",
		"data": map[string]string{"id": "pay-7"},
	}

	t.Run("rejects missing signature", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/webhooks/mercadopago", body, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/webhooks/mercadopago", body, map[string]string{
			"x-signature":  "ts=1,v1=deadbeef",
			"x-request-id": "req-1",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts and refreshes", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/webhooks/mercadopago", body, map[string]string{
			"x-signature":  signWebhook("pay-7", "req-1", "1724800000"),
			"x-request-id": "req-1",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, decodeResponse(t, rec)["received"])

		stored, ok := f.payments.GetByID(context.Background(), "pay-7")
		require.True(t, ok)
		assert.Equal(t, payment.StatusApproved, stored.Status)
	})

	t.Run("rejects garbage body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/mercadopago", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
