// Package mercadopago is the payment gateway adapter. It talks to the
// Mercado Pago REST API and normalizes responses into the payment domain
// types. The adapter performs no retries; retry policy belongs to callers.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/payment"
)

// DefaultBaseURL is the production Mercado Pago API endpoint.
const DefaultBaseURL = "https://api.mercadopago.com"

const requestTimeout = 15 * time.Second

// Config configures the gateway client.
type Config struct {
	AccessToken string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// NotificationURL is sent with payments and preferences so the gateway
	// delivers webhooks back to this deployment.
	NotificationURL string
	// SiteBaseURL builds the checkout back URLs (success/failure/pending).
	SiteBaseURL string
	HTTPClient  *http.Client
}

// Client is a thin typed wrapper over the Mercado Pago REST API.
type Client struct {
	http            *http.Client
	baseURL         string
	accessToken     string
	notificationURL string
	siteBaseURL     string
}

// NewClient validates the credentials and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		http:            httpClient,
		baseURL:         baseURL,
		accessToken:     cfg.AccessToken,
		notificationURL: cfg.NotificationURL,
		siteBaseURL:     cfg.SiteBaseURL,
	}, nil
}

// Payer identifies who is paying.
type Payer struct {
	Email     string
	FirstName string
	LastName  string
	CPF       string
}

// CreatePaymentRequest holds the input for a direct (PIX) payment.
type CreatePaymentRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Method      payment.Method
	Description string
	Payer       Payer
}

type wireIdentification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type wirePayer struct {
	Email          string              `json:"email"`
	FirstName      string              `json:"first_name,omitempty"`
	LastName       string              `json:"last_name,omitempty"`
	Identification *wireIdentification `json:"identification,omitempty"`
}

type wirePayment struct {
	TransactionAmount json.Number       `json:"transaction_amount"`
	PaymentMethodID   string            `json:"payment_method_id"`
	Description       string            `json:"description,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Payer             wirePayer         `json:"payer"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CreatePayment creates a direct payment and returns the normalized record.
// The order id doubles as the gateway idempotency key, so retrying an attempt
// with the same order id cannot double-charge.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (payment.Info, error) {
	if !req.Amount.IsPositive() {
		return payment.Info{}, errors.New("transaction amount must be positive")
	}

	body := wirePayment{
		TransactionAmount: json.Number(req.Amount.StringFixed(2)),
		PaymentMethodID:   string(req.Method),
		Description:       req.Description,
		NotificationURL:   c.notificationURL,
		Payer: wirePayer{
			Email:     req.Payer.Email,
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
		},
		Metadata: map[string]string{"order_id": req.OrderID},
	}
	if req.Payer.CPF != "" {
		body.Payer.Identification = &wireIdentification{Type: "CPF", Number: req.Payer.CPF}
	}

	data, err := c.do(ctx, http.MethodPost, "/v1/payments", body, map[string]string{
		"X-Idempotency-Key": req.OrderID,
	})
	if err != nil {
		return payment.Info{}, err
	}

	info, err := normalizePayment(data)
	if err != nil {
		return payment.Info{}, errors.Wrap(err, "normalize payment")
	}
	if info.OrderID == "" {
		info.OrderID = req.OrderID
	}
	return info, nil
}

// GetPayment fetches the current state of a payment by its gateway id.
func (c *Client) GetPayment(ctx context.Context, id string) (payment.Info, error) {
	if id == "" {
		return payment.Info{}, errors.New("payment id is required")
	}
	data, err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil, nil)
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) && gerr.StatusCode == http.StatusNotFound {
			return payment.Info{}, ErrPaymentNotFound
		}
		return payment.Info{}, err
	}
	info, err := normalizePayment(data)
	if err != nil {
		return payment.Info{}, errors.Wrap(err, "normalize payment")
	}
	return info, nil
}

// Refund is the gateway's record of a (partial) refund.
type Refund struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// RefundPayment refunds a payment. A nil amount refunds the full remaining
// value.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount *decimal.Decimal) (Refund, error) {
	if paymentID == "" {
		return Refund{}, errors.New("payment id is required")
	}
	var body any
	if amount != nil {
		if !amount.IsPositive() {
			return Refund{}, errors.New("refund amount must be positive")
		}
		body = map[string]json.Number{"amount": json.Number(amount.StringFixed(2))}
	}
	data, err := c.do(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/refunds", body, nil)
	if err != nil {
		return Refund{}, err
	}
	refund, err := normalizeRefund(data)
	if err != nil {
		return Refund{}, errors.Wrap(err, "normalize refund")
	}
	if refund.PaymentID == "" {
		refund.PaymentID = paymentID
	}
	return refund, nil
}

// PreferenceItem is one line of a Checkout PRO preference.
type PreferenceItem struct {
	Title       string
	Description string
	PictureURL  string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// CreatePreferenceRequest holds the input for a Checkout PRO preference.
type CreatePreferenceRequest struct {
	ExternalReference string
	Items             []PreferenceItem
	Payer             Payer
}

// Preference is the created Checkout PRO preference.
type Preference struct {
	ID               string `json:"preferenceId"`
	InitPoint        string `json:"initPoint"`
	SandboxInitPoint string `json:"sandboxInitPoint,omitempty"`
}

type wirePreferenceItem struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	PictureURL  string      `json:"picture_url,omitempty"`
	CategoryID  string      `json:"category_id"`
	CurrencyID  string      `json:"currency_id"`
	UnitPrice   json.Number `json:"unit_price"`
	Quantity    int         `json:"quantity"`
}

type wireBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type wirePaymentMethods struct {
	Installments int `json:"installments"`
}

type wirePreference struct {
	Items             []wirePreferenceItem `json:"items"`
	Payer             *wirePayer           `json:"payer,omitempty"`
	BackURLs          wireBackURLs         `json:"back_urls"`
	AutoReturn        string               `json:"auto_return"`
	NotificationURL   string               `json:"notification_url,omitempty"`
	PaymentMethods    wirePaymentMethods   `json:"payment_methods"`
	ExternalReference string               `json:"external_reference"`
}

// CreatePreference creates a Checkout PRO preference with redirect URLs back
// to the storefront.
func (c *Client) CreatePreference(ctx context.Context, req CreatePreferenceRequest) (Preference, error) {
	if len(req.Items) == 0 {
		return Preference{}, errors.New("preference items are required")
	}

	items := make([]wirePreferenceItem, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 || !item.UnitPrice.IsPositive() {
			return Preference{}, errors.Errorf("invalid preference item %q", item.Title)
		}
		items[i] = wirePreferenceItem{
			Title:       item.Title,
			Description: item.Description,
			PictureURL:  item.PictureURL,
			CategoryID:  "food",
			CurrencyID:  "BRL",
			UnitPrice:   json.Number(item.UnitPrice.StringFixed(2)),
			Quantity:    item.Quantity,
		}
	}

	body := wirePreference{
		Items: items,
		BackURLs: wireBackURLs{
			Success: c.siteBaseURL + "/payment/success",
			Failure: c.siteBaseURL + "/payment/failure",
			Pending: c.siteBaseURL + "/payment/pending",
		},
		AutoReturn:        "approved",
		NotificationURL:   c.notificationURL,
		PaymentMethods:    wirePaymentMethods{Installments: 12},
		ExternalReference: req.ExternalReference,
	}
	if req.Payer.Email != "" {
		body.Payer = &wirePayer{
			Email:     req.Payer.Email,
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
		}
	}

	data, err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, nil)
	if err != nil {
		return Preference{}, err
	}
	pref, err := normalizePreference(data)
	if err != nil {
		return Preference{}, errors.Wrap(err, "normalize preference")
	}
	return pref, nil
}

// do issues one API call and returns the raw response body. Non-2xx
// responses become a typed *Error carrying the upstream status and body.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &Error{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(data),
			Body:       data,
		}
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if n, convErr := strconv.Atoi(retryAfter); convErr == nil {
				gerr.RetryAfter = n
			}
		}
		return nil, gerr
	}
	return data, nil
}

// upstreamMessage pulls the human-readable error out of a gateway error
// body, falling back to a generic message.
func upstreamMessage(data []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return fmt.Sprintf("unexpected gateway response (%d bytes)", len(data))
}
