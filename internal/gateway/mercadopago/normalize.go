package mercadopago

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/vzdolci/storefront/internal/domain/payment"
)

// The gateway is inconsistent about field naming: the payments API speaks
// snake_case while some callback payloads arrive camelCase. The normalizers
// below accept both spellings and ignore everything they do not know.

type rawPayment struct {
	id           string
	status       string
	methodID     string
	typeID       string
	amount       decimal.Decimal
	currency     string
	qrCode       string
	qrCodeBase64 string
	createdAt    time.Time
	expiresAt    time.Time
	orderID      string
}

// normalizePayment turns a gateway payment body into a validated Info.
func normalizePayment(data []byte) (payment.Info, error) {
	var raw rawPayment

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id", "paymentId", "payment_id":
			return decodeScalar(d, &raw.id)
		case "status":
			return decodeScalar(d, &raw.status)
		case "payment_method_id", "paymentMethod", "method":
			return decodeScalar(d, &raw.methodID)
		case "payment_type_id":
			return decodeScalar(d, &raw.typeID)
		case "transaction_amount", "amount":
			return decodeDecimal(d, &raw.amount)
		case "currency_id", "currency":
			return decodeScalar(d, &raw.currency)
		case "qr_code", "qrCode":
			return decodeScalar(d, &raw.qrCode)
		case "qr_code_base64", "qrCodeBase64":
			return decodeScalar(d, &raw.qrCodeBase64)
		case "date_created", "createdAt":
			return decodeTime(d, &raw.createdAt)
		case "date_of_expiration", "expiresAt":
			return decodeTime(d, &raw.expiresAt)
		case "external_reference", "externalReference":
			return decodeScalar(d, &raw.orderID)
		case "point_of_interaction":
			return decodePointOfInteraction(d, &raw)
		case "metadata":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "order_id", "orderId":
					var orderID string
					if err := decodeScalar(d, &orderID); err != nil {
						return err
					}
					if raw.orderID == "" {
						raw.orderID = orderID
					}
					return nil
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return payment.Info{}, errors.Wrap(err, "decode payment body")
	}

	if raw.status == "" {
		raw.status = string(payment.StatusPending)
	}
	status, err := payment.ParseStatus(raw.status)
	if err != nil {
		return payment.Info{}, err
	}

	// Card payments report the brand in payment_method_id and the actual
	// method in payment_type_id.
	method, err := payment.ParseMethod(raw.methodID)
	if err != nil && raw.typeID != "" {
		method, err = payment.ParseMethod(raw.typeID)
	}
	if err != nil {
		return payment.Info{}, err
	}

	return payment.New(payment.Params{
		PaymentID:    raw.id,
		Status:       status,
		Method:       method,
		Amount:       raw.amount,
		Currency:     raw.currency,
		QRCode:       raw.qrCode,
		QRCodeBase64: raw.qrCodeBase64,
		CreatedAt:    raw.createdAt,
		ExpiresAt:    raw.expiresAt,
		OrderID:      raw.orderID,
	})
}

// decodePointOfInteraction digs the PIX QR codes out of
// point_of_interaction.transaction_data.
func decodePointOfInteraction(d *jx.Decoder, raw *rawPayment) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "transaction_data" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "qr_code":
				return decodeScalar(d, &raw.qrCode)
			case "qr_code_base64":
				return decodeScalar(d, &raw.qrCodeBase64)
			default:
				return d.Skip()
			}
		})
	})
}

func normalizeRefund(data []byte) (Refund, error) {
	var refund Refund
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return decodeScalar(d, &refund.ID)
		case "payment_id", "paymentId":
			return decodeScalar(d, &refund.PaymentID)
		case "amount":
			return decodeDecimal(d, &refund.Amount)
		case "status":
			return decodeScalar(d, &refund.Status)
		default:
			return d.Skip()
		}
	}); err != nil {
		return Refund{}, errors.Wrap(err, "decode refund body")
	}
	if refund.ID == "" {
		return Refund{}, errors.New("refund id missing from response")
	}
	return refund, nil
}

func normalizePreference(data []byte) (Preference, error) {
	var pref Preference
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return decodeScalar(d, &pref.ID)
		case "init_point", "initPoint":
			return decodeScalar(d, &pref.InitPoint)
		case "sandbox_init_point", "sandboxInitPoint":
			return decodeScalar(d, &pref.SandboxInitPoint)
		default:
			return d.Skip()
		}
	}); err != nil {
		return Preference{}, errors.Wrap(err, "decode preference body")
	}
	if pref.ID == "" || pref.InitPoint == "" {
		return Preference{}, errors.New("preference id or init point missing from response")
	}
	return pref, nil
}

// decodeScalar reads a string, number or null into dst as text. Payment ids
// in particular arrive as numbers on some endpoints and strings on others.
func decodeScalar(d *jx.Decoder, dst *string) error {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		*dst = s
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		*dst = n.String()
		return nil
	case jx.Null:
		return d.Null()
	default:
		return d.Skip()
	}
}

func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	var text string
	if err := decodeScalar(d, &text); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return errors.Wrap(err, "parse amount")
	}
	*dst = value
	return nil
}

func decodeTime(d *jx.Decoder, dst *time.Time) error {
	var text string
	if err := decodeScalar(d, &text); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return errors.Wrap(err, "parse timestamp")
	}
	*dst = t
	return nil
}
