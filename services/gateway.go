package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway statuses as normalized from the processor's vocabulary.
const (
	GatewayApproved = "approved"
	GatewayPending  = "pending"
	GatewayRejected = "rejected"
	GatewayRefunded = "refunded"
)

// ErrGatewayTimeout marks a create/get call that timed out before the
// processor answered. Callers must treat the payment as still pending and
// retryable, not as failed.
var ErrGatewayTimeout = errors.New("payment gateway timed out")

type PaymentRequest struct {
	Amount            decimal.Decimal
	Description       string
	PayerEmail        string
	ExternalReference string
}

type GatewayResult struct {
	ExternalID  string
	Status      string
	RedirectURL string
	Raw         json.RawMessage
}

// Gateway is the payment processor capability the contract/payment flow
// depends on. The HTTP implementation below talks to MercadoPago; tests
// install a stub.
type Gateway interface {
	CreatePayment(req PaymentRequest) (*GatewayResult, error)
	GetPayment(externalID string) (*GatewayResult, error)
	RefundPayment(externalID string) (*GatewayResult, error)
}

// PaymentGateway is the process-wide gateway client, set at startup.
var PaymentGateway Gateway

func InitializeGateway() {
	PaymentGateway = &mercadoPagoGateway{
		baseURL: gatewayBaseURL(),
		token:   os.Getenv("PAYMENT_GATEWAY_TOKEN"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func gatewayBaseURL() string {
	if url := os.Getenv("PAYMENT_GATEWAY_URL"); url != "" {
		return url
	}
	return "https://api.mercadopago.com"
}

type mercadoPagoGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

type mpPreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	Payer             mpPayer            `json:"payer"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
}

type mpPayer struct {
	Email string `json:"email"`
}

type mpPreferenceResponse struct {
	ID              string `json:"id"`
	InitPoint       string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type mpPaymentResponse struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
}

// CreatePayment creates a checkout preference. The processor answers with a
// redirect URL; settlement confirmation arrives later through the webhook.
func (g *mercadoPagoGateway) CreatePayment(req PaymentRequest) (*GatewayResult, error) {
	if g.token == "" {
		return nil, errors.New("payment gateway token not configured")
	}
	if req.PayerEmail == "" {
		return nil, errors.New("payer email is required")
	}
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}

	body := mpPreferenceRequest{
		Items: []mpPreferenceItem{{
			Title:      req.Description,
			Quantity:   1,
			UnitPrice:  req.Amount.InexactFloat64(),
			CurrencyID: "COP",
		}},
		Payer:             mpPayer{Email: req.PayerEmail},
		ExternalReference: req.ExternalReference,
		NotificationURL:   os.Getenv("PAYMENT_WEBHOOK_URL"),
	}

	raw, err := g.post("/checkout/preferences", body)
	if err != nil {
		return nil, err
	}

	var pref mpPreferenceResponse
	if err := json.Unmarshal(raw, &pref); err != nil {
		return nil, fmt.Errorf("decode preference response: %w", err)
	}

	redirect := pref.InitPoint
	if pref.SandboxInitPoint != "" {
		redirect = pref.SandboxInitPoint
	}

	return &GatewayResult{
		ExternalID:  pref.ID,
		Status:      GatewayPending,
		RedirectURL: redirect,
		Raw:         raw,
	}, nil
}

// GetPayment fetches the settled state of a payment, used by the webhook to
// reconcile.
func (g *mercadoPagoGateway) GetPayment(externalID string) (*GatewayResult, error) {
	raw, err := g.get("/v1/payments/" + externalID)
	if err != nil {
		return nil, err
	}

	var payment mpPaymentResponse
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}

	return &GatewayResult{
		ExternalID: payment.ID.String(),
		Status:     normalizeStatus(payment.Status),
		Raw:        raw,
	}, nil
}

func (g *mercadoPagoGateway) RefundPayment(externalID string) (*GatewayResult, error) {
	raw, err := g.post("/v1/payments/"+externalID+"/refunds", struct{}{})
	if err != nil {
		return nil, err
	}
	return &GatewayResult{ExternalID: externalID, Status: GatewayRefunded, Raw: raw}, nil
}

func normalizeStatus(s string) string {
	switch s {
	case "approved":
		return GatewayApproved
	case "rejected", "cancelled":
		return GatewayRejected
	case "refunded", "charged_back":
		return GatewayRefunded
	default:
		return GatewayPending
	}
}

func (g *mercadoPagoGateway) post(path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", g.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	return g.do(req)
}

func (g *mercadoPagoGateway) get(path string) (json.RawMessage, error) {
	req, err := http.NewRequest("GET", g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	return g.do(req)
}

func (g *mercadoPagoGateway) do(req *http.Request) (json.RawMessage, error) {
	res, err := g.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrGatewayTimeout
		}
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message != "" {
			return nil, fmt.Errorf("gateway error: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("gateway returned status %d", res.StatusCode)
	}

	return raw, nil
}
