// Package payment implements the YooKassa payment gateway client: creating a
// checkout session and fetching the status of an existing payment.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/config"
	"tg_subscription_bot/internal/logging"
)

// Gateway payment statuses as reported by the provider. Any other value is
// treated as still in flight.
const (
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

const gatewayHTTPTimeout = 10 * time.Second

// newIdempotenceKey is overridable for tests.
var newIdempotenceKey = func() string {
	return uuid.NewString()
}

// Gateway is an HTTP client for the YooKassa payments API.
type Gateway struct {
	baseURL    string
	accountID  string
	secretKey  string
	returnURL  string
	httpClient *http.Client
	logger     *logrus.Entry
}

// Checkout is a created payment session: the redirect link shown to the user
// and the identifier used to query the payment later.
type Checkout struct {
	ConfirmationURL string
	PaymentID       string
}

// Info is the status of an existing payment.
type Info struct {
	PaymentID string
	Status    string
	Paid      bool
}

// Terminal reports whether the gateway considers the payment settled one way
// or the other. A non-terminal or unrecognized status means "recheck later",
// never "paid".
func (i Info) Terminal() bool {
	return i.Status == StatusSucceeded || i.Status == StatusCanceled
}

// NewGateway constructs a Gateway from the resolved configuration.
func NewGateway(cfg config.Config, logger *logrus.Entry) (*Gateway, error) {
	if cfg.YooKassaAccountID == "" || cfg.YooKassaSecretKey == "" {
		return nil, errors.New("yookassa credentials are required")
	}
	if cfg.YooKassaAPIURL == "" {
		return nil, errors.New("yookassa api url is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Gateway{
		baseURL:    cfg.YooKassaAPIURL,
		accountID:  cfg.YooKassaAccountID,
		secretKey:  cfg.YooKassaSecretKey,
		returnURL:  cfg.PaymentReturnURL,
		httpClient: &http.Client{Timeout: gatewayHTTPTimeout},
		logger:     logger,
	}, nil
}

type amountPayload struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createPaymentRequest struct {
	Amount            amountPayload `json:"amount"`
	PaymentMethodData struct {
		Type string `json:"type"`
	} `json:"payment_method_data"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Description string `json:"description"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Paid         bool   `json:"paid"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Description string `json:"description"`
}

// CreatePayment opens a checkout session for the given decimal amount and
// returns the confirmation link and payment identifier. Every call carries a
// fresh idempotence key.
func (g *Gateway) CreatePayment(ctx context.Context, amount, currency, description string) (Checkout, error) {
	if ctx == nil {
		return Checkout{}, errors.New("context is required")
	}
	if amount == "" || currency == "" {
		return Checkout{}, errors.New("amount and currency are required")
	}

	reqBody := createPaymentRequest{
		Amount:      amountPayload{Value: amount, Currency: currency},
		Description: description,
	}
	reqBody.PaymentMethodData.Type = "bank_card"
	reqBody.Confirmation.Type = "redirect"
	reqBody.Confirmation.ReturnURL = g.returnURL

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Checkout{}, fmt.Errorf("encode create payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return Checkout{}, fmt.Errorf("build create payment request: %w", err)
	}
	req.SetBasicAuth(g.accountID, g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", newIdempotenceKey())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Checkout{}, fmt.Errorf("create payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Checkout{}, fmt.Errorf("create payment: unexpected status %d", resp.StatusCode)
	}

	var body paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Checkout{}, fmt.Errorf("decode create payment response: %w", err)
	}
	if body.ID == "" || body.Confirmation.ConfirmationURL == "" {
		return Checkout{}, errors.New("create payment: incomplete gateway response")
	}

	g.logger.WithFields(logging.Fields{
		"event":      "payment_created",
		"payment_id": body.ID,
		"amount":     amount,
		"currency":   currency,
	}).Info("created checkout session")

	return Checkout{
		ConfirmationURL: body.Confirmation.ConfirmationURL,
		PaymentID:       body.ID,
	}, nil
}

// GetPayment fetches the current status of a payment.
func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (Info, error) {
	if ctx == nil {
		return Info{}, errors.New("context is required")
	}
	if paymentID == "" {
		return Info{}, errors.New("payment id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return Info{}, fmt.Errorf("build get payment request: %w", err)
	}
	req.SetBasicAuth(g.accountID, g.secretKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("get payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("get payment: unexpected status %d", resp.StatusCode)
	}

	var body paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Info{}, fmt.Errorf("decode get payment response: %w", err)
	}

	return Info{
		PaymentID: body.ID,
		Status:    body.Status,
		Paid:      body.Paid,
	}, nil
}
