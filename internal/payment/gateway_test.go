package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tg_subscription_bot/internal/config"
)

func stubIdempotenceKey(key string) func() {
	original := newIdempotenceKey
	newIdempotenceKey = func() string { return key }
	return func() { newIdempotenceKey = original }
}

func gatewayConfig(baseURL string) config.Config {
	return config.Config{
		YooKassaAccountID: "shop-1",
		YooKassaSecretKey: "secret",
		YooKassaAPIURL:    baseURL,
		PaymentReturnURL:  "https://t.me/my_subscription_bot",
	}
}

func TestNewGatewayRequiresCredentials(t *testing.T) {
	if _, err := NewGateway(config.Config{YooKassaAPIURL: "https://gateway.example"}, nil); err == nil {
		t.Fatalf("expected missing credentials to error")
	}
	if _, err := NewGateway(config.Config{YooKassaAccountID: "shop", YooKassaSecretKey: "key"}, nil); err == nil {
		t.Fatalf("expected missing api url to error")
	}
}

func TestCreatePayment(t *testing.T) {
	restore := stubIdempotenceKey("fixed-key")
	defer restore()

	var gotPath, gotIdempotenceKey string
	var gotAuthUser, gotAuthPass string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdempotenceKey = r.Header.Get("Idempotence-Key")
		gotAuthUser, gotAuthPass, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pay-123",
			"status": "pending",
			"paid":   false,
			"confirmation": map[string]interface{}{
				"confirmation_url": "https://yookassa.example/confirm/pay-123",
			},
		})
	}))
	defer server.Close()

	gateway, err := NewGateway(gatewayConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	checkout, err := gateway.CreatePayment(context.Background(), "2000", "RUB", "Оплата подписки на тариф 'Тариф 2'")
	if err != nil {
		t.Fatalf("expected create to succeed, got error: %v", err)
	}

	if checkout.PaymentID != "pay-123" {
		t.Fatalf("expected payment id pay-123, got %s", checkout.PaymentID)
	}
	if checkout.ConfirmationURL != "https://yookassa.example/confirm/pay-123" {
		t.Fatalf("unexpected confirmation url %s", checkout.ConfirmationURL)
	}
	if gotPath != "/payments" {
		t.Fatalf("expected /payments path, got %s", gotPath)
	}
	if gotIdempotenceKey != "fixed-key" {
		t.Fatalf("expected idempotence key header, got %q", gotIdempotenceKey)
	}
	if gotAuthUser != "shop-1" || gotAuthPass != "secret" {
		t.Fatalf("expected basic auth credentials, got %s/%s", gotAuthUser, gotAuthPass)
	}

	amount, ok := gotBody["amount"].(map[string]interface{})
	if !ok || amount["value"] != "2000" || amount["currency"] != "RUB" {
		t.Fatalf("unexpected amount payload %v", gotBody["amount"])
	}
	method, ok := gotBody["payment_method_data"].(map[string]interface{})
	if !ok || method["type"] != "bank_card" {
		t.Fatalf("unexpected payment method payload %v", gotBody["payment_method_data"])
	}
	confirmation, ok := gotBody["confirmation"].(map[string]interface{})
	if !ok || confirmation["type"] != "redirect" || confirmation["return_url"] != "https://t.me/my_subscription_bot" {
		t.Fatalf("unexpected confirmation payload %v", gotBody["confirmation"])
	}
	if gotBody["description"] != "Оплата подписки на тариф 'Тариф 2'" {
		t.Fatalf("unexpected description %v", gotBody["description"])
	}
}

func TestCreatePaymentRejectsIncompleteResponse(t *testing.T) {
	restore := stubIdempotenceKey("fixed-key")
	defer restore()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pay-123",
			"status": "pending",
		})
	}))
	defer server.Close()

	gateway, err := NewGateway(gatewayConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	if _, err := gateway.CreatePayment(context.Background(), "2000", "RUB", "test"); err == nil {
		t.Fatalf("expected incomplete response to error")
	}
}

func TestCreatePaymentRejectsBadStatus(t *testing.T) {
	restore := stubIdempotenceKey("fixed-key")
	defer restore()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gateway, err := NewGateway(gatewayConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	if _, err := gateway.CreatePayment(context.Background(), "2000", "RUB", "test"); err == nil {
		t.Fatalf("expected non-200 status to error")
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	gateway, err := NewGateway(gatewayConfig("https://gateway.example"), nil)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	if _, err := gateway.CreatePayment(context.Background(), "", "RUB", "test"); err == nil {
		t.Fatalf("expected missing amount to error")
	}
	if _, err := gateway.CreatePayment(context.Background(), "2000", "", "test"); err == nil {
		t.Fatalf("expected missing currency to error")
	}
}

func TestGetPayment(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pay-123",
			"status": "succeeded",
			"paid":   true,
		})
	}))
	defer server.Close()

	gateway, err := NewGateway(gatewayConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	info, err := gateway.GetPayment(context.Background(), "pay-123")
	if err != nil {
		t.Fatalf("expected fetch to succeed, got error: %v", err)
	}

	if gotPath != "/payments/pay-123" {
		t.Fatalf("expected payment path, got %s", gotPath)
	}
	if info.PaymentID != "pay-123" || info.Status != StatusSucceeded || !info.Paid {
		t.Fatalf("unexpected info %+v", info)
	}
	if !info.Terminal() {
		t.Fatalf("expected succeeded payment to be terminal")
	}
}

func TestGetPaymentRequiresID(t *testing.T) {
	gateway, err := NewGateway(gatewayConfig("https://gateway.example"), nil)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	if _, err := gateway.GetPayment(context.Background(), ""); err == nil {
		t.Fatalf("expected missing payment id to error")
	}
}

func TestInfoTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusSucceeded, true},
		{StatusCanceled, true},
		{"pending", false},
		{"waiting_for_capture", false},
		{"", false},
	}

	for _, tc := range tests {
		info := Info{Status: tc.status}
		if got := info.Terminal(); got != tc.want {
			t.Fatalf("Terminal() for %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}
