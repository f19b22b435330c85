package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookDispatchesMessageUpdate(t *testing.T) {
	sink := &recordingSink{}
	handler := NewWebhookHandler(sink, nil)

	body := `{"update_id":100,"message":{"message_id":10,"date":1700000000,"chat":{"id":42},"from":{"id":7,"username":"alice"},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(sink.events))
	}

	event := sink.events[0]
	if event.ChatID != 42 || event.UserID != 7 || event.Text != "/start" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestWebhookAcceptsMessagelessUpdate(t *testing.T) {
	sink := &recordingSink{}
	handler := NewWebhookHandler(sink, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":100}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for message-less update, got %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestWebhookAcceptsMalformedBody(t *testing.T) {
	sink := &recordingSink{}
	handler := NewWebhookHandler(sink, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id": not-json`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed body, got %d", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	handler := NewWebhookHandler(&recordingSink{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}
