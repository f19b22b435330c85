package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("   ", nil); err == nil {
		t.Fatalf("expected empty base url to error")
	}
}

func TestGetUpdatesFirstCallOmitsOffset(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": []interface{}{},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	updates, err := client.GetUpdates(context.Background(), 0)
	if err != nil {
		t.Fatalf("expected fetch to succeed, got error: %v", err)
	}

	if len(updates) != 0 {
		t.Fatalf("expected empty batch, got %d updates", len(updates))
	}
	if _, has := gotQuery["offset"]; has {
		t.Fatalf("expected first fetch to omit offset, got query %v", gotQuery)
	}
	if got := gotQuery["timeout"]; len(got) != 1 || got[0] != "30" {
		t.Fatalf("expected long-poll timeout 30, got %v", gotQuery["timeout"])
	}
}

func TestGetUpdatesPassesOffsetAndDecodesBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "101" {
			t.Errorf("expected offset 101, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": []map[string]interface{}{
				{
					"update_id": 101,
					"message": map[string]interface{}{
						"message_id": 10,
						"date":       1700000000,
						"chat":       map[string]interface{}{"id": 42},
						"from":       map[string]interface{}{"id": 7, "username": "alice"},
						"text":       "/start",
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	updates, err := client.GetUpdates(context.Background(), 101)
	if err != nil {
		t.Fatalf("expected fetch to succeed, got error: %v", err)
	}

	if len(updates) != 1 {
		t.Fatalf("expected one update, got %d", len(updates))
	}
	if updates[0].ID != 101 {
		t.Fatalf("expected update id 101, got %d", updates[0].ID)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/start" {
		t.Fatalf("expected decoded message, got %+v", updates[0].Message)
	}
}

func TestGetUpdatesRejectsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"description": "Unauthorized",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.GetUpdates(context.Background(), 0); err == nil {
		t.Fatalf("expected ok:false response to error")
	}
}

func TestGetUpdatesRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.GetUpdates(context.Background(), 0); err == nil {
		t.Fatalf("expected non-200 status to error")
	}
}

func TestSendMessageEncodesForm(t *testing.T) {
	var gotPath, gotContentType string
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	err = client.SendMessage(context.Background(), Outbound{
		ChatID:    42,
		Text:      "Привет!",
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard: [][]models.KeyboardButton{
				{{Text: "Мой профиль"}},
			},
			ResizeKeyboard: true,
		},
	})
	if err != nil {
		t.Fatalf("expected send to succeed, got error: %v", err)
	}

	if gotPath != "/sendMessage" {
		t.Fatalf("expected sendMessage path, got %s", gotPath)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %s", gotContentType)
	}
	if got := gotForm["chat_id"]; len(got) != 1 || got[0] != "42" {
		t.Fatalf("expected chat_id 42, got %v", gotForm["chat_id"])
	}
	if got := gotForm["text"]; len(got) != 1 || got[0] != "Привет!" {
		t.Fatalf("expected text field, got %v", gotForm["text"])
	}
	if got := gotForm["parse_mode"]; len(got) != 1 || got[0] != string(models.ParseModeHTML) {
		t.Fatalf("expected parse_mode HTML, got %v", gotForm["parse_mode"])
	}

	markupRaw := gotForm["reply_markup"]
	if len(markupRaw) != 1 {
		t.Fatalf("expected reply_markup field, got %v", markupRaw)
	}
	var markup models.ReplyKeyboardMarkup
	if err := json.Unmarshal([]byte(markupRaw[0]), &markup); err != nil {
		t.Fatalf("failed to decode reply markup: %v", err)
	}
	if !markup.ResizeKeyboard || len(markup.Keyboard) != 1 || markup.Keyboard[0][0].Text != "Мой профиль" {
		t.Fatalf("unexpected reply markup %+v", markup)
	}
}

func TestSendMessageOmitsOptionalFields(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if err := client.SendMessage(context.Background(), Outbound{ChatID: 42, Text: "ok"}); err != nil {
		t.Fatalf("expected send to succeed, got error: %v", err)
	}

	if _, has := gotForm["reply_markup"]; has {
		t.Fatalf("expected no reply_markup field, got %v", gotForm)
	}
	if _, has := gotForm["parse_mode"]; has {
		t.Fatalf("expected no parse_mode field, got %v", gotForm)
	}
}

func TestSendMessageRequiresChatID(t *testing.T) {
	client, err := NewClient("https://api.telegram.org/bot123", nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if err := client.SendMessage(context.Background(), Outbound{Text: "hi"}); err == nil {
		t.Fatalf("expected missing chat id to error")
	}
}

func TestDeleteMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if err := client.DeleteMessage(context.Background(), 42, 10); err != nil {
		t.Fatalf("expected delete to succeed, got error: %v", err)
	}

	if gotPath != "/deleteMessage" {
		t.Fatalf("expected deleteMessage path, got %s", gotPath)
	}
	if gotBody["chat_id"] != float64(42) || gotBody["message_id"] != float64(10) {
		t.Fatalf("unexpected payload %v", gotBody)
	}
}

func TestDeleteMessageProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"description": "message to delete not found",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if err := client.DeleteMessage(context.Background(), 42, 10); err == nil {
		t.Fatalf("expected provider rejection to error")
	}
}
