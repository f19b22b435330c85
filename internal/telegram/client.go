package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_subscription_bot/internal/logging"
)

const (
	// pollWaitSeconds is the provider-side long-poll wait budget.
	pollWaitSeconds = 30
	// pollHTTPTimeout bounds the whole long-poll round trip; it must exceed
	// the provider wait so an idle poll is not cut short locally.
	pollHTTPTimeout = 40 * time.Second
	// sendHTTPTimeout bounds every non-poll provider call.
	sendHTTPTimeout = 10 * time.Second
)

// Client talks to the Telegram Bot API over HTTP. The base URL already
// carries the bot token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient constructs a provider API client for the given base URL.
func NewClient(baseURL string, logger *logrus.Entry) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("telegram api base url is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// GetUpdates issues one long-poll fetch. A zero offset omits the offset
// parameter (first call); otherwise offset is the next update id to request.
// An empty batch is a normal outcome of an idle poll.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	params := url.Values{}
	params.Set("timeout", strconv.Itoa(pollWaitSeconds))
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}

	callCtx, cancel := context.WithTimeout(ctx, pollHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build getUpdates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates: provider rejected request: %s", body.Description)
	}

	var updates []models.Update
	if len(body.Result) > 0 {
		if err := json.Unmarshal(body.Result, &updates); err != nil {
			return nil, fmt.Errorf("decode updates: %w", err)
		}
	}

	return updates, nil
}

// SendMessage delivers one outbound message as a form-encoded sendMessage
// call. Markup descriptors are JSON-encoded into the reply_markup field.
func (c *Client) SendMessage(ctx context.Context, msg Outbound) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if msg.ChatID == 0 {
		return errors.New("chat_id is required")
	}

	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(msg.ChatID, 10))
	form.Set("text", msg.Text)
	if msg.ReplyMarkup != nil {
		markup, err := json.Marshal(msg.ReplyMarkup)
		if err != nil {
			return fmt.Errorf("encode reply markup: %w", err)
		}
		form.Set("reply_markup", string(markup))
	}
	if msg.ParseMode != "" {
		form.Set("parse_mode", string(msg.ParseMode))
	}

	callCtx, cancel := context.WithTimeout(ctx, sendHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/sendMessage", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendMessage: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode sendMessage response: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("sendMessage: provider rejected request: %s", body.Description)
	}

	c.logger.WithFields(logging.Fields{
		"event":   "message_sent",
		"chat_id": msg.ChatID,
	}).Debug("sent message")

	return nil
}

// DeleteMessage removes a previously sent message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	if err != nil {
		return fmt.Errorf("encode deleteMessage payload: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, sendHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/deleteMessage", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("build deleteMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleteMessage: %w", err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode deleteMessage response: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("deleteMessage: provider rejected request: %s", body.Description)
	}

	return nil
}
