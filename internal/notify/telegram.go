package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	maxResponseBytes = 1 << 20
)

// Client is a thin HTTP wrapper around the Telegram Bot API, covering
// the two methods this service needs: sending notifications and
// checking channel membership.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIResponse is the generic envelope returned by the Bot API.
type APIResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

// APIError is a Bot API level failure (ok=false in the envelope).
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// ChatMember is the subset of the Bot API chat member object the
// verifier inspects.
type ChatMember struct {
	Status string `json:"status"`
	User   struct {
		ID       int64  `json:"id"`
		Username string `json:"username,omitempty"`
	} `json:"user"`
}

func do[T any](ctx context.Context, c *Client, method string, payload any) (T, error) {
	var zero T

	data, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return zero, fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Wrap without the raw error text so the token-bearing URL
		// never lands in logs; Unwrap keeps it reachable.
		return zero, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return zero, fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var apiResp APIResponse[T]
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return zero, fmt.Errorf("telegram: decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return zero, &APIError{Code: apiResp.ErrorCode, Description: apiResp.Description}
	}
	return apiResp.Result, nil
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type getChatMemberRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

// SendMessage sends a plain text message to the given chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := do[json.RawMessage](ctx, c, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text})
	return err
}

// GetChatMember reports a user's membership in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (ChatMember, error) {
	return do[ChatMember](ctx, c, "getChatMember", getChatMemberRequest{ChatID: chatID, UserID: userID})
}

// TelegramNotifier delivers notifications through the Bot API.
type TelegramNotifier struct {
	client *Client
}

func NewTelegramNotifier(client *Client) *TelegramNotifier {
	return &TelegramNotifier{client: client}
}

func (n *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	chatID, err := strconv.ParseInt(msg.Recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: recipient %q is not a chat id", msg.Recipient)
	}
	return n.client.SendMessage(ctx, chatID, msg.Text)
}

// TelegramVerifier checks channel ownership through getChatMember: the
// registered owner must be the channel's creator or an administrator.
type TelegramVerifier struct {
	client *Client
}

func NewTelegramVerifier(client *Client) *TelegramVerifier {
	return &TelegramVerifier{client: client}
}

func (v *TelegramVerifier) VerifyAdmin(ctx context.Context, ch domain.Channel) (bool, error) {
	ownerID, err := strconv.ParseInt(ch.OwnerID, 10, 64)
	if err != nil {
		// Owner did not register with a Telegram id; the check cannot
		// pass, but that is a verification outcome, not a failure.
		return false, nil
	}

	member, err := v.client.GetChatMember(ctx, ch.TelegramID, ownerID)
	if err != nil {
		return false, err
	}
	return member.Status == "creator" || member.Status == "administrator", nil
}
