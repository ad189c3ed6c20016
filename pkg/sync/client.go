// Package sync provides a polling client for the conversations API: a REST
// client plus pollers that keep a conversation list and a single open
// thread fresh without any push channel. The server response is always
// authoritative; the client never merges or diffs.
package sync

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradepost/pkg/models"
)

// APIError carries the HTTP status and envelope error message of a failed
// request.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is a REST client for the conversations API acting as one user.
type Client struct {
	baseURL string
	apiKey  string
	userID  string
	// signature is the precomputed HMAC of userID; backend callers may
	// leave it empty and rely on the X-User-ID header
	signature string
	http      *http.Client
}

// NewClient builds a client for baseURL acting as userID. signingSecret is
// the shared secret used to sign the user identity; pass "" when the API
// key alone is trusted (backend keys).
func NewClient(baseURL, apiKey, userID, signingSecret string) *Client {
	var sig string
	if signingSecret != "" {
		mac := hmac.New(sha256.New, []byte(signingSecret))
		mac.Write([]byte(userID))
		sig = hex.EncodeToString(mac.Sum(nil))
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		userID:    userID,
		signature: sig,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// UserID returns the identity the client acts as.
func (c *Client) UserID() string { return c.userID }

// envelope mirrors the API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Count   *int            `json:"count"`
}

// do issues a request and decodes the envelope's data field into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-User-ID", c.userID)
	if c.signature != "" {
		req.Header.Set("X-User-Signature", c.signature)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// ListConversations fetches the acting user's conversations, newest
// activity first.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationView, error) {
	var out []models.ConversationView
	err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out)
	return out, err
}

// GetConversation fetches one conversation the acting user participates in.
func (c *Client) GetConversation(ctx context.Context, id string) (models.ConversationView, error) {
	var out models.ConversationView
	err := c.do(ctx, http.MethodGet, "/v1/conversations/"+id, nil, &out)
	return out, err
}

// CreateConversation finds or creates the conversation with receiver about
// itemID (optional) and sends the initial message. The server responds with
// the populated conversation view plus the created message.
func (c *Client) CreateConversation(ctx context.Context, receiver, itemID, content string) (models.ConversationView, models.Message, error) {
	req := map[string]string{"receiver_id": receiver, "initial_message": content}
	if itemID != "" {
		req["item_id"] = itemID
	}
	var out struct {
		Conversation models.ConversationView `json:"conversation"`
		Message      models.Message          `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/conversations", req, &out)
	return out.Conversation, out.Message, err
}

// ListMessages fetches a conversation's messages oldest first. The server
// marks everything not authored by the acting user as read.
func (c *Client) ListMessages(ctx context.Context, convID string) ([]models.Message, error) {
	var out []models.Message
	err := c.do(ctx, http.MethodGet, "/v1/messages/conversation/"+convID, nil, &out)
	return out, err
}

// MarkRead explicitly marks a conversation read and reports how many
// messages changed.
func (c *Client) MarkRead(ctx context.Context, convID string) (int, error) {
	var out struct {
		Modified int `json:"modified_count"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/conversations/"+convID+"/read", nil, &out)
	return out.Modified, err
}

// SendMessage appends a message to a conversation the acting user
// participates in.
func (c *Client) SendMessage(ctx context.Context, convID, content string) (models.Message, error) {
	req := map[string]string{"conversation_id": convID, "content": content}
	var out models.Message
	err := c.do(ctx, http.MethodPost, "/v1/messages", req, &out)
	return out, err
}
