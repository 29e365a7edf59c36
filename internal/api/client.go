package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"perepiska/internal/models"

	"github.com/c-pro/geche"
)

// Client is the request/response side of the core: durable state changes go
// through here, realtime notifications go through the ws session. Every call
// after login attaches the session credential; its absence or rejection is an
// authentication failure, surfaced distinctly and never retried.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu    sync.RWMutex
	creds models.Credentials

	// Resolved conversation ids, keyed by peer id. find-or-create is
	// idempotent server-side, so a hit saves the round trip.
	conversations geche.Geche[string, string]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		httpc:         &http.Client{Timeout: timeout},
		conversations: geche.NewMapCache[string, string](),
	}
}

// Credentials returns the credential issued by the last successful
// Login or Register.
func (c *Client) Credentials() models.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) setCredentials(creds models.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

func (c *Client) Login(ctx context.Context, username, password string) (models.Credentials, error) {
	return c.authenticate(ctx, "/api/auth/login", username, password)
}

func (c *Client) Register(ctx context.Context, username, password string) (models.Credentials, error) {
	return c.authenticate(ctx, "/api/auth/register", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (models.Credentials, error) {
	var creds models.Credentials
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}

	if err := c.call(ctx, http.MethodPost, path, req, &creds); err != nil {
		return models.Credentials{}, err
	}

	c.setCredentials(creds)
	return creds, nil
}

// ResolveConversation issues the find-or-create request for the pairing with
// peerID. Repeated calls for the same pair return the same id.
func (c *Client) ResolveConversation(ctx context.Context, peerID string) (string, error) {
	if id, err := c.conversations.Get(peerID); err == nil {
		return id, nil
	}

	req := struct {
		RecipientID string `json:"recipientId"`
	}{peerID}

	var conv models.Conversation
	if err := c.call(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return "", fmt.Errorf("resolving conversation: %w", err)
	}

	c.conversations.Set(peerID, conv.ID)
	return conv.ID, nil
}

// ListMessages returns the history page for a conversation in
// chronological order, as served.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	path := "/api/conversations/" + conversationID + "/messages"
	if err := c.call(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return messages, nil
}

// CreateMessage persists a new message and returns the canonical record with
// the server-assigned id and timestamp.
func (c *Client) CreateMessage(ctx context.Context, conversationID, text string) (models.Message, error) {
	req := struct {
		Text string `json:"text"`
	}{text}

	var msg models.Message
	path := "/api/conversations/" + conversationID + "/messages"
	if err := c.call(ctx, http.MethodPost, path, req, &msg); err != nil {
		return models.Message{}, fmt.Errorf("creating message: %w", err)
	}
	return msg, nil
}

// DeleteMessage persists a removal. Callers treat failure as a logged,
// tolerated inconsistency rather than rolling the optimistic removal back.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	path := "/api/conversations/" + conversationID + "/messages/" + messageID
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

// ListPeers returns all known peers with their last-message previews,
// most recent first.
func (c *Client) ListPeers(ctx context.Context) ([]models.Peer, error) {
	var peers []models.Peer
	if err := c.call(ctx, http.MethodGet, "/api/users", nil, &peers); err != nil {
		return nil, fmt.Errorf("listing peers: %w", err)
	}
	return peers, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Credentials().Token; token != "" {
		req.Header.Set("x-auth-token", token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return models.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
