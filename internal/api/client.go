// ABOUTME: HTTP client for the Parlor backend REST and streaming endpoints
// ABOUTME: Handles bearer auth, JSON round trips and the streamed reply body

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/parlorhq/parlor-go/internal/auth"
)

// maxErrorBody caps how much of an error response body is retained for
// error messages.
const maxErrorBody = 2048

// Client talks to the Parlor backend. All methods attach the bearer token
// from the configured TokenSource; token resolution failures surface before
// any network call is made.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenSource
	logger  *slog.Logger
}

// New creates a backend client. The http.Client is intentionally created
// without a timeout: streamed replies and preview generation can run for
// minutes, and cancellation is handled through request contexts instead.
func New(baseURL string, tokens auth.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		logger:  logger.With("component", "api"),
	}
}

// GetAgent fetches agent metadata by handle.
func (c *Client) GetAgent(ctx context.Context, handle string) (*Agent, error) {
	var agent Agent
	path := "/api/agents/" + url.PathEscape(handle)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &agent); err != nil {
		return nil, fmt.Errorf("fetching agent %q: %w", handle, err)
	}
	return &agent, nil
}

// CreateOrGetConversation resolves the conversation for the given target,
// creating it on first use. The server keys creation by (requester, target),
// so repeating the call returns the same conversation.
func (c *Client) CreateOrGetConversation(ctx context.Context, targetID, chatType string) (*Conversation, error) {
	req := struct {
		TargetID string `json:"target_id"`
		ChatType string `json:"chat_type"`
	}{TargetID: targetID, ChatType: chatType}

	var conv Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}
	return &conv, nil
}

// GetMessages returns the ordered transcript for a conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	var resp struct {
		Messages []ChatMessage `json:"messages"`
	}
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	return resp.Messages, nil
}

// StreamReply posts a new user message and returns the response body
// carrying the chunked, newline-delimited reply event stream. The caller
// owns the body and must close it; cancelling ctx aborts the stream.
func (c *Client) StreamReply(ctx context.Context, conversationID, content, clientMessageID string) (io.ReadCloser, error) {
	if clientMessageID == "" {
		clientMessageID = uuid.New().String()
	}
	body := struct {
		Content         string `json:"content"`
		ClientMessageID string `json:"client_message_id"`
	}{Content: content, ClientMessageID: clientMessageID}

	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readStatusError(resp)
	}
	return resp.Body, nil
}

// SetConversationPinned updates the pinned flag on a conversation. Used by
// the optimistic pin toggle; the caller handles rollback on failure.
func (c *Client) SetConversationPinned(ctx context.Context, conversationID string, pinned bool) error {
	body := struct {
		Pinned bool `json:"pinned"`
	}{Pinned: pinned}

	path := "/api/conversations/" + url.PathEscape(conversationID) + "/pin"
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("updating pin state: %w", err)
	}
	return nil
}

// GeneratePreview requests a new AI-authored content draft.
func (c *Client) GeneratePreview(ctx context.Context, params GenerateParams) (*GenerationPreview, error) {
	var preview GenerationPreview
	if err := c.doJSON(ctx, http.MethodPost, "/api/previews", params, &preview); err != nil {
		return nil, fmt.Errorf("generating preview: %w", err)
	}
	return &preview, nil
}

// ConfirmPreview consumes a preview, optionally overriding generated fields.
// A not-found response maps to ErrPreviewGone so callers can apply the
// already-consumed reclassification.
func (c *Client) ConfirmPreview(ctx context.Context, previewID string, edits *PreviewEdits) error {
	// A nil *PreviewEdits must reach doJSON as a nil interface, or an
	// edit-free confirm would carry a literal "null" body.
	var in any
	if edits != nil {
		in = edits
	}

	path := "/api/previews/" + url.PathEscape(previewID) + "/confirm"
	err := c.doJSON(ctx, http.MethodPost, path, in, nil)
	if err != nil && IsNotFound(err) {
		return fmt.Errorf("confirming preview %s: %w", previewID, ErrPreviewGone)
	}
	if err != nil {
		return fmt.Errorf("confirming preview %s: %w", previewID, err)
	}
	return nil
}

// CancelPreview releases an unconsumed preview.
func (c *Client) CancelPreview(ctx context.Context, previewID string) error {
	path := "/api/previews/" + url.PathEscape(previewID) + "/cancel"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("cancelling preview %s: %w", previewID, err)
	}
	return nil
}

// newRequest builds an authenticated request with an optional JSON body.
func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// doJSON performs a request and decodes a JSON response into out (when out
// is non-nil). Non-2xx responses become *StatusError.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readStatusError drains a non-success response into a StatusError.
func readStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code: resp.StatusCode,
		Body: strings.TrimSpace(string(data)),
	}
}
