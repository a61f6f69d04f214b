// Package client is the Go client for the board service: a thin HTTP
// wrapper around the ordering endpoints, a server-sent event listener, and
// the drag state machine that keeps a local board projection in sync with
// server truth.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"slateboard/domain"
)

const defaultTimeout = 10 * time.Second

// Client calls the board service HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the service at baseURL authenticating with the
// given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FetchBoard retrieves the authoritative board snapshot.
func (c *Client) FetchBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	var board domain.Board
	if err := c.do(ctx, http.MethodGet, "/api/boards/"+boardID, nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// MoveCard reparents a card and returns the server-assigned position at the
// end of the target list.
func (c *Client) MoveCard(ctx context.Context, cardID, listID string) (int, error) {
	var resp struct {
		OK       bool `json:"ok"`
		Position int  `json:"position"`
	}
	err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID+"/move",
		map[string]string{"listId": listID}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Position, nil
}

// ReorderCards submits the complete final order of a list's cards.
func (c *Client) ReorderCards(ctx context.Context, listID string, cardIDs []string) error {
	return c.do(ctx, http.MethodPut, "/api/lists/"+listID+"/cards/reorder",
		map[string][]string{"cardIds": cardIDs}, nil)
}

// ReorderLists submits the complete final order of a board's lists.
func (c *Client) ReorderLists(ctx context.Context, boardID string, listIDs []string) error {
	return c.do(ctx, http.MethodPut, "/api/boards/"+boardID+"/lists/reorder",
		map[string][]string{"listIds": listIDs}, nil)
}

// SetCardDueDate updates a card's due date, or clears it when due is nil.
func (c *Client) SetCardDueDate(ctx context.Context, cardID string, due *time.Time) error {
	return c.do(ctx, http.MethodPatch, "/api/cards/"+cardID+"/due-date",
		map[string]*time.Time{"dueDate": due}, nil)
}

// Notifications lists the caller's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]domain.Notification, error) {
	var notifications []domain.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+notificationID+"/read", nil, nil)
}

// JoinBoard subscribes an open stream connection to a board's events.
func (c *Client) JoinBoard(ctx context.Context, connectionID, boardID string) error {
	return c.do(ctx, http.MethodPost, "/api/stream/"+connectionID+"/events",
		domain.SubscriptionRequest{Event: domain.EventJoinBoard, BoardID: boardID}, nil)
}

// LeaveBoard unsubscribes an open stream connection from a board.
func (c *Client) LeaveBoard(ctx context.Context, connectionID, boardID string) error {
	return c.do(ctx, http.MethodPost, "/api/stream/"+connectionID+"/events",
		domain.SubscriptionRequest{Event: domain.EventLeaveBoard, BoardID: boardID}, nil)
}
