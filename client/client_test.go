package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slateboard/domain"
)

func TestClientFetchBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/boards/b1" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(domain.Board{ID: "b1", Title: "Roadmap"})
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	board, err := c.FetchBoard(context.Background(), "b1")
	if err != nil {
		t.Fatalf("fetch board: %v", err)
	}
	if board.ID != "b1" || board.Title != "Roadmap" {
		t.Fatalf("unexpected board: %#v", board)
	}
}

func TestClientMoveCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cards/c1/move" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["listId"] != "l2" {
			t.Fatalf("unexpected body: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "position": 3})
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	position, err := c.MoveCard(context.Background(), "c1", "l2")
	if err != nil {
		t.Fatalf("move card: %v", err)
	}
	if position != 3 {
		t.Fatalf("unexpected position: %d", position)
	}
}

func TestClientReorderCardsSendsFullOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/lists/l1/cards/reorder" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body["cardIds"]) != 3 || body["cardIds"][0] != "b" {
			t.Fatalf("unexpected body: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	if err := c.ReorderCards(context.Background(), "l1", []string{"b", "a", "c"}); err != nil {
		t.Fatalf("reorder cards: %v", err)
	}
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	if _, err := c.FetchBoard(context.Background(), "b1"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestClientSetCardDueDateNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/cards/c1/due-date" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]*time.Time
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["dueDate"] != nil {
			t.Fatalf("expected null due date, got %v", body["dueDate"])
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	if err := c.SetCardDueDate(context.Background(), "c1", nil); err != nil {
		t.Fatalf("set due date: %v", err)
	}
}

func TestClientStreamHandshakeAndEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stream" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("event: CONNECTED\ndata: {\"connectionId\":\"conn-1\"}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte(":keepalive\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("event: BOARD_UPDATED\ndata: {\"boardId\":\"b1\"}\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.OpenStream(ctx)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Close()

	if stream.ConnectionID != "conn-1" {
		t.Fatalf("unexpected connection id: %s", stream.ConnectionID)
	}

	select {
	case ev := <-stream.Events:
		if ev.Name != domain.EventBoardUpdated {
			t.Fatalf("unexpected event: %#v", ev)
		}
		payload, ok := ev.Payload.(map[string]any)
		if !ok || payload["boardId"] != "b1" {
			t.Fatalf("unexpected payload: %#v", ev.Payload)
		}
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestClientJoinBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/stream/conn-1/events" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req domain.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.Event != domain.EventJoinBoard || req.BoardID != "b1" {
			t.Fatalf("unexpected subscription request: %#v", req)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "token")
	if err := c.JoinBoard(context.Background(), "conn-1", "b1"); err != nil {
		t.Fatalf("join board: %v", err)
	}
}
