package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"slateboard/domain"
)

type fakeAuth struct {
	userID string
}

func (f fakeAuth) UserIDFromAuthHeader(header string) (string, error) {
	if f.userID == "" {
		return "", echo.ErrUnauthorized
	}
	return f.userID, nil
}

type fakeAccess struct {
	allowed map[string]bool
}

func (f fakeAccess) HasBoardAccess(ctx context.Context, userID, boardID string) (bool, error) {
	return f.allowed[userID+"/"+boardID], nil
}

type flushRecorder struct{ *httptest.ResponseRecorder }

func (flushRecorder) Flush() {}

func firstConnID(hub *Hub) string {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for id := range hub.conns {
		return id
	}
	return ""
}

func TestStreamEventsHandshakeAndDelivery(t *testing.T) {
	hub := newTestHub()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := flushRecorder{httptest.NewRecorder()}
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	c := e.NewContext(req, rec)
	handler := streamEvents(hub, fakeAuth{userID: "user-1"})

	errCh := make(chan error, 1)
	go func() { errCh <- handler(c) }()
	time.Sleep(100 * time.Millisecond)

	connID := firstConnID(hub)
	if connID == "" {
		t.Fatal("expected a registered connection")
	}
	if owner, ok := hub.Owner(connID); !ok || owner != "user-1" {
		t.Fatalf("unexpected owner %q ok=%v", owner, ok)
	}
	if err := hub.Join(connID, "b1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	hub.PublishBoard("b1", domain.Event{Name: domain.EventBoardUpdated, Payload: map[string]string{"boardId": "b1"}})
	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("handler error: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: CONNECTED\ndata: {\"connectionId\":\""+connID+"\"}") {
		t.Fatalf("missing handshake in %q", body)
	}
	if !strings.Contains(body, "event: "+domain.EventBoardUpdated+"\n") {
		t.Fatalf("missing board update in %q", body)
	}
	if _, ok := hub.Owner(connID); ok {
		t.Fatal("expected connection removed after stream closed")
	}
}

func TestStreamEventsUnauthorized(t *testing.T) {
	hub := newTestHub()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := streamEvents(hub, fakeAuth{})(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func subscribeRequest(t *testing.T, e *echo.Echo, connID, body string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/stream/"+connID+"/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("connID")
	c.SetParamValues(connID)
	return rec, c
}

func TestSubscribeEventsJoinAndLeave(t *testing.T) {
	hub := newTestHub()
	connID, events := hub.Connect("user-1")
	e := echo.New()
	handler := subscribeEvents(hub, fakeAuth{userID: "user-1"}, fakeAccess{allowed: map[string]bool{"user-1/b1": true}})

	rec, c := subscribeRequest(t, e, connID, `{"event":"JOIN_BOARD","boardId":"b1"}`)
	if err := handler(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	hub.PublishBoard("b1", domain.Event{Name: domain.EventBoardUpdated})
	if got := drain(events); len(got) != 1 {
		t.Fatalf("expected delivery after join, got %#v", got)
	}

	rec, c = subscribeRequest(t, e, connID, `{"event":"LEAVE_BOARD","boardId":"b1"}`)
	if err := handler(c); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	hub.PublishBoard("b1", domain.Event{Name: domain.EventBoardUpdated})
	if got := drain(events); len(got) != 0 {
		t.Fatalf("expected no delivery after leave, got %#v", got)
	}
}

func TestSubscribeEventsForbiddenBoard(t *testing.T) {
	hub := newTestHub()
	connID, _ := hub.Connect("user-1")
	e := echo.New()
	handler := subscribeEvents(hub, fakeAuth{userID: "user-1"}, fakeAccess{})

	rec, c := subscribeRequest(t, e, connID, `{"event":"JOIN_BOARD","boardId":"secret"}`)
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSubscribeEventsWrongOwner(t *testing.T) {
	hub := newTestHub()
	connID, _ := hub.Connect("someone-else")
	e := echo.New()
	handler := subscribeEvents(hub, fakeAuth{userID: "user-1"}, fakeAccess{allowed: map[string]bool{"user-1/b1": true}})

	rec, c := subscribeRequest(t, e, connID, `{"event":"JOIN_BOARD","boardId":"b1"}`)
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSubscribeEventsUnknownConnection(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	handler := subscribeEvents(hub, fakeAuth{userID: "user-1"}, fakeAccess{})

	rec, c := subscribeRequest(t, e, "missing", `{"event":"JOIN_BOARD","boardId":"b1"}`)
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubscribeEventsUnknownEvent(t *testing.T) {
	hub := newTestHub()
	connID, _ := hub.Connect("user-1")
	e := echo.New()
	handler := subscribeEvents(hub, fakeAuth{userID: "user-1"}, fakeAccess{})

	rec, c := subscribeRequest(t, e, connID, `{"event":"DANCE","boardId":"b1"}`)
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
