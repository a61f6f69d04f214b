package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"slateboard/domain"
)

type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// AccessChecker guards board subscriptions.
type AccessChecker interface {
	HasBoardAccess(ctx context.Context, userID, boardID string) (bool, error)
}

const keepaliveInterval = 30 * time.Second

// Register wires up the streaming endpoints on the given Echo instance.
func Register(e *echo.Echo, hub *Hub, auth Authenticator, access AccessChecker) {
	e.GET("/api/stream", streamEvents(hub, auth))
	e.POST("/api/stream/:connID/events", subscribeEvents(hub, auth, access))
}

// streamEvents opens a server-sent event stream. The first event carries the
// server-assigned connection ID the client uses to manage board
// subscriptions.
func streamEvents(hub *Hub, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		connID, events := hub.Connect(userID)
		defer hub.Disconnect(connID)

		if err := writeEvent(c, "CONNECTED", map[string]string{"connectionId": connID}); err != nil {
			return nil
		}
		flusher.Flush()

		ctx := c.Request().Context()
		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-keepalive.C:
				if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case ev := <-events:
				if err := writeEvent(c, ev.Name, ev.Payload); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(c echo.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		c.Logger().Error(err)
		return err
	}
	if _, err := c.Response().Write([]byte("event: " + name + "\ndata: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	_, err = c.Response().Write([]byte("\n\n"))
	return err
}

// subscribeEvents handles board subscription changes for an open stream.
func subscribeEvents(hub *Hub, auth Authenticator, access AccessChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		connID := c.Param("connID")
		owner, ok := hub.Owner(connID)
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}
		if owner != userID {
			return c.NoContent(http.StatusForbidden)
		}

		var req domain.SubscriptionRequest
		if err := c.Bind(&req); err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		if req.BoardID == "" {
			return c.String(http.StatusBadRequest, "boardId is required")
		}

		switch req.Event {
		case domain.EventJoinBoard:
			allowed, err := access.HasBoardAccess(c.Request().Context(), userID, req.BoardID)
			if err != nil {
				c.Logger().Error(err)
				return c.NoContent(http.StatusInternalServerError)
			}
			if !allowed {
				return c.NoContent(http.StatusForbidden)
			}
			if err := hub.Join(connID, req.BoardID); err != nil {
				return c.NoContent(http.StatusNotFound)
			}
		case domain.EventLeaveBoard:
			if err := hub.Leave(connID, req.BoardID); err != nil {
				return c.NoContent(http.StatusNotFound)
			}
		default:
			return c.String(http.StatusBadRequest, "unknown event")
		}
		return c.NoContent(http.StatusNoContent)
	}
}
