package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"slateboard/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, broadcast Broadcaster, logger *log.Logger) {
	e.GET("/api/boards/:boardID", getBoard(store, auth, logger))
	e.POST("/api/cards/:cardID/move", moveCard(store, auth, broadcast))
	e.PUT("/api/lists/:listID/cards/reorder", reorderCards(store, auth, broadcast))
	e.PUT("/api/boards/:boardID/lists/reorder", reorderLists(store, auth, broadcast))
	e.PATCH("/api/cards/:cardID/due-date", setDueDate(store, auth, broadcast))
	e.GET("/api/notifications", getNotifications(store, auth))
	e.POST("/api/notifications/:notificationID/read", readNotification(store, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// statusForError maps domain sentinels to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// requireBoardAccess resolves the caller's membership on every board and
// reports the failure as an HTTP response when access is missing.
func requireBoardAccess(c echo.Context, store Storage, userID string, boardIDs ...string) (bool, error) {
	for _, boardID := range boardIDs {
		allowed, err := store.HasBoardAccess(c.Request().Context(), userID, boardID)
		if err != nil {
			c.Logger().Error(err)
			return false, c.String(http.StatusInternalServerError, err.Error())
		}
		if !allowed {
			return false, c.NoContent(http.StatusForbidden)
		}
	}
	return true, nil
}

func boardUpdatedEvent(boardID string) domain.Event {
	return domain.Event{
		Name:    domain.EventBoardUpdated,
		Payload: map[string]string{"boardId": boardID},
	}
}

func getBoard(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		boardID := c.Param("boardID")
		allowed, accessErr := store.HasBoardAccess(ctx, userID, boardID)
		if accessErr != nil {
			metrics.SetErrorStage("access")
			c.Logger().Error(accessErr)
			err = c.String(http.StatusInternalServerError, accessErr.Error())
			return err
		}
		if !allowed {
			metrics.SetErrorStage("forbidden")
			err = c.NoContent(http.StatusForbidden)
			return err
		}

		fetchStart := time.Now()
		board, fetchErr := store.FetchBoard(ctx, boardID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			if errors.Is(fetchErr, domain.ErrNotFound) {
				metrics.SetErrorStage("not_found")
				err = c.NoContent(http.StatusNotFound)
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetListsReturned(len(board.Lists))
		cards := 0
		for _, l := range board.Lists {
			cards += len(l.Cards)
		}
		metrics.SetCardsReturned(cards)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, board)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func moveCard(store Storage, auth Authenticator, broadcast Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req moveCardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.ListID == "" {
			return c.String(http.StatusBadRequest, "listId is required")
		}

		ctx := c.Request().Context()
		cardID := c.Param("cardID")
		sourceBoard, err := store.CardBoard(ctx, cardID)
		if err != nil {
			return c.String(statusForError(err), err.Error())
		}
		targetBoard, err := store.ListBoard(ctx, req.ListID)
		if err != nil {
			return c.String(statusForError(err), err.Error())
		}
		if ok, resp := requireBoardAccess(c, store, userID, sourceBoard, targetBoard); !ok {
			return resp
		}

		position, boardIDs, err := store.MoveCard(ctx, cardID, req.ListID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(statusForError(err), err.Error())
		}
		for _, boardID := range boardIDs {
			broadcast.PublishBoard(ctx, boardID, boardUpdatedEvent(boardID))
		}
		return c.JSON(http.StatusOK, moveCardResponse{OK: true, Position: position})
	}
}

func reorderCards(store Storage, auth Authenticator, broadcast Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req reorderCardsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		ctx := c.Request().Context()
		listID := c.Param("listID")
		boardID, err := store.ListBoard(ctx, listID)
		if err != nil {
			return c.String(statusForError(err), err.Error())
		}
		if ok, resp := requireBoardAccess(c, store, userID, boardID); !ok {
			return resp
		}

		if _, err := store.ReorderCards(ctx, listID, req.CardIDs); err != nil {
			if statusForError(err) == http.StatusInternalServerError {
				c.Logger().Error(err)
			}
			return c.String(statusForError(err), err.Error())
		}
		broadcast.PublishBoard(ctx, boardID, boardUpdatedEvent(boardID))
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}

func reorderLists(store Storage, auth Authenticator, broadcast Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req reorderListsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		ctx := c.Request().Context()
		boardID := c.Param("boardID")
		if ok, resp := requireBoardAccess(c, store, userID, boardID); !ok {
			return resp
		}

		if err := store.ReorderLists(ctx, boardID, req.ListIDs); err != nil {
			if statusForError(err) == http.StatusInternalServerError {
				c.Logger().Error(err)
			}
			return c.String(statusForError(err), err.Error())
		}
		broadcast.PublishBoard(ctx, boardID, boardUpdatedEvent(boardID))
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}

func setDueDate(store Storage, auth Authenticator, broadcast Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req dueDateRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		ctx := c.Request().Context()
		cardID := c.Param("cardID")
		boardID, err := store.CardBoard(ctx, cardID)
		if err != nil {
			return c.String(statusForError(err), err.Error())
		}
		if ok, resp := requireBoardAccess(c, store, userID, boardID); !ok {
			return resp
		}

		if _, err := store.SetCardDueDate(ctx, cardID, req.DueDate); err != nil {
			c.Logger().Error(err)
			return c.String(statusForError(err), err.Error())
		}
		broadcast.PublishBoard(ctx, boardID, boardUpdatedEvent(boardID))
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}

func getNotifications(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		notifications, err := store.ListNotifications(c.Request().Context(), userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, notifications)
	}
}

func readNotification(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		err = store.MarkNotificationRead(c.Request().Context(), c.Param("notificationID"), userID)
		if err != nil {
			if statusForError(err) == http.StatusInternalServerError {
				c.Logger().Error(err)
			}
			return c.String(statusForError(err), err.Error())
		}
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}
