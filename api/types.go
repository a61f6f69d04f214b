package api

import (
	"context"
	"time"

	"slateboard/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchBoard(ctx context.Context, boardID string) (*domain.Board, error)
	HasBoardAccess(ctx context.Context, userID, boardID string) (bool, error)
	CardBoard(ctx context.Context, cardID string) (string, error)
	ListBoard(ctx context.Context, listID string) (string, error)
	MoveCard(ctx context.Context, cardID, targetListID string) (int, []string, error)
	ReorderCards(ctx context.Context, listID string, cardIDs []string) (string, error)
	ReorderLists(ctx context.Context, boardID string, listIDs []string) error
	SetCardDueDate(ctx context.Context, cardID string, due *time.Time) (string, error)
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Broadcaster pushes board events to connected clients, across instances.
type Broadcaster interface {
	PublishBoard(ctx context.Context, boardID string, ev domain.Event)
}
