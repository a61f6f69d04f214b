package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slateboard/domain"
)

// DueCards returns cards whose due date has passed and which have not been
// notified about yet.
func (s *Store) DueCards(ctx context.Context, now time.Time) ([]domain.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.list_id, l.board_id, c.title, c.due_date
		   FROM cards c JOIN lists l ON l.id = c.list_id
		  WHERE c.due_date IS NOT NULL AND c.due_date <= $1 AND NOT c.notified`, now)
	if err != nil {
		return nil, fmt.Errorf("fetch due cards: %w", err)
	}
	defer rows.Close()
	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.ListID, &c.BoardID, &c.Title, &c.DueDate); err != nil {
			return nil, fmt.Errorf("scan due card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due cards: %w", err)
	}
	return cards, nil
}

// MarkCardNotified flips the notified flag so reminder cycles skip the card
// from now on.
func (s *Store) MarkCardNotified(ctx context.Context, cardID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET notified = TRUE WHERE id = $1`, cardID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	return nil
}

// SetCardDueDate updates or clears a card's due date. Editing the date
// re-arms the reminder by clearing the notified flag. Returns the card's
// board so callers can broadcast the change.
func (s *Store) SetCardDueDate(ctx context.Context, cardID string, due *time.Time) (boardID string, err error) {
	err = s.db.QueryRowContext(ctx,
		`UPDATE cards SET due_date = $2, notified = FALSE WHERE id = $1
		 RETURNING (SELECT board_id FROM lists WHERE lists.id = cards.list_id)`,
		cardID, due).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("set due date: %w", err)
	}
	return boardID, nil
}

// InsertNotification persists a reminder notification for one user.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, card_id, board_id, message, created_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		n.ID, n.UserID, n.CardID, n.BoardID, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, card_id, board_id, message, created_at, is_read
		   FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	defer rows.Close()
	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.CardID, &n.BoardID, &n.Message, &n.CreatedAt, &n.IsRead); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return nil
}
