package domain

// Event names are the exact strings clients match against on the wire.
const (
	EventBoardUpdated    = "BOARD_UPDATED"
	EventNewNotification = "NEW_NOTIFICATION"
	EventJoinBoard       = "JOIN_BOARD"
	EventLeaveBoard      = "LEAVE_BOARD"
)

// Event is one server-to-client stream frame.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// NotificationPayload is the body of a NEW_NOTIFICATION event.
type NotificationPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	CardID  string `json:"cardId"`
	BoardID string `json:"boardId"`
}

// SubscriptionRequest is the client-to-server body for JOIN_BOARD and
// LEAVE_BOARD.
type SubscriptionRequest struct {
	Event   string `json:"event"`
	BoardID string `json:"boardId"`
}
