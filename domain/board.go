package domain

import "time"

// Board is the top-level container of lists, scoped to an owner and a set
// of members.
type Board struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"ownerId"`
	Lists   []List `json:"lists"`
}

// List is an ordered collection of cards inside a board.
type List struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Cards    []Card `json:"cards"`
}

// Card is a single board item. A card belongs to exactly one list at a
// time; ownership transfers atomically on move.
type Card struct {
	ID       string     `json:"id"`
	ListID   string     `json:"listId"`
	BoardID  string     `json:"boardId"`
	Title    string     `json:"title"`
	Notes    string     `json:"notes,omitempty"`
	Position int        `json:"position"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	Notified bool       `json:"-"`
}

// Notification is a reminder row created by the due-date scheduler.
// Immutable once written except for IsRead.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CardID    string    `json:"cardId"`
	BoardID   string    `json:"boardId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	IsRead    bool      `json:"isRead"`
}
