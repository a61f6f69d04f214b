package api

import "time"

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// POST /api/cards/:cardID/move request and response bodies.
type moveCardRequest struct {
	ListID string `json:"listId"`
}

type moveCardResponse struct {
	OK       bool `json:"ok"`
	Position int  `json:"position"`
}

// PUT /api/lists/:listID/cards/reorder request body.
type reorderCardsRequest struct {
	CardIDs []string `json:"cardIds"`
}

// PUT /api/boards/:boardID/lists/reorder request body.
type reorderListsRequest struct {
	ListIDs []string `json:"listIds"`
}

// PATCH /api/cards/:cardID/due-date request body. A null dueDate clears the
// reminder.
type dueDateRequest struct {
	DueDate *time.Time `json:"dueDate"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
