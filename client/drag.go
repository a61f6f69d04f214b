package client

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"slateboard/domain"
)

// State is the drag lifecycle of a BoardView.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateReconciling
)

// Requester is the slice of the network client the drag state machine needs.
// *Client satisfies it.
type Requester interface {
	FetchBoard(ctx context.Context, boardID string) (*domain.Board, error)
	MoveCard(ctx context.Context, cardID, listID string) (int, error)
	ReorderCards(ctx context.Context, listID string, cardIDs []string) error
	ReorderLists(ctx context.Context, boardID string, listIDs []string) error
}

var errDragInProgress = errors.New("drag already in progress")

type cardDrag struct {
	cardID       string
	originListID string
	originIndex  int
}

type listDrag struct {
	listID      string
	originIndex int
}

// BoardView holds the local projection of one board and drives the drag
// state machine over it. Drag-over updates mutate only the projection;
// network I/O happens exclusively on drag-end. The view is meant to be
// driven from a single event loop and is not safe for concurrent use.
type BoardView struct {
	api    Requester
	logger *log.Logger
	board  *domain.Board

	state          State
	card           *cardDrag
	list           *listDrag
	pendingRefresh bool
}

// NewBoardView creates a view over an already-fetched board snapshot.
func NewBoardView(api Requester, logger *log.Logger, board *domain.Board) *BoardView {
	return &BoardView{api: api, logger: logger, board: board, state: StateIdle}
}

func (v *BoardView) Board() *domain.Board { return v.board }
func (v *BoardView) State() State         { return v.state }

// HandleBoardUpdated reacts to a BOARD_UPDATED event. Mid-gesture the
// refresh is deferred so the dragged card is not yanked out from under the
// pointer; it is applied once the gesture finishes.
func (v *BoardView) HandleBoardUpdated(ctx context.Context) error {
	if v.state != StateIdle {
		v.pendingRefresh = true
		return nil
	}
	return v.refetch(ctx)
}

func (v *BoardView) refetch(ctx context.Context) error {
	board, err := v.api.FetchBoard(ctx, v.board.ID)
	if err != nil {
		return fmt.Errorf("refresh board: %w", err)
	}
	v.board = board
	v.pendingRefresh = false
	return nil
}

// finish leaves the gesture and applies any refresh that was deferred while
// it was active.
func (v *BoardView) finish(ctx context.Context) error {
	v.card = nil
	v.list = nil
	v.state = StateIdle
	if v.pendingRefresh {
		return v.refetch(ctx)
	}
	return nil
}

// DragStart begins dragging a card, snapshotting its origin so drag-end can
// detect a cross-list move and cancel can restore it.
func (v *BoardView) DragStart(cardID string) error {
	if v.state != StateIdle {
		return errDragInProgress
	}
	li, ci := v.findCard(cardID)
	if li < 0 {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	v.card = &cardDrag{
		cardID:       cardID,
		originListID: v.board.Lists[li].ID,
		originIndex:  ci,
	}
	v.state = StateDragging
	return nil
}

// DragOverCard updates the local projection while hovering another card.
// Same list hovers splice-move the card; cross-list hovers reparent it at
// the hovered index. Fires at pointer-move frequency, so unknown targets
// and self-hovers are cheap no-ops.
func (v *BoardView) DragOverCard(targetCardID string) {
	if v.card == nil || targetCardID == v.card.cardID {
		return
	}
	fromList, fromIdx := v.findCard(v.card.cardID)
	toList, toIdx := v.findCard(targetCardID)
	if fromList < 0 || toList < 0 {
		return
	}
	if fromList == toList {
		cards := v.board.Lists[fromList].Cards
		moved := cards[fromIdx]
		copy(cards[fromIdx:], cards[fromIdx+1:])
		copy(cards[toIdx+1:], cards[toIdx:])
		cards[toIdx] = moved
		return
	}
	card := v.removeCard(fromList, fromIdx)
	v.insertCard(toList, toIdx, card)
}

// DragOverList moves the dragged card to the end of the hovered list,
// used when the pointer is over the list container rather than a sibling
// card.
func (v *BoardView) DragOverList(listID string) {
	if v.card == nil {
		return
	}
	toList := v.findList(listID)
	if toList < 0 {
		return
	}
	fromList, fromIdx := v.findCard(v.card.cardID)
	if fromList < 0 {
		return
	}
	if fromList == toList && fromIdx == len(v.board.Lists[fromList].Cards)-1 {
		return
	}
	card := v.removeCard(fromList, fromIdx)
	v.insertCard(toList, len(v.board.Lists[toList].Cards), card)
}

// DragEnd submits the gesture's final placement. A cross-list move issues
// move first, then reorders to pin exact indexes; a same-list drag issues a
// single reorder. Any failure discards the local projection and re-fetches
// server truth.
func (v *BoardView) DragEnd(ctx context.Context) error {
	switch {
	case v.card != nil:
		return v.endCardDrag(ctx)
	case v.list != nil:
		return v.endListDrag(ctx)
	default:
		return nil
	}
}

func (v *BoardView) endCardDrag(ctx context.Context) error {
	drag := v.card
	v.state = StateReconciling

	finalList, _ := v.findCard(drag.cardID)
	if finalList < 0 {
		// Projection lost track of the card; treat like a failed submit.
		return v.reconcileFailure(ctx, fmt.Errorf("card %s: %w", drag.cardID, domain.ErrNotFound))
	}
	finalListID := v.board.Lists[finalList].ID
	finalOrder := v.cardIDs(finalList)

	if finalListID != drag.originListID {
		if _, err := v.api.MoveCard(ctx, drag.cardID, finalListID); err != nil {
			return v.reconcileFailure(ctx, err)
		}
		if origin := v.findList(drag.originListID); origin >= 0 {
			if err := v.api.ReorderCards(ctx, drag.originListID, v.cardIDs(origin)); err != nil {
				return v.reconcileFailure(ctx, err)
			}
		}
	}
	if err := v.api.ReorderCards(ctx, finalListID, finalOrder); err != nil {
		return v.reconcileFailure(ctx, err)
	}
	return v.finish(ctx)
}

// reconcileFailure discards the optimistic projection and replaces it with
// the authoritative snapshot. The submit error is returned; a refetch error
// is logged but does not mask it.
func (v *BoardView) reconcileFailure(ctx context.Context, submitErr error) error {
	if err := v.refetch(ctx); err != nil {
		v.logger.Errorf("reconcile refetch: %v", err)
	}
	v.card = nil
	v.list = nil
	v.state = StateIdle
	return submitErr
}

// CancelDrag aborts the gesture locally, restoring the dragged item to its
// origin. No network call is made for the abort itself; a refresh deferred
// during the gesture is applied now.
func (v *BoardView) CancelDrag(ctx context.Context) error {
	if v.card != nil {
		if li, ci := v.findCard(v.card.cardID); li >= 0 {
			card := v.removeCard(li, ci)
			if origin := v.findList(v.card.originListID); origin >= 0 {
				idx := v.card.originIndex
				if idx > len(v.board.Lists[origin].Cards) {
					idx = len(v.board.Lists[origin].Cards)
				}
				v.insertCard(origin, idx, card)
			}
		}
	}
	if v.list != nil {
		if cur := v.findList(v.list.listID); cur >= 0 {
			v.spliceList(cur, v.list.originIndex)
		}
	}
	return v.finish(ctx)
}

// DragStartList begins dragging a whole list within the board.
func (v *BoardView) DragStartList(listID string) error {
	if v.state != StateIdle {
		return errDragInProgress
	}
	idx := v.findList(listID)
	if idx < 0 {
		return fmt.Errorf("list %s: %w", listID, domain.ErrNotFound)
	}
	v.list = &listDrag{listID: listID, originIndex: idx}
	v.state = StateDragging
	return nil
}

// DragListOver splice-moves the dragged list to the hovered list's index.
func (v *BoardView) DragListOver(targetListID string) {
	if v.list == nil || targetListID == v.list.listID {
		return
	}
	from := v.findList(v.list.listID)
	to := v.findList(targetListID)
	if from < 0 || to < 0 {
		return
	}
	v.spliceList(from, to)
}

func (v *BoardView) endListDrag(ctx context.Context) error {
	v.state = StateReconciling
	ids := make([]string, len(v.board.Lists))
	for i, l := range v.board.Lists {
		ids[i] = l.ID
	}
	if err := v.api.ReorderLists(ctx, v.board.ID, ids); err != nil {
		return v.reconcileFailure(ctx, err)
	}
	return v.finish(ctx)
}

func (v *BoardView) findCard(cardID string) (int, int) {
	for li := range v.board.Lists {
		for ci := range v.board.Lists[li].Cards {
			if v.board.Lists[li].Cards[ci].ID == cardID {
				return li, ci
			}
		}
	}
	return -1, -1
}

func (v *BoardView) findList(listID string) int {
	for i := range v.board.Lists {
		if v.board.Lists[i].ID == listID {
			return i
		}
	}
	return -1
}

func (v *BoardView) removeCard(li, ci int) domain.Card {
	cards := v.board.Lists[li].Cards
	card := cards[ci]
	v.board.Lists[li].Cards = append(cards[:ci], cards[ci+1:]...)
	return card
}

func (v *BoardView) insertCard(li, idx int, card domain.Card) {
	cards := v.board.Lists[li].Cards
	if idx > len(cards) {
		idx = len(cards)
	}
	cards = append(cards, domain.Card{})
	copy(cards[idx+1:], cards[idx:])
	cards[idx] = card
	v.board.Lists[li].Cards = cards
}

func (v *BoardView) spliceList(from, to int) {
	lists := v.board.Lists
	moved := lists[from]
	if from < to {
		copy(lists[from:], lists[from+1:to+1])
	} else {
		copy(lists[to+1:], lists[to:from])
	}
	lists[to] = moved
}

// cardIDs returns the projected order of a list's cards.
func (v *BoardView) cardIDs(li int) []string {
	cards := v.board.Lists[li].Cards
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
