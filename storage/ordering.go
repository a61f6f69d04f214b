package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slateboard/domain"
)

// MoveCard reparents a card under targetListID, appending it at the end of the
// target list. Both the source and target board IDs are returned so callers
// can refresh every board the move touched; for same-board moves the two IDs
// are equal.
func (s *Store) MoveCard(ctx context.Context, cardID, targetListID string) (position int, boardIDs []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	var sourceListID, sourceBoardID string
	err = tx.QueryRowContext(ctx,
		`SELECT c.list_id, l.board_id FROM cards c JOIN lists l ON l.id = c.list_id
		  WHERE c.id = $1 FOR UPDATE`, cardID).Scan(&sourceListID, &sourceBoardID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("lock card: %w", err)
	}

	var targetBoardID string
	err = tx.QueryRowContext(ctx,
		`SELECT board_id FROM lists WHERE id = $1 FOR UPDATE`, targetListID).Scan(&targetBoardID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("list %s: %w", targetListID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("lock target list: %w", err)
	}

	siblings, err := listPositions(ctx, tx, targetListID)
	if err != nil {
		return 0, nil, err
	}
	position = domain.AppendPosition(siblings)

	if _, err := tx.ExecContext(ctx,
		`UPDATE cards SET list_id = $2, position = $3 WHERE id = $1`,
		cardID, targetListID, position); err != nil {
		return 0, nil, fmt.Errorf("move card: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit move: %w", err)
	}

	boardIDs = []string{sourceBoardID}
	if targetBoardID != sourceBoardID {
		boardIDs = append(boardIDs, targetBoardID)
	}
	return position, boardIDs, nil
}

// ReorderCards rewrites card positions within a list to match cardIDs,
// assigning dense positions 0..n-1. The proposed set must be exactly the
// cards currently in the list.
func (s *Store) ReorderCards(ctx context.Context, listID string, cardIDs []string) (boardID string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`SELECT board_id FROM lists WHERE id = $1 FOR UPDATE`, listID).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("list %s: %w", listID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lock list: %w", err)
	}

	current, err := childIDs(ctx, tx,
		`SELECT id FROM cards WHERE list_id = $1 ORDER BY position FOR UPDATE`, listID)
	if err != nil {
		return "", err
	}
	if err := domain.ValidateReorderSet(current, cardIDs); err != nil {
		return "", err
	}
	for i, id := range cardIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET position = $2 WHERE id = $1`, id, i); err != nil {
			return "", fmt.Errorf("renumber card: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reorder: %w", err)
	}
	return boardID, nil
}

// ReorderLists rewrites list positions within a board to match listIDs.
func (s *Store) ReorderLists(ctx context.Context, boardID string, listIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM boards WHERE id = $1)`, boardID).Scan(&exists); err != nil {
		return fmt.Errorf("check board: %w", err)
	}
	if !exists {
		return fmt.Errorf("board %s: %w", boardID, domain.ErrNotFound)
	}

	current, err := childIDs(ctx, tx,
		`SELECT id FROM lists WHERE board_id = $1 ORDER BY position FOR UPDATE`, boardID)
	if err != nil {
		return err
	}
	if err := domain.ValidateReorderSet(current, listIDs); err != nil {
		return err
	}
	for i, id := range listIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE lists SET position = $2 WHERE id = $1`, id, i); err != nil {
			return fmt.Errorf("renumber list: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

func listPositions(ctx context.Context, tx *sql.Tx, listID string) ([]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT position FROM cards WHERE list_id = $1 FOR UPDATE`, listID)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	defer rows.Close()
	var positions []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func childIDs(ctx context.Context, tx *sql.Tx, query, parentID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("fetch children: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return ids, nil
}
