package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"slateboard/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the relational backend for boards, lists, cards and notifications.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, tunes the pool and verifies connectivity.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FetchBoard loads a board snapshot with lists and cards in stored order.
func (s *Store) FetchBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	board := &domain.Board{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, owner_id FROM boards WHERE id = $1`, boardID,
	).Scan(&board.ID, &board.Title, &board.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", boardID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch board: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, position FROM lists WHERE board_id = $1 ORDER BY position`, boardID)
	if err != nil {
		return nil, fmt.Errorf("fetch lists: %w", err)
	}
	defer rows.Close()
	index := map[string]int{}
	for rows.Next() {
		l := domain.List{BoardID: boardID, Cards: []domain.Card{}}
		if err := rows.Scan(&l.ID, &l.Title, &l.Position); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		index[l.ID] = len(board.Lists)
		board.Lists = append(board.Lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}

	cardRows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.list_id, c.title, c.notes, c.position, c.due_date
		   FROM cards c JOIN lists l ON l.id = c.list_id
		  WHERE l.board_id = $1
		  ORDER BY c.position`, boardID)
	if err != nil {
		return nil, fmt.Errorf("fetch cards: %w", err)
	}
	defer cardRows.Close()
	for cardRows.Next() {
		c := domain.Card{BoardID: boardID}
		if err := cardRows.Scan(&c.ID, &c.ListID, &c.Title, &c.Notes, &c.Position, &c.DueDate); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if i, ok := index[c.ListID]; ok {
			board.Lists[i].Cards = append(board.Lists[i].Cards, c)
		}
	}
	if err := cardRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}

	if err := s.attachTags(ctx, board); err != nil {
		return nil, err
	}
	return board, nil
}

func (s *Store) attachTags(ctx context.Context, board *domain.Board) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ct.card_id, t.label
		   FROM card_tags ct
		   JOIN tags t ON t.id = ct.tag_id
		   JOIN cards c ON c.id = ct.card_id
		   JOIN lists l ON l.id = c.list_id
		  WHERE l.board_id = $1`, board.ID)
	if err != nil {
		return fmt.Errorf("fetch tags: %w", err)
	}
	defer rows.Close()
	labels := map[string][]string{}
	for rows.Next() {
		var cardID, label string
		if err := rows.Scan(&cardID, &label); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		labels[cardID] = append(labels[cardID], label)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tags: %w", err)
	}
	if len(labels) == 0 {
		return nil
	}
	for li := range board.Lists {
		for ci := range board.Lists[li].Cards {
			card := &board.Lists[li].Cards[ci]
			card.Tags = labels[card.ID]
		}
	}
	return nil
}

// HasBoardAccess reports whether the user owns the board or is a member of it.
func (s *Store) HasBoardAccess(ctx context.Context, userID, boardID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM boards WHERE id = $1 AND owner_id = $2
		    UNION
		    SELECT 1 FROM board_members WHERE board_id = $1 AND user_id = $2
		 )`, boardID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check board access: %w", err)
	}
	return ok, nil
}

// BoardRecipients returns the owner and every member of the board.
func (s *Store) BoardRecipients(ctx context.Context, boardID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id FROM boards WHERE id = $1
		 UNION
		 SELECT user_id FROM board_members WHERE board_id = $1`, boardID)
	if err != nil {
		return nil, fmt.Errorf("fetch recipients: %w", err)
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return users, nil
}

// CardBoard resolves the board a card currently belongs to.
func (s *Store) CardBoard(ctx context.Context, cardID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx,
		`SELECT l.board_id FROM cards c JOIN lists l ON l.id = c.list_id WHERE c.id = $1`,
		cardID).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve card board: %w", err)
	}
	return boardID, nil
}

// ListBoard resolves the board a list belongs to.
func (s *Store) ListBoard(ctx context.Context, listID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx,
		`SELECT board_id FROM lists WHERE id = $1`, listID).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("list %s: %w", listID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve list board: %w", err)
	}
	return boardID, nil
}
