package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"slateboard/domain"
)

type backend interface {
	FetchBoard(ctx context.Context, boardID string) (*domain.Board, error)
	MoveCard(ctx context.Context, cardID, targetListID string) (int, []string, error)
	ReorderCards(ctx context.Context, listID string, cardIDs []string) (string, error)
	ReorderLists(ctx context.Context, boardID string, listIDs []string) error
	SetCardDueDate(ctx context.Context, cardID string, due *time.Time) (string, error)
}

// Cache wraps a Store with Redis-backed caching of board snapshots. Any
// mutation that touches a board evicts that board's snapshot so the next
// read rebuilds it from the database.
type Cache struct {
	*Store
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

func (c *Cache) FetchBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	if board, ok := c.loadBoardFromCache(ctx, boardID); ok {
		return board, nil
	}

	board, err := c.base.FetchBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	c.storeBoard(ctx, board)
	return board, nil
}

func (c *Cache) MoveCard(ctx context.Context, cardID, targetListID string) (int, []string, error) {
	position, boardIDs, err := c.base.MoveCard(ctx, cardID, targetListID)
	if err != nil {
		return 0, nil, err
	}

	c.evict(ctx, boardIDs...)
	return position, boardIDs, nil
}

func (c *Cache) ReorderCards(ctx context.Context, listID string, cardIDs []string) (string, error) {
	boardID, err := c.base.ReorderCards(ctx, listID, cardIDs)
	if err != nil {
		return "", err
	}

	c.evict(ctx, boardID)
	return boardID, nil
}

func (c *Cache) ReorderLists(ctx context.Context, boardID string, listIDs []string) error {
	if err := c.base.ReorderLists(ctx, boardID, listIDs); err != nil {
		return err
	}

	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) SetCardDueDate(ctx context.Context, cardID string, due *time.Time) (string, error) {
	boardID, err := c.base.SetCardDueDate(ctx, cardID, due)
	if err != nil {
		return "", err
	}

	c.evict(ctx, boardID)
	return boardID, nil
}

func (c *Cache) loadBoardFromCache(ctx context.Context, boardID string) (*domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		}
		return nil, false
	}
	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		return nil, false
	}
	return &board, true
}

func (c *Cache) storeBoard(ctx context.Context, board *domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(board.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, boardIDs ...string) {
	if c.redis == nil || len(boardIDs) == 0 {
		return
	}
	keys := make([]string, len(boardIDs))
	for i, id := range boardIDs {
		keys[i] = boardCacheKey(id)
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func boardCacheKey(boardID string) string {
	return "board:" + boardID
}
