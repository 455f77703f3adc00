package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"commboard-api/domain"
)

type backend interface {
	ListPublicBoards(ctx context.Context) ([]domain.Board, error)
	GetSetting(ctx context.Context, key string) (string, error)
	InsertBoard(ctx context.Context, b domain.Board) error
	PutSetting(ctx context.Context, s domain.AppSetting) error
}

// Cache wraps a Storage instance with Redis-backed caching for the two hot
// read paths: the public-board listing and app settings. Writes evict.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
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
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

const publicBoardsKey = "boards:public"

func settingCacheKey(key string) string { return "setting:" + key }

func (c *Cache) ListPublicBoards(ctx context.Context) ([]domain.Board, error) {
	if boards, ok := c.loadPublicBoards(ctx); ok {
		return boards, nil
	}

	boards, err := c.base.ListPublicBoards(ctx)
	if err != nil {
		return nil, err
	}

	c.storePublicBoards(ctx, boards)
	return boards, nil
}

func (c *Cache) GetSetting(ctx context.Context, key string) (string, error) {
	if c.redis != nil {
		value, err := c.redis.Get(ctx, settingCacheKey(key)).Result()
		if err == nil {
			return value, nil
		}
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, settingCacheKey(key)).Err()
		}
	}

	value, err := c.base.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if c.redis != nil && c.ttl > 0 {
		_ = c.redis.Set(ctx, settingCacheKey(key), value, c.ttl).Err()
	}
	return value, nil
}

func (c *Cache) InsertBoard(ctx context.Context, b domain.Board) error {
	if err := c.base.InsertBoard(ctx, b); err != nil {
		return err
	}
	if b.IsPublic {
		c.evict(ctx, publicBoardsKey)
	}
	return nil
}

func (c *Cache) PutSetting(ctx context.Context, s domain.AppSetting) error {
	if err := c.base.PutSetting(ctx, s); err != nil {
		return err
	}
	c.evict(ctx, settingCacheKey(s.Key))
	return nil
}

func (c *Cache) loadPublicBoards(ctx context.Context) ([]domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, publicBoardsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, publicBoardsKey).Err()
		}
		return nil, false
	}
	var boards []domain.Board
	if err := json.Unmarshal(data, &boards); err != nil {
		_ = c.redis.Del(ctx, publicBoardsKey).Err()
		return nil, false
	}
	return boards, true
}

func (c *Cache) storePublicBoards(ctx context.Context, boards []domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(boards)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, publicBoardsKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}
