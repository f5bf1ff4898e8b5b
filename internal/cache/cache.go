// cache хранит идентификаторы (jti) отозванных refresh-токенов.
//
// Токен — значение, его нельзя "обновить": отзыв реализуется пометкой jti
// до момента естественного истечения токена. Реализации: in-memory (по
// умолчанию, с фоновой уборкой истёкших записей) и Redis (опционально,
// включается конфигурацией).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache — минимальный контракт кэша отозванных токенов.
type RevocationCache interface {
	// Revoke помечает jti отозванным на срок ttl (остаток жизни токена).
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked сообщает, отозван ли jti.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Close освобождает ресурсы реализации.
	Close() error
}

// MemoryCache — потокобезопасная in-memory реализация.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // jti -> момент истечения пометки

	now func() time.Time
}

// NewMemory создаёт пустой in-memory кэш.
func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (c *MemoryCache) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Токен уже истёк — помечать нечего.
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[jti] = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) IsRevoked(_ context.Context, jti string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt, ok := c.entries[jti]
	if !ok {
		return false, nil
	}

	if c.now().After(expiresAt) {
		// Пометка пережила токен — можно забыть.
		delete(c.entries, jti)
		return false, nil
	}

	return true, nil
}

func (c *MemoryCache) Close() error { return nil }

// StartJanitor запускает периодическую уборку истёкших пометок.
// Останавливается по ctx; делит мьютекс с Revoke/IsRevoked.
func (c *MemoryCache) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanup(c.now())
			}
		}
	}()
}

func (c *MemoryCache) cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for jti, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, jti)
		}
	}
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis создаёт кэш поверх Redis по URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "gw:rt:".
func NewRedis(redisURL, prefix string) (RevocationCache, error) {
	if prefix == "" {
		prefix = "gw:rt:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(jti string) string { return c.prefix + jti }

func (c *redisCache) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	return c.rdb.Set(ctx, c.key(jti), "1", ttl).Err()
}

func (c *redisCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }
