// Package cache хранит внешние представления учетных записей в Redis.
// Кэшируются только очищенные представления: шифротексты, слепые
// индексы и учетные данные в кэш не попадают.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/identity-guard/internal/config"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// Время жизни кэшированного представления учетной записи.
const displayTTL = 5 * time.Minute

// Cache обертка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает значение по ключу. Возвращает false, если ключа нет.
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение с заданным временем жизни.
func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Db.Set(context.Background(), key, jsonData, expiration).Err()
}

// Invalidate удаляет ключ.
func (c *Cache) Invalidate(key string) error {
	return c.Db.Del(context.Background(), key).Err()
}

func displayKey(uid string) string {
	return "display:account:" + uid
}

// GetDisplayAccount читает кэшированное представление учетной записи.
func (c *Cache) GetDisplayAccount(uid string) (*models.DisplayAccount, bool, error) {
	var acc models.DisplayAccount
	found, err := c.Get(displayKey(uid), &acc)
	if err != nil || !found {
		return nil, false, err
	}
	return &acc, true, nil
}

// SetDisplayAccount кэширует представление учетной записи.
func (c *Cache) SetDisplayAccount(acc models.DisplayAccount) error {
	return c.Set(displayKey(acc.UID), acc, displayTTL)
}

// InvalidateDisplayAccount сбрасывает кэш после изменения записи.
func (c *Cache) InvalidateDisplayAccount(uid string) error {
	return c.Invalidate(displayKey(uid))
}
