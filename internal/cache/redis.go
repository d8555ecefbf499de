package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "wh"

// store 进程内唯一的 Redis 连接与键前缀
type store struct {
	client *redis.Client
	prefix string
}

var current = &store{prefix: defaultKeyPrefix}

// InitRedis 初始化 Redis 客户端，未启用时所有操作为空操作
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		current = &store{prefix: defaultKeyPrefix}
		return nil
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	// 只承载鉴权快照、限流计数与骑手通知，超时设置较短
	current = &store{
		prefix: prefix,
		client: redis.NewClient(&redis.Options{
			Addr:         redisAddr(cfg.Host, cfg.Port),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		}),
	}
	return nil
}

func redisAddr(host string, port int) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Enabled 判断缓存是否启用
func Enabled() bool {
	return current.client != nil
}

// Client 返回底层客户端，未启用时为 nil
func Client() *redis.Client {
	return current.client
}

// Key 返回带前缀的完整键名
func Key(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return current.prefix
	}
	return current.prefix + ":" + key
}

func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !Enabled() {
		return false, nil
	}
	raw, err := current.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cache %s failed: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache %s failed: %w", key, err)
	}
	return current.client.Set(ctx, Key(key), raw, ttl).Err()
}

func Del(ctx context.Context, key string) error {
	if !Enabled() {
		return nil
	}
	return current.client.Del(ctx, Key(key)).Err()
}

// Publish 以 JSON 发布到带前缀的频道，返回收到消息的订阅者数量
func Publish(ctx context.Context, channel string, value interface{}) (int64, error) {
	if !Enabled() {
		return 0, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("encode message for %s failed: %w", channel, err)
	}
	return current.client.Publish(ctx, Key(channel), raw).Result()
}

// Ping 检查连通性，未启用时返回 nil
func Ping(ctx context.Context) error {
	if !Enabled() {
		return nil
	}
	return current.client.Ping(ctx).Err()
}

// Close 关闭客户端并回到禁用状态
func Close() error {
	if !Enabled() {
		return nil
	}
	client := current.client
	current = &store{prefix: current.prefix}
	return client.Close()
}
