package redis

import (
	"context"
	"crypto/tls"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCanvasCache struct {
	client redis.UniversalClient
}

func NewRedisCanvasCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisCanvasCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisCanvasCache{client: client}, nil
}

func (redisCache *RedisCanvasCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisCanvasCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Key helpers use hash tags so all keys of one session land on the same
// cluster slot and can be pipelined together.
func buildPageDocKey(sessionId string, number int) string {
	return "session:{" + sessionId + "}:page:" + strconv.Itoa(number)
}

func buildActivePageKey(sessionId string) string {
	return "session:{" + sessionId + "}:active"
}

// buildPageIndexKey tracks which page numbers are currently cached for a
// session, so invalidation can find them without a scan.
func buildPageIndexKey(sessionId string) string {
	return "session:{" + sessionId + "}:pages"
}

const cacheTTL = 10 * time.Minute

func (redisCache *RedisCanvasCache) SetPageDocument(ctx context.Context, sessionId string, number int, doc []byte) error {
	docKey := buildPageDocKey(sessionId, number)
	indexKey := buildPageIndexKey(sessionId)

	pipe := redisCache.client.Pipeline()
	pipe.Set(ctx, docKey, doc, cacheTTL)
	pipe.SAdd(ctx, indexKey, strconv.Itoa(number))
	pipe.Expire(ctx, indexKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisCanvasCache) GetPageDocument(ctx context.Context, sessionId string, number int) ([]byte, error) {
	docKey := buildPageDocKey(sessionId, number)
	val, err := redisCache.client.Get(ctx, docKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Not found
		}
		return nil, err
	}

	redisCache.client.Expire(ctx, docKey, cacheTTL)
	return val, nil
}

func (redisCache *RedisCanvasCache) SetActivePage(ctx context.Context, sessionId string, number int) error {
	return redisCache.client.Set(ctx, buildActivePageKey(sessionId), number, cacheTTL).Err()
}

func (redisCache *RedisCanvasCache) GetActivePage(ctx context.Context, sessionId string) (int, error) {
	val, err := redisCache.client.Get(ctx, buildActivePageKey(sessionId)).Int()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // Not found
		}
		return 0, err
	}
	return val, nil
}

func (redisCache *RedisCanvasCache) InvalidateSession(ctx context.Context, sessionId string) error {
	indexKey := buildPageIndexKey(sessionId)

	numbers, err := redisCache.client.SMembers(ctx, indexKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	keys := make([]string, 0, len(numbers)+2)
	for _, n := range numbers {
		number, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		keys = append(keys, buildPageDocKey(sessionId, number))
	}
	keys = append(keys, buildActivePageKey(sessionId), indexKey)

	// All keys share the session hash tag, so one Del covers them
	return redisCache.client.Del(ctx, keys...).Err()
}
