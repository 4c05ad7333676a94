package lib

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// ClaimIdempotencyKey reserves a charge idempotency key for 24h. Returns
// false when the key was already claimed by an earlier request.
func ClaimIdempotencyKey(ctx context.Context, key string) bool {
	rd := GetRedisClient()
	if rd == nil {
		return true
	}
	ok, err := rd.SetNX(ctx, "idem:"+key, "1", 24*time.Hour).Result()
	if err != nil {
		log.Printf("[redis] Error claiming idempotency key %s: %s\n", key, err.Error())
		return true
	}
	return ok
}

// ReleaseIdempotencyKey frees a claimed key after a failed charge attempt so
// the client can retry with the same key.
func ReleaseIdempotencyKey(ctx context.Context, key string) {
	rd := GetRedisClient()
	if rd == nil {
		return
	}
	if err := rd.Del(ctx, "idem:"+key).Err(); err != nil {
		log.Printf("[redis] Error releasing idempotency key %s: %s\n", key, err.Error())
	}
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}
