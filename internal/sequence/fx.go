package sequence

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tillpoint/internal/config"
	"github.com/smallbiznis/tillpoint/internal/sequence/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence.allocator",
	fx.Provide(NewRedisClient),
	fx.Provide(service.NewLocker),
	fx.Provide(service.NewAllocator),
)

// NewRedisClient returns nil when no Redis address is configured; the
// allocator then relies on the in-process mutex and constraint retries.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
