package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/korkiapp/korki/internal/config"
)

const (
	defaultRate  = 5.0
	defaultBurst = 20
)

var Module = fx.Module("ratelimit",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func New(p Params) Limiter {
	if p.Config.RedisAddr == "" {
		p.Log.Named("ratelimit").Info("redis not configured, using in-process limiter")
		return NewMemoryBucket(defaultRate, defaultBurst)
	}

	client := redis.NewClient(&redis.Options{Addr: p.Config.RedisAddr})
	p.Log.Named("ratelimit").Info("using redis limiter", zap.String("addr", p.Config.RedisAddr))
	return NewTokenBucket(client, defaultRate, defaultBurst)
}
