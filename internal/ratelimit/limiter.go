package ratelimit

import "context"

// Limiter answers whether one more request under key may proceed now.
// Injected explicitly wherever throttling happens; there is no hidden
// module-level state.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
