// Package ratelimit throttles request rates per key.
package ratelimit

import "context"

// Limiter reports whether one more request for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
