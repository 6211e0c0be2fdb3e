package rate

import "errors"

// ErrRateLimited is returned when an identifier or IP is over budget.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable is returned when the limiter backend fails.
var ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
