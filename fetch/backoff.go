// Package fetch implements the Fetch Coordinator: per-kind fallback chains,
// retry with backoff, rate limiting, and response caching, grounded on the
// teacher's gateway/middleware/ratelimit.go token-bucket pattern and
// services/lending/engine/rpcclient.Client call shape (spec.md §4.2).
package fetch

import (
	"math/rand"
	"time"
)

// backoffDelay computes the exponential-backoff-with-jitter delay for a
// given retry attempt (0-indexed), per spec.md §4.2 step 2: base · 2^attempt
// capped at ceiling, multiplied by a uniform factor in [0.5, 1.5].
func backoffDelay(rng *rand.Rand, base, ceiling time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d > ceiling {
			d = ceiling
			break
		}
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	factor := 0.5 + rng.Float64()
	scaled := time.Duration(float64(d) * factor)
	if scaled <= 0 {
		return d
	}
	return scaled
}
