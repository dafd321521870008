// ABOUTME: Retry-then-fallback wrapper around the primary extractor
// ABOUTME: Unavailable is retried with backoff; exhaustion degrades to the local heuristic
package extract

import (
	"context"
	"time"

	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/util"
)

// RetryPolicy is the caller-owned retry budget for the primary extractor
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// ResilientExtractor calls Primary, retries Unavailable results, and falls
// back to Fallback (when set) once the policy is exhausted or the output
// cannot be parsed
type ResilientExtractor struct {
	Primary  Extractor
	Fallback Extractor
	Policy   RetryPolicy
	Logger   *logger.Logger

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResilientExtractor wires a primary extractor with the heuristic fallback.
// A nil primary always uses the fallback.
func NewResilientExtractor(primary Extractor, fallbackEnabled bool, policy RetryPolicy, log *logger.Logger) *ResilientExtractor {
	r := &ResilientExtractor{
		Primary: primary,
		Policy:  policy,
		Logger:  logger.OrNop(log).Component("extractor"),
		sleep:   util.Sleep,
	}
	if fallbackEnabled {
		r.Fallback = NewHeuristicExtractor()
	}
	return r
}

// Extract runs the retry policy and the fallback
func (r *ResilientExtractor) Extract(ctx context.Context, text string) Result {
	if r.Primary == nil {
		return r.fallback(ctx, text, Unavailable("primary", errNoPrimary))
	}

	var res Result
	for attempt := 0; attempt <= r.Policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := util.CalculateBackoff(r.Policy.BaseDelay, attempt)
			r.Logger.Debug("retrying extraction", "attempt", attempt+1, "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				return Unavailable(res.Source, err)
			}
		}

		res = r.Primary.Extract(ctx, text)
		switch res.Status {
		case StatusSuccess:
			return res
		case StatusParseFailure:
			r.Logger.Warn("extractor output unparseable", "source", res.Source, "error", res.Err)
			return r.fallback(ctx, text, res)
		case StatusUnavailable:
			if ctx.Err() != nil {
				return res
			}
			r.Logger.Debug("extractor unavailable", "attempt", attempt+1, "error", res.Err)
		}
	}
	return r.fallback(ctx, text, res)
}

func (r *ResilientExtractor) fallback(ctx context.Context, text string, failed Result) Result {
	if r.Fallback == nil {
		return failed
	}
	r.Logger.Warn("degraded mode: using heuristic extraction",
		"cause", failed.Status.String(), "error", failed.Err)
	res := r.Fallback.Extract(ctx, text)
	res.Degraded = true
	return res
}
