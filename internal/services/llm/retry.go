package llm

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy decides whether and when a failed provider call is repeated.
// Quota errors back off exponentially from the provider's suggested delay,
// transient server errors back off linearly, and every other error is final.
type RetryPolicy struct {
	MaxRetries    int
	QuotaBackoff  time.Duration
	ServerBackoff time.Duration
	MaxBackoff    time.Duration
	Multiplier    float64
}

// DefaultRetryPolicy suits per-minute quotas on long PDF summarisation calls
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		QuotaBackoff:  30 * time.Second,
		ServerBackoff: 2 * time.Second,
		MaxBackoff:    90 * time.Second,
		Multiplier:    1.5,
	}
}

var (
	quotaMarkers  = []string{"429", "RESOURCE_EXHAUSTED", "rate_limit", "quota"}
	serverMarkers = []string{"500", "502", "503", "504", "529", "UNAVAILABLE", "INTERNAL", "overloaded", "connection reset", "unexpected EOF"}
)

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// IsRateLimitError reports a provider quota or rate limit rejection
func IsRateLimitError(err error) bool {
	return err != nil && containsAny(err.Error(), quotaMarkers)
}

// IsServerError reports a provider-side failure worth repeating
func IsServerError(err error) bool {
	return err != nil && containsAny(err.Error(), serverMarkers)
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay returns the delay a provider suggested in its error text, or 0
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Backoff returns the wait before retry number attempt+1, capped at MaxBackoff
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	var wait time.Duration
	if IsRateLimitError(err) {
		base := p.QuotaBackoff
		if hint := ExtractRetryDelay(err); hint > 0 {
			base = hint + 5*time.Second
		}
		wait = time.Duration(float64(base) * math.Pow(p.Multiplier, float64(attempt)))
	} else {
		wait = time.Duration(attempt+1) * p.ServerBackoff
	}
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

// Retryable reports whether err may succeed on a later attempt
func (p RetryPolicy) Retryable(err error) bool {
	return IsRateLimitError(err) || IsServerError(err)
}

// Do runs call until it succeeds, fails permanently, exhausts MaxRetries or ctx ends
func (p RetryPolicy) Do(ctx context.Context, logger arbor.ILogger, provider ProviderType, task string, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || ctx.Err() != nil || !p.Retryable(err) {
			return err
		}

		wait := p.Backoff(attempt, err)
		logger.Warn().
			Str("provider", string(provider)).
			Str("task", task).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying text generation call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
