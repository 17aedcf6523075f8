package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter manages per-client request rate limiting and daily quotas.
// Clients are keyed by IP address.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes uploaded per day

	clients map[string]*clientUsage
	now     func() time.Time
}

// clientUsage tracks usage for a single client.
type clientUsage struct {
	minuteCount int
	minuteStart time.Time
	hourCount   int
	hourStart   time.Time

	dayRequests int
	dayData     int64
	dayStart    time.Time
}

// NewRateLimiter creates a rate limiter with the given limits. A limit of
// zero disables that check.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// Check reports whether a request from the given client carrying dataSize
// upload bytes is allowed, and records it if so.
func (rl *RateLimiter) Check(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.getOrCreate(clientID, now)
	rl.rollWindows(usage, now)

	if err := rl.checkWindows(usage, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(usage, dataSize, now); err != nil {
		return err
	}

	usage.minuteCount++
	usage.hourCount++
	usage.dayRequests++
	usage.dayData += dataSize
	return nil
}

// rollWindows resets counters whose windows have elapsed.
func (rl *RateLimiter) rollWindows(usage *clientUsage, now time.Time) {
	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.minuteCount = 0
		usage.minuteStart = now
	}
	if now.Sub(usage.hourStart) >= time.Hour {
		usage.hourCount = 0
		usage.hourStart = now
	}
	if now.YearDay() != usage.dayStart.YearDay() || now.Year() != usage.dayStart.Year() {
		usage.dayRequests = 0
		usage.dayData = 0
		usage.dayStart = now
	}
}

func (rl *RateLimiter) checkWindows(usage *clientUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && usage.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.minuteStart),
		}
	}
	if rl.requestsPerHour > 0 && usage.hourCount >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.hourStart),
		}
	}
	return nil
}

func (rl *RateLimiter) checkQuotas(usage *clientUsage, dataSize int64, now time.Time) error {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxRequestsPerDay > 0 && usage.dayRequests >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.dayRequests),
			Resets: midnight,
		}
	}
	if rl.maxDataPerDay > 0 && usage.dayData+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dayData,
			Resets: midnight,
		}
	}
	return nil
}

func (rl *RateLimiter) getOrCreate(clientID string, now time.Time) *clientUsage {
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{minuteStart: now, hourStart: now, dayStart: now}
		rl.clients[clientID] = usage
	}
	return usage
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
