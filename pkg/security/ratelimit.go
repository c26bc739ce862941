// Package security provides per-client request limiting for the signing API.
package security

import (
	"net"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting per client IP. Signing a
// zone is expensive; this keeps one client from monopolizing the service.
type RateLimiter struct {
	buckets  map[string]*tokenBucket
	mu       sync.RWMutex
	config   RateLimitConfig
	cleanupT *time.Ticker
	stopCh   chan struct{}
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per client IP
	RequestsPerSecond float64

	// BurstSize is the token bucket capacity
	BurstSize int

	// CleanupInterval is how often to clean up idle buckets
	CleanupInterval time.Duration

	// BucketTTL is how long to keep idle buckets
	BucketTTL time.Duration

	// Enabled enables rate limiting
	Enabled bool
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   1 * time.Minute,
		BucketTTL:         5 * time.Minute,
		Enabled:           true,
	}
}

// tokenBucket implements the token bucket algorithm.
type tokenBucket struct {
	tokens       float64
	maxTokens    float64
	refillRate   float64 // tokens per nanosecond
	lastRefill   time.Time
	lastActivity time.Time
	mu           sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  config,
		stopCh:  make(chan struct{}),
	}

	if config.Enabled {
		rl.cleanupT = time.NewTicker(config.CleanupInterval)
		go rl.cleanup()
	}

	return rl
}

// Allow checks whether a request from the given remote address ("host:port"
// or bare host) should be allowed.
func (rl *RateLimiter) Allow(remoteAddr string) bool {
	if !rl.config.Enabled {
		return true
	}

	ip := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}
	if ip == "" {
		return true
	}

	return rl.getBucket(ip).consume()
}

// getBucket gets or creates a token bucket for an IP.
func (rl *RateLimiter) getBucket(ip string) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[ip]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	// Double-check after acquiring write lock.
	bucket, exists = rl.buckets[ip]
	if !exists {
		bucket = &tokenBucket{
			tokens:       float64(rl.config.BurstSize),
			maxTokens:    float64(rl.config.BurstSize),
			refillRate:   rl.config.RequestsPerSecond / float64(time.Second),
			lastRefill:   time.Now(),
			lastActivity: time.Now(),
		}
		rl.buckets[ip] = bucket
	}
	rl.mu.Unlock()

	return bucket
}

// consume tries to consume one token from the bucket.
func (tb *tokenBucket) consume() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tb.tokens += float64(elapsed) * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		tb.lastActivity = now

		return true
	}

	return false
}

// cleanup periodically removes idle buckets.
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupT.C:
			rl.doCleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// doCleanup removes buckets that have been idle longer than BucketTTL.
func (rl *RateLimiter) doCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-rl.config.BucketTTL)

	for ip, bucket := range rl.buckets {
		bucket.mu.Lock()
		lastActivity := bucket.lastActivity
		bucket.mu.Unlock()

		if lastActivity.Before(threshold) {
			delete(rl.buckets, ip)
		}
	}
}

// Stop stops the rate limiter cleanup goroutine.
func (rl *RateLimiter) Stop() {
	if rl.cleanupT != nil {
		rl.cleanupT.Stop()
	}
	close(rl.stopCh)
}

// ActiveBuckets returns the number of tracked client IPs.
func (rl *RateLimiter) ActiveBuckets() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return len(rl.buckets)
}
