// Package ratelimit implements C1: the REST token bucket and the
// per-egress-identity connection-rate gate, both computed from wall time on
// each call rather than a background timer, per §4.1.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a FIFO-fair token bucket: Acquire(n) suspends the caller
// until n tokens are available, refilling from elapsed wall time on every
// call rather than a background goroutine. Grounded on the teacher's
// internal/infrastructure/providers/ratelimit.go provider-budget wrapper
// around golang.org/x/time/rate; reimplemented by hand here because the
// spec requires exposing exact FIFO-arrival-order service (Scenario S5:
// ten concurrent acquire(300) calls drain in the order they arrived), which
// a plain token-bucket limiter does not guarantee under contention.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
	nextSeq  uint64
	serving  uint64
}

// NewTokenBucket creates a bucket starting full.
func NewTokenBucket(rate, capacity float64) *TokenBucket {
	return &TokenBucket{
		rate:     rate,
		capacity: capacity,
		tokens:   capacity,
		last:     time.Now(),
	}
}

func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

const pollCap = 50 * time.Millisecond

// Acquire blocks until n tokens are available or ctx is cancelled. Callers
// are served strictly in the order they invoke Acquire: each holds a ticket
// and only the bucket's current "serving" ticket may consume tokens, so a
// large request never gets leap-frogged by a later, smaller one.
func (b *TokenBucket) Acquire(ctx context.Context, n float64) error {
	b.mu.Lock()
	myTicket := b.nextSeq
	b.nextSeq++
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b.mu.Lock()
		now := time.Now()
		b.refillLocked(now)

		if myTicket == b.serving && b.tokens >= n {
			b.tokens -= n
			b.serving++
			b.mu.Unlock()
			return nil
		}

		var wait time.Duration
		if myTicket == b.serving {
			wait = b.waitDurationLocked(n)
		} else {
			wait = pollCap
		}
		b.mu.Unlock()

		if wait > pollCap {
			wait = pollCap
		}
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// waitDurationLocked returns how long until n tokens will be available,
// assuming the caller holds the mutex and tokens/last are current.
func (b *TokenBucket) waitDurationLocked(n float64) time.Duration {
	deficit := n - b.tokens
	if deficit <= 0 {
		return 0
	}
	secs := deficit / b.rate
	return time.Duration(secs * float64(time.Second))
}

// Available reports the current token count without consuming any
// (diagnostics only).
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}
