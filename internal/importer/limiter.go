package importer

// limiter.go bounds concurrent file decodes.
//
// Decoding is the only potentially long-running pipeline step, and a large
// workbook holds the whole decoded sheet in memory, so parallel decodes
// are capped with a semaphore. Requests that cannot get a slot within the
// wait window fail with ErrTooManyUploads and the client retries.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyUploads is returned when every decode slot is occupied and the
// wait timeout expires.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

// DefaultMaxConcurrentLoads caps parallel file decodes.
const DefaultMaxConcurrentLoads = 4

// DefaultLoadWait is how long to wait for a decode slot before rejecting.
const DefaultLoadWait = 15 * time.Second

// LoadLimiter is a semaphore over file decode operations.
type LoadLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.Mutex
	active int
}

// NewLoadLimiter allows at most maxConcurrent simultaneous decodes, each
// acquirer waiting up to maxWait for a slot.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultLoadWait
	}
	return &LoadLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire claims a decode slot. The caller must Release exactly once on
// success, normally via defer.
func (l *LoadLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyUploads
	}
}

// Release returns a previously acquired slot.
func (l *LoadLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Active returns the number of decodes currently running.
func (l *LoadLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// WaitForDrain blocks until all active decodes complete or ctx is
// cancelled. Used during graceful shutdown.
func (l *LoadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.Active() == 0 {
				return nil
			}
		}
	}
}

// LoadLimiterStatus is a snapshot of the limiter for monitoring.
type LoadLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports the limiter's current occupancy.
func (l *LoadLimiter) Status() LoadLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return LoadLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
