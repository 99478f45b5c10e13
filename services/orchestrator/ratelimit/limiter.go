// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ratelimit implements a fixed-window request limiter keyed by
// caller identity.
//
// The limiter is advisory and single-process: it bounds how often one
// identity can start a generation run on this instance, it is not a
// distributed guarantee. State lives in memory behind one mutex, and a
// background sweeper removes expired windows so memory stays bounded no
// matter how many distinct identities are seen.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Limiter admits or rejects requests per caller identity.
//
// Implementations must be safe for concurrent use. A shared-store
// implementation can replace WindowLimiter without changing callers.
type Limiter interface {
	// Admit reports whether the identity may proceed at time now.
	Admit(identity string, now time.Time) bool

	// Close releases background resources.
	Close()
}

// window is one identity's counter for the current fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// WindowLimiter is the in-memory Limiter implementation.
//
// # Description
//
// Maintains one fixed window per identity. A request is admitted when no
// window exists or the window has expired (a fresh window starts with
// count 1), or while the window's count is below the configured maximum.
// Once the maximum is reached, further requests in the same window are
// rejected without incrementing.
//
// A janitor goroutine sweeps expired windows on an interval so the map
// does not grow without bound across distinct identities.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Read-check-increment for one
// identity is atomic under the mutex.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	windowLen   time.Duration
	maxRequests int

	// nowFn is the janitor's clock. Injectable for tests.
	nowFn func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewWindowLimiter creates a limiter admitting maxRequests per windowLen
// per identity. A janitor sweeps expired windows every sweepInterval;
// pass 0 to disable sweeping (tests only).
func NewWindowLimiter(windowLen time.Duration, maxRequests int, sweepInterval time.Duration) *WindowLimiter {
	l := &WindowLimiter{
		windows:     make(map[string]*window),
		windowLen:   windowLen,
		maxRequests: maxRequests,
		nowFn:       time.Now,
		stop:        make(chan struct{}),
	}
	if sweepInterval > 0 {
		go l.runJanitor(sweepInterval)
	}
	return l
}

// Admit reports whether the identity may proceed at time now.
//
// # Description
//
// Fresh or expired window: admit, count restarts at 1 and the window
// resets to now + windowLen. Count below max: admit and increment.
// Count at max: reject, no increment.
func (l *WindowLimiter) Admit(identity string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || now.After(w.resetAt) {
		l.windows[identity] = &window{count: 1, resetAt: now.Add(l.windowLen)}
		return true
	}
	if w.count >= l.maxRequests {
		return false
	}
	w.count++
	return true
}

// Close stops the janitor goroutine. Safe to call more than once.
func (l *WindowLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Len returns the number of tracked identities. Used by the sweeper log
// line and by tests.
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// runJanitor sweeps expired windows until Close is called.
func (l *WindowLimiter) runJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := l.sweep(l.nowFn())
			if removed > 0 {
				slog.Debug("rate limiter sweep",
					"removed", removed,
					"remaining", l.Len(),
				)
			}
		case <-l.stop:
			return
		}
	}
}

// sweep removes windows that expired before now and returns how many
// were removed.
func (l *WindowLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for identity, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, identity)
			removed++
		}
	}
	return removed
}

var _ Limiter = (*WindowLimiter)(nil)
