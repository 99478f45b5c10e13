// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowLimiter_AdmitBoundary(t *testing.T) {
	l := NewWindowLimiter(time.Minute, 3, 0)
	defer l.Close()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Admit("sam@thehackai.com", now))
	assert.True(t, l.Admit("sam@thehackai.com", now.Add(time.Second)))
	assert.True(t, l.Admit("sam@thehackai.com", now.Add(2*time.Second)))

	// Fourth attempt inside the same window is rejected.
	assert.False(t, l.Admit("sam@thehackai.com", now.Add(3*time.Second)))
	assert.False(t, l.Admit("sam@thehackai.com", now.Add(30*time.Second)))
}

func TestWindowLimiter_FreshWindowAfterReset(t *testing.T) {
	l := NewWindowLimiter(time.Minute, 3, 0)
	defer l.Close()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Admit("user", now))
	}
	assert.False(t, l.Admit("user", now.Add(59*time.Second)))

	// Past the window boundary the counter restarts.
	later := now.Add(61 * time.Second)
	assert.True(t, l.Admit("user", later))
	assert.True(t, l.Admit("user", later.Add(time.Second)))
}

func TestWindowLimiter_IdentitiesAreIndependent(t *testing.T) {
	l := NewWindowLimiter(time.Minute, 1, 0)
	defer l.Close()

	now := time.Now()
	assert.True(t, l.Admit("a", now))
	assert.False(t, l.Admit("a", now))
	assert.True(t, l.Admit("b", now))
}

func TestWindowLimiter_SweepBoundsMemory(t *testing.T) {
	l := NewWindowLimiter(time.Minute, 3, 0)
	defer l.Close()

	now := time.Now()
	for i := 0; i < 100; i++ {
		l.Admit(fmt.Sprintf("user-%d", i), now)
	}
	assert.Equal(t, 100, l.Len())

	removed := l.sweep(now.Add(2 * time.Minute))
	assert.Equal(t, 100, removed)
	assert.Equal(t, 0, l.Len())
}

func TestWindowLimiter_SweepKeepsLiveWindows(t *testing.T) {
	l := NewWindowLimiter(time.Minute, 3, 0)
	defer l.Close()

	now := time.Now()
	l.Admit("old", now)
	l.Admit("fresh", now.Add(50*time.Second))

	removed := l.sweep(now.Add(70 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())

	// The surviving window still enforces its counter.
	l.Admit("fresh", now.Add(55*time.Second))
	l.Admit("fresh", now.Add(56*time.Second))
	assert.False(t, l.Admit("fresh", now.Add(57*time.Second)))
}

func TestWindowLimiter_CloseIsIdempotent(t *testing.T) {
	l := NewWindowLimiter(time.Minute, 3, time.Second)
	l.Close()
	l.Close()
}
