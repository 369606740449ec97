// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package ped

import (
	"sync/atomic"
	"time"
)

// Backoff centralizes the two bounded retry policies shared by C1 (connect,
// send) so the arithmetic in §4.1/§8 P1/P2 is defined exactly once.
type Backoff struct {
	base time.Duration
	max  time.Duration
}

// NewBackoff builds a Backoff from a Config's base/max delays.
func NewBackoff(cfg Config) Backoff {
	return Backoff{base: cfg.BaseBackoffDelay, max: cfg.MaxBackoffDelay}
}

// Connect returns the capped-exponential delay for the k-th failed connect
// attempt (k is 1-based): base·2^(k-1), capped at max. 1→1000ms, 2→2000ms,
// 3→4000ms with the defaults (P1).
func (b Backoff) Connect(attempt int) time.Duration {
	return capDuration(b.base<<uint(attempt-1), b.max)
}

// Linear returns the linear delay for the k-th retry (k is 1-based):
// base·k, capped at max, used by send_and_recv retries and get_status
// retries (P2, S4).
func (b Backoff) Linear(attempt int) time.Duration {
	d := b.base * time.Duration(attempt)
	if d > b.max {
		return b.max
	}
	return d
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max || d < 0 {
		return max
	}
	return d
}

// BusyBackoff implements the exponential-with-cap-and-reset policy behind
// error 110 handling (§4.4 step 3/4, P5): consecutive busy replies grow the
// sleep exponentially up to max; any non-busy observation resets the count.
// The atomic-counter-plus-explicit-Reset shape is adapted from a circuit
// breaker's trip counter, though busy-tracking never "opens" anything — it
// only paces retries (see DESIGN.md).
type BusyBackoff struct {
	base  time.Duration
	max   time.Duration
	count int32
}

// NewBusyBackoff builds a BusyBackoff from a Config's base/max delays.
func NewBusyBackoff(cfg Config) *BusyBackoff {
	return &BusyBackoff{base: cfg.BaseBackoffDelay, max: cfg.MaxBackoffDelay}
}

// Next increments the consecutive-busy count and returns the sleep for the
// new count: base·2^(n-1), capped at max.
func (b *BusyBackoff) Next() time.Duration {
	n := atomic.AddInt32(&b.count, 1)
	return capDuration(b.base<<uint(n-1), b.max)
}

// Reset clears the consecutive-busy count; the next Next() call returns to
// the base delay, per "a single non-busy status between busies resets the
// next sleep to 1000 ms" (P5).
func (b *BusyBackoff) Reset() {
	atomic.StoreInt32(&b.count, 0)
}

// Count reports the current consecutive-busy count, mainly for tests.
func (b *BusyBackoff) Count() int {
	return int(atomic.LoadInt32(&b.count))
}
